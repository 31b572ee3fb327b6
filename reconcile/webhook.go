package reconcile

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"ticketshop/entity"
	"ticketshop/observability"
)

const EventChargeCompleted = "charge.completed"

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeIgnored   Outcome = "ignored"
)

type Result struct {
	Outcome Outcome
	Message string
	Ticket  *entity.Ticket
}

// Signature holds the authentication headers sent with a notification. HMAC
// is the base64 HMAC-SHA256 of the raw body; LegacyHash is the static token
// some deliveries carry instead.
type Signature struct {
	HMAC       string
	LegacyHash string
}

type Notification struct {
	Event string            `json:"event"`
	Data  *NotificationData `json:"data"`
}

type NotificationData struct {
	ID       json.Number     `json:"id"`
	TxRef    string          `json:"tx_ref"`
	FlwRef   string          `json:"flw_ref"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// ProviderRef is the provider's reference for the charge, falling back to the
// transaction id.
func (d NotificationData) ProviderRef() string {
	if d.FlwRef != "" {
		return d.FlwRef
	}
	return d.ID.String()
}

// HandleNotification authenticates and applies one push notification from the
// payment provider. Business rejections are returned as a Result; only
// authentication, malformed payloads, unknown tickets and internal failures
// are returned as errors.
func (e *Engine) HandleNotification(ctx context.Context, body []byte, sig Signature) (result Result, err error) {
	ctx, span := observability.Tracer().Start(ctx, "reconcile.HandleNotification")
	defer func() {
		observability.WebhookOutcomes.WithLabelValues(webhookOutcomeLabel(result, err)).Inc()
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if err := e.authenticate(body, sig); err != nil {
		log.FromContext(ctx).WithError(err).Warn("Rejected payment notification")
		return Result{}, err
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Result{}, entity.ValidationError{Err: fmt.Errorf("decoding notification: %w", err)}
	}
	if n.Event == "" || n.Data == nil {
		return Result{}, entity.ValidationError{Err: errors.New("notification must have event and data")}
	}

	logger := log.FromContext(ctx).WithField("event", n.Event).WithField("tx_ref", n.Data.TxRef)

	if n.Event != EventChargeCompleted {
		logger.Info("Ignoring payment notification event")
		return Result{Outcome: OutcomeIgnored, Message: "event not handled"}, nil
	}
	if n.Data.TxRef == "" {
		return Result{}, entity.ValidationError{Err: errors.New("notification data must have tx_ref")}
	}

	ticket, err := e.store.GetByTicketID(ctx, n.Data.TxRef)
	if err != nil {
		if errors.Is(err, entity.ErrTicketNotFound) {
			logger.Warn("Payment notification for unknown ticket")
		}
		return Result{}, fmt.Errorf("getting ticket %s: %w", n.Data.TxRef, err)
	}
	span.SetAttributes(attribute.String("ticket_id", ticket.TicketID))

	if reason := e.corroborate(ticket, n.Data.Currency, n.Data.Amount); reason != "" {
		logger.WithField("reason", reason).Warn("Payment notification does not match ticket")
		return Result{Outcome: OutcomeRejected, Message: reason, Ticket: &ticket}, nil
	}

	if email := n.Data.Customer.Email; email != "" && !strings.EqualFold(email, ticket.Email) {
		logger.WithField("notification_email", email).Warn("Payment notification email differs from ticket, using stored email")
	}

	ctx = log.ToContext(ctx, logger)

	switch n.Data.Status {
	case "successful":
		return e.complete(ctx, ticket, n.Data.ProviderRef())
	case "failed":
		return e.fail(ctx, ticket, n.Data.ProviderRef())
	default:
		logger.WithField("status", n.Data.Status).Info("Payment status noted, no change")
		return Result{Outcome: OutcomeIgnored, Message: "status noted", Ticket: &ticket}, nil
	}
}

func (e *Engine) fail(ctx context.Context, ticket entity.Ticket, providerRef string) (Result, error) {
	if ticket.PaymentStatus.Terminal() {
		return duplicate(ticket), nil
	}

	if ticket.PaymentStatus == entity.StatusProcessing {
		log.FromContext(ctx).
			WithField("claimed_provider_ref", ticket.ProviderReference()).
			WithField("failed_provider_ref", providerRef).
			Warn("Failed payment notification overrides a successful charge being processed")
	}

	failed, err := e.store.Update(ctx, ticket.ID, entity.StatusChange{
		To:          entity.StatusFailed,
		ProviderRef: providerRef,
		Reason:      "payment failed",
	})
	if errors.Is(err, entity.ErrInvalidTransition) {
		current, getErr := e.store.Get(ctx, ticket.ID)
		if getErr != nil {
			return Result{}, fmt.Errorf("getting ticket: %w", getErr)
		}
		return duplicate(current), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("marking ticket as failed: %w", err)
	}
	observability.StatusTransitions.WithLabelValues(string(entity.StatusFailed)).Inc()

	log.FromContext(ctx).Info("Ticket payment failed")

	return Result{Outcome: OutcomeFailed, Message: "payment failed", Ticket: &failed}, nil
}

func (e *Engine) authenticate(body []byte, sig Signature) error {
	switch {
	case sig.HMAC != "":
		expected := Sign(e.config.WebhookSecret, body)
		if !hmac.Equal([]byte(expected), []byte(sig.HMAC)) {
			return entity.AuthenticationError{Reason: "signature mismatch"}
		}
		return nil
	case sig.LegacyHash != "":
		if subtle.ConstantTimeCompare([]byte(e.config.WebhookSecret), []byte(sig.LegacyHash)) != 1 {
			return entity.AuthenticationError{Reason: "hash mismatch"}
		}
		return nil
	default:
		return entity.AuthenticationError{Reason: "missing signature"}
	}
}

// corroborate returns why the reported payment does not match the ticket, or
// an empty string when it does.
func (e *Engine) corroborate(ticket entity.Ticket, currency string, amount decimal.Decimal) string {
	if !strings.EqualFold(currency, e.config.Currency) {
		return fmt.Sprintf("currency %q does not match %q", currency, e.config.Currency)
	}
	if !amount.Equal(decimal.NewFromInt(ticket.Amount)) {
		return fmt.Sprintf("amount %s does not match %d", amount, ticket.Amount)
	}
	return ""
}

// Sign computes the HMAC signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookOutcomeLabel(result Result, err error) string {
	var (
		authErr       entity.AuthenticationError
		validationErr entity.ValidationError
	)
	switch {
	case err == nil:
		return string(result.Outcome)
	case errors.As(err, &authErr):
		return "unauthenticated"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.Is(err, entity.ErrTicketNotFound):
		return "not_found"
	default:
		return "error"
	}
}
