package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"ticketshop/clients"
	"ticketshop/entity"
	"ticketshop/observability"
)

const (
	artifactFailureReason = "artifact generation failed"
	recordFailureReason   = "could not record payment"

	defaultSettleTimeout = 5 * time.Second
	settlePollInterval   = 25 * time.Millisecond
)

type TicketStore interface {
	Create(ctx context.Context, ticket entity.Ticket) error
	Get(ctx context.Context, id string) (entity.Ticket, error)
	GetByTicketID(ctx context.Context, ticketID string) (entity.Ticket, error)
	GetByProviderRef(ctx context.Context, providerRef string) (entity.Ticket, error)
	Claim(ctx context.Context, id string, change entity.StatusChange) (entity.Ticket, bool, error)
	Update(ctx context.Context, id string, change entity.StatusChange) (entity.Ticket, error)
	List(ctx context.Context) ([]entity.Ticket, error)
}

type Gateway interface {
	InitializeCharge(ctx context.Context, req clients.ChargeRequest) (string, error)
	VerifyTransaction(ctx context.Context, transactionID string) (clients.Transaction, error)
}

type ArtifactProducer interface {
	Produce(ctx context.Context, ticket entity.Ticket) (string, error)
}

type Config struct {
	WebhookSecret string
	Currency      string
	Prices        entity.PriceList
	PublicBaseURL string

	// SettleTimeout bounds how long a caller that lost the claim waits for
	// the winner to reach a terminal status. Defaults to 5s.
	SettleTimeout time.Duration
}

// Engine decides whether a payment signal may move a ticket forward. All
// state changes go through the store's claim, so concurrent signals for the
// same ticket produce at most one artifact.
type Engine struct {
	store     TicketStore
	gateway   Gateway
	artifacts ArtifactProducer
	config    Config
}

func NewEngine(store TicketStore, gateway Gateway, artifacts ArtifactProducer, config Config) *Engine {
	if store == nil {
		panic("store is nil")
	}
	if gateway == nil {
		panic("gateway is nil")
	}
	if artifacts == nil {
		panic("artifacts is nil")
	}

	if config.SettleTimeout <= 0 {
		config.SettleTimeout = defaultSettleTimeout
	}

	return &Engine{
		store:     store,
		gateway:   gateway,
		artifacts: artifacts,
		config:    config,
	}
}

// complete claims a pending ticket, produces its artifact and marks it
// successful. Losing the claim is reported as a duplicate with the ticket as
// the winner left it. When the artifact cannot be produced or the payment
// cannot be recorded the ticket ends up failed, never stuck in processing.
func (e *Engine) complete(ctx context.Context, ticket entity.Ticket, providerRef string) (Result, error) {
	logger := log.FromContext(ctx).WithField("ticket_id", ticket.TicketID).WithField("provider_ref", providerRef)

	claimed, ok, err := e.store.Claim(ctx, ticket.ID, entity.StatusChange{
		To:          entity.StatusProcessing,
		ProviderRef: providerRef,
	})
	if err != nil {
		return Result{}, fmt.Errorf("claiming ticket: %w", err)
	}
	if !ok {
		settled, err := e.awaitSettled(ctx, claimed)
		if err != nil {
			return Result{}, err
		}
		logger.WithField("status", settled.PaymentStatus).Info("Ticket already claimed, nothing to do")
		return duplicate(settled), nil
	}
	observability.StatusTransitions.WithLabelValues(string(entity.StatusProcessing)).Inc()

	if _, err := e.artifacts.Produce(ctx, claimed); err != nil {
		logger.WithError(err).Error("Artifact generation failed, marking ticket as failed")
		return e.demote(ctx, claimed, artifactFailureReason, err)
	}

	paid, err := e.store.Update(ctx, claimed.ID, entity.StatusChange{To: entity.StatusSuccessful})
	if errors.Is(err, entity.ErrInvalidTransition) {
		current, getErr := e.store.Get(ctx, claimed.ID)
		if getErr != nil {
			return Result{}, fmt.Errorf("getting ticket: %w", getErr)
		}
		logger.WithField("status", current.PaymentStatus).Warn("Ticket reached a terminal status while its artifact was produced")
		return duplicate(current), nil
	}
	if err != nil {
		logger.WithError(err).Error("Could not mark ticket as successful, marking ticket as failed")
		return e.demote(ctx, claimed, recordFailureReason, fmt.Errorf("marking ticket as successful: %w", err))
	}
	observability.StatusTransitions.WithLabelValues(string(entity.StatusSuccessful)).Inc()

	logger.Info("Ticket paid")

	return Result{Outcome: OutcomeProcessed, Message: "payment confirmed", Ticket: &paid}, nil
}

// demote moves a claimed ticket to failed. cause is only returned when the
// demotion itself fails too.
func (e *Engine) demote(ctx context.Context, claimed entity.Ticket, reason string, cause error) (Result, error) {
	failed, err := e.store.Update(ctx, claimed.ID, entity.StatusChange{
		To:     entity.StatusFailed,
		Reason: reason,
	})
	if err != nil {
		return Result{}, errors.Join(cause, fmt.Errorf("marking ticket as failed: %w", err))
	}
	observability.StatusTransitions.WithLabelValues(string(entity.StatusFailed)).Inc()

	return Result{Outcome: OutcomeFailed, Message: reason, Ticket: &failed}, nil
}

// awaitSettled re-reads a ticket that another caller holds in processing
// until it is terminal or the settle timeout passes, and returns the last
// state seen.
func (e *Engine) awaitSettled(ctx context.Context, ticket entity.Ticket) (entity.Ticket, error) {
	if ticket.PaymentStatus != entity.StatusProcessing {
		return ticket, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.SettleTimeout)
	defer cancel()

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.FromContext(ctx).
				WithField("ticket_id", ticket.TicketID).
				Warn("Ticket still processing, returning it as it is")
			return ticket, nil
		case <-ticker.C:
		}

		current, err := e.store.Get(ctx, ticket.ID)
		if errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		if err != nil {
			return entity.Ticket{}, fmt.Errorf("getting ticket: %w", err)
		}
		if current.PaymentStatus.Terminal() {
			return current, nil
		}
		ticket = current
	}
}

func duplicate(ticket entity.Ticket) Result {
	return Result{Outcome: OutcomeDuplicate, Message: "already processed", Ticket: &ticket}
}
