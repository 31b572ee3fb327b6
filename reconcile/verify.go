package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"go.opentelemetry.io/otel/attribute"

	"ticketshop/entity"
	"ticketshop/observability"
)

// Verify corroborates a payment the buyer reports right after the gateway
// redirect. The transaction is looked up with the provider rather than
// trusted, and on agreement the ticket goes through the same claim as a
// webhook would.
func (e *Engine) Verify(ctx context.Context, ticketID, transactionID string) (ticket entity.Ticket, err error) {
	ctx, span := observability.Tracer().Start(ctx, "reconcile.Verify")
	span.SetAttributes(attribute.String("ticket_id", ticketID))
	defer func() {
		observability.VerifyOutcomes.WithLabelValues(verifyOutcomeLabel(ticket, err)).Inc()
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	ticket, err = e.store.GetByTicketID(ctx, ticketID)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("getting ticket %s: %w", ticketID, err)
	}

	if ticket.PaymentStatus == entity.StatusSuccessful {
		return ticket, nil
	}

	if transactionID == "" {
		return entity.Ticket{}, entity.ValidationError{Err: errors.New("transaction_id is required")}
	}

	// Another request holds or has finished the ticket. Report where it ends
	// up rather than the intermediate status.
	if ticket.PaymentStatus != entity.StatusPending {
		return e.awaitSettled(ctx, ticket)
	}

	logger := log.FromContext(ctx).
		WithField("ticket_id", ticket.TicketID).
		WithField("transaction_id", transactionID)

	transaction, err := e.gateway.VerifyTransaction(ctx, transactionID)
	if err != nil {
		logger.WithError(err).Error("Could not verify transaction with payment gateway")
		return entity.Ticket{}, fmt.Errorf("verifying transaction %s: %w", transactionID, err)
	}

	mismatch := func(reason string) (entity.Ticket, error) {
		logger.WithField("reason", reason).Warn("Transaction does not match ticket")
		return entity.Ticket{}, entity.MismatchError{Reason: reason, Ticket: ticket}
	}

	if !transaction.Successful() {
		return mismatch("transaction not successful")
	}
	if transaction.TxRef != ticket.TicketID {
		return mismatch(fmt.Sprintf("transaction reference %q does not match", transaction.TxRef))
	}
	if reason := e.corroborate(ticket, transaction.Currency, transaction.Amount); reason != "" {
		return mismatch(reason)
	}

	providerRef := transaction.FlwRef
	if providerRef == "" {
		providerRef = strconv.FormatInt(transaction.ID, 10)
	}

	owner, err := e.store.GetByProviderRef(ctx, providerRef)
	switch {
	case err == nil && owner.ID != ticket.ID:
		return mismatch("provider reference already used by another ticket")
	case err != nil && !errors.Is(err, entity.ErrTicketNotFound):
		return entity.Ticket{}, fmt.Errorf("getting ticket by provider reference: %w", err)
	}

	result, err := e.complete(log.ToContext(ctx, logger), ticket, providerRef)
	if err != nil {
		return entity.Ticket{}, err
	}

	return *result.Ticket, nil
}

func verifyOutcomeLabel(ticket entity.Ticket, err error) string {
	var (
		mismatchErr   entity.MismatchError
		upstreamErr   entity.UpstreamError
		validationErr entity.ValidationError
	)
	switch {
	case err == nil:
		return string(ticket.PaymentStatus)
	case errors.As(err, &mismatchErr):
		return "mismatch"
	case errors.As(err, &upstreamErr):
		return "upstream_error"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.Is(err, entity.ErrTicketNotFound):
		return "not_found"
	default:
		return "error"
	}
}
