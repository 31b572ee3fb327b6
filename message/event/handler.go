package event

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"ticketshop/entity"
	"ticketshop/event"
	"ticketshop/observability"
)

type ArtifactLoader interface {
	Load(ctx context.Context, ticket entity.Ticket) ([]byte, error)
}

type Notifier interface {
	SendTicket(ctx context.Context, ticket entity.Ticket, pdf []byte) error
	NotifyAdmin(ctx context.Context, subject, body string) error
}

type Handler struct {
	artifacts ArtifactLoader
	notifier  Notifier
}

func NewHandler(a ArtifactLoader, n Notifier) Handler {
	return Handler{
		artifacts: a,
		notifier:  n,
	}
}

func (h Handler) SendTicketEmail(ctx context.Context, e *event.TicketPaid) error {
	pdf, err := h.artifacts.Load(ctx, e.Ticket)
	if err != nil {
		return fmt.Errorf("loading ticket pdf: %w", err)
	}

	err = h.notifier.SendTicket(ctx, e.Ticket, pdf)
	observability.NotificationsSent.WithLabelValues("ticket", observability.StatusLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("sending ticket email: %w", err)
	}

	return nil
}

func (h Handler) NotifyAdminOfFailure(ctx context.Context, e *event.TicketPaymentFailed) error {
	log.FromContext(ctx).
		WithField("ticket_id", e.Ticket.TicketID).
		WithField("reason", e.Reason).
		Info("Notifying admin of failed ticket payment")

	subject := fmt.Sprintf("Ticket %s payment failed", e.Ticket.TicketID)
	body := fmt.Sprintf(
		"Ticket: %s\nBuyer: %s <%s>\nAmount: %d\nProvider reference: %s\nReason: %s\n",
		e.Ticket.TicketID,
		e.Ticket.Name,
		e.Ticket.Email,
		e.Ticket.Amount,
		e.Ticket.ProviderReference(),
		e.Reason,
	)

	err := h.notifier.NotifyAdmin(ctx, subject, body)
	observability.NotificationsSent.WithLabelValues("admin", observability.StatusLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("notifying admin: %w", err)
	}

	return nil
}
