package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"ticketshop/command"
	"ticketshop/entity"
	"ticketshop/observability"
)

type TicketReader interface {
	GetByTicketID(ctx context.Context, ticketID string) (entity.Ticket, error)
}

type ArtifactLoader interface {
	Load(ctx context.Context, ticket entity.Ticket) ([]byte, error)
}

type TicketSender interface {
	SendTicket(ctx context.Context, ticket entity.Ticket, pdf []byte) error
}

type Handler struct {
	tickets   TicketReader
	artifacts ArtifactLoader
	sender    TicketSender
}

func NewHandler(t TicketReader, a ArtifactLoader, s TicketSender) Handler {
	return Handler{
		tickets:   t,
		artifacts: a,
		sender:    s,
	}
}

func (h Handler) SendTicketEmail(ctx context.Context, cmd *command.SendTicketEmail) error {
	logger := log.FromContext(ctx).WithField("ticket_id", cmd.TicketID)

	ticket, err := h.tickets.GetByTicketID(ctx, cmd.TicketID)
	if errors.Is(err, entity.ErrTicketNotFound) {
		logger.Warn("Ticket to email not found, dropping command")
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting ticket: %w", err)
	}

	if ticket.PaymentStatus != entity.StatusSuccessful {
		logger.WithField("status", ticket.PaymentStatus).Warn("Ticket is not paid, not sending email")
		return nil
	}

	pdf, err := h.artifacts.Load(ctx, ticket)
	if err != nil {
		return fmt.Errorf("loading ticket pdf: %w", err)
	}

	err = h.sender.SendTicket(ctx, ticket, pdf)
	observability.NotificationsSent.WithLabelValues("ticket", observability.StatusLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("sending ticket email: %w", err)
	}

	return nil
}
