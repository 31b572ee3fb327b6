package event

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"ticketshop/entity"
)

type header struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func newHeader(idempotencyKey string) header {
	return header{
		ID:             watermill.NewUUID(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

func idempotencyKey(ticket entity.Ticket) string {
	return ticket.ID + "-" + string(ticket.PaymentStatus)
}

type TicketPaid struct {
	Header header        `json:"header"`
	Ticket entity.Ticket `json:"ticket"`
}

func NewTicketPaid(ticket entity.Ticket) TicketPaid {
	return TicketPaid{
		Header: newHeader(idempotencyKey(ticket)),
		Ticket: ticket,
	}
}

type TicketPaymentFailed struct {
	Header header        `json:"header"`
	Ticket entity.Ticket `json:"ticket"`
	Reason string        `json:"reason"`
}

func NewTicketPaymentFailed(ticket entity.Ticket) TicketPaymentFailed {
	return TicketPaymentFailed{
		Header: newHeader(idempotencyKey(ticket)),
		Ticket: ticket,
		Reason: ticket.FailureReason,
	}
}

// ForTransition returns the event announcing that ticket reached its current
// status, or nil when the status is not terminal.
func ForTransition(ticket entity.Ticket) any {
	switch ticket.PaymentStatus {
	case entity.StatusSuccessful:
		return NewTicketPaid(ticket)
	case entity.StatusFailed:
		return NewTicketPaymentFailed(ticket)
	default:
		return nil
	}
}
