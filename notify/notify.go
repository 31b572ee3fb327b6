package notify

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"ticketshop/entity"
)

const eventName = "Wave & Vibe Pool Party"

// Notifier delivers ticket emails to buyers and failure notices to the admin
// contact.
type Notifier interface {
	SendTicket(ctx context.Context, ticket entity.Ticket, pdf []byte) error
	NotifyAdmin(ctx context.Context, subject, body string) error
}

type Disabled struct{}

func (Disabled) SendTicket(ctx context.Context, ticket entity.Ticket, _ []byte) error {
	log.FromContext(ctx).
		WithField("ticket_id", ticket.TicketID).
		Warn("Ticket email requested but email delivery is disabled")
	return nil
}

func (Disabled) NotifyAdmin(ctx context.Context, subject, _ string) error {
	log.FromContext(ctx).
		WithField("subject", subject).
		Warn("Admin notice requested but email delivery is disabled")
	return nil
}

func TicketSubject(ticket entity.Ticket) string {
	return fmt.Sprintf("Your Ticket for %s - %s", eventName, ticket.TicketID)
}

func TicketAttachmentName(ticket entity.Ticket) string {
	return fmt.Sprintf("RegalStarGym_Ticket_%s.pdf", ticket.TicketID)
}
