package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"ticketshop/clients"
	"ticketshop/entity"
)

const maxTicketIDAttempts = 5

type Checkout struct {
	PaymentLink string
	Ticket      entity.Ticket
}

// Initialize validates the buyer's details, stores a pending ticket and asks
// the gateway for a payment link whose reference is the ticket id.
func (e *Engine) Initialize(ctx context.Context, intake entity.Intake) (Checkout, error) {
	intake.Normalize()
	if err := intake.Validate(e.config.Prices); err != nil {
		return Checkout{}, err
	}

	ticket, err := e.createTicket(ctx, intake)
	if err != nil {
		return Checkout{}, err
	}

	logger := log.FromContext(ctx).WithField("ticket_id", ticket.TicketID)
	logger.Info("Pending ticket created")

	link, err := e.gateway.InitializeCharge(ctx, clients.ChargeRequest{
		TxRef:       ticket.TicketID,
		Amount:      ticket.Amount,
		Currency:    e.config.Currency,
		RedirectURL: e.config.PublicBaseURL + "/success",
		Customer: clients.Customer{
			Email: ticket.Email,
			Name:  ticket.Name,
		},
		Customizations: clients.Customizations{
			Title:       "Regal Star Gym - Wave & Vibe Pool Party",
			Description: "Ticket for " + ticket.TicketType(),
			Logo:        e.config.PublicBaseURL + "/logo.png",
		},
		Meta: map[string]string{
			"ticket_id": ticket.TicketID,
			"gender":    string(ticket.Gender),
		},
	})
	if err != nil {
		logger.WithError(err).Error("Could not initialize payment")
		return Checkout{}, fmt.Errorf("initializing charge for ticket %s: %w", ticket.TicketID, err)
	}

	return Checkout{PaymentLink: link, Ticket: ticket}, nil
}

func (e *Engine) createTicket(ctx context.Context, intake entity.Intake) (entity.Ticket, error) {
	for attempt := 1; ; attempt++ {
		ticket := entity.NewTicket(intake, time.Now())

		err := e.store.Create(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, entity.ErrTicketIDTaken) || attempt == maxTicketIDAttempts {
			return entity.Ticket{}, fmt.Errorf("creating ticket: %w", err)
		}

		log.FromContext(ctx).WithField("ticket_id", ticket.TicketID).Warn("Ticket id already taken, retrying")
	}
}
