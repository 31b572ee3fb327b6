package message

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	"ticketshop/entity"
	"ticketshop/message/command"
	"ticketshop/message/event"
)

type ArtifactLoader interface {
	Load(ctx context.Context, ticket entity.Ticket) ([]byte, error)
}

type Notifier interface {
	SendTicket(ctx context.Context, ticket entity.Ticket, pdf []byte) error
	NotifyAdmin(ctx context.Context, subject, body string) error
}

type TicketReader interface {
	GetByTicketID(ctx context.Context, ticketID string) (entity.Ticket, error)
}

type RouterDeps struct {
	Artifacts    ArtifactLoader
	Logger       watermill.LoggerAdapter
	Notifier     Notifier
	PubSub       PubSub
	TicketReader TicketReader
}

type Router struct {
	*message.Router
}

func NewRouter(deps RouterDeps) (*Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	addMiddlewares(router, deps.Logger)

	ep, err := cqrs.NewEventProcessorWithConfig(router, event.NewProcessorConfig(deps.Logger, deps.PubSub.NewSubscriber))
	if err != nil {
		return nil, fmt.Errorf("creating event processor: %w", err)
	}

	eh := event.NewHandler(deps.Artifacts, deps.Notifier)
	err = ep.AddHandlers(
		cqrs.NewEventHandler("send-ticket-email", eh.SendTicketEmail),
		cqrs.NewEventHandler("notify-admin-of-failure", eh.NotifyAdminOfFailure),
	)
	if err != nil {
		return nil, fmt.Errorf("adding event handlers: %w", err)
	}

	cp, err := cqrs.NewCommandProcessorWithConfig(router, command.NewProcessorConfig(deps.Logger, deps.PubSub.NewSubscriber))
	if err != nil {
		return nil, fmt.Errorf("creating command processor: %w", err)
	}

	ch := command.NewHandler(deps.TicketReader, deps.Artifacts, deps.Notifier)
	err = cp.AddHandlers(
		cqrs.NewCommandHandler("send-ticket-email-on-request", ch.SendTicketEmail),
	)
	if err != nil {
		return nil, fmt.Errorf("adding command handlers: %w", err)
	}

	return &Router{router}, nil
}
