package http

import (
	"context"

	"ticketshop/entity"
	"ticketshop/reconcile"
)

type Engine interface {
	Initialize(ctx context.Context, intake entity.Intake) (reconcile.Checkout, error)
	HandleNotification(ctx context.Context, body []byte, sig reconcile.Signature) (reconcile.Result, error)
	Verify(ctx context.Context, ticketID, transactionID string) (entity.Ticket, error)
}

type TicketReader interface {
	GetByTicketID(ctx context.Context, ticketID string) (entity.Ticket, error)
	List(ctx context.Context) ([]entity.Ticket, error)
}

type Artifacts interface {
	Produce(ctx context.Context, ticket entity.Ticket) (string, error)
	Load(ctx context.Context, ticket entity.Ticket) ([]byte, error)
}

type CommandBus interface {
	Send(ctx context.Context, cmd any) error
}

type handler struct {
	engine     Engine
	tickets    TicketReader
	artifacts  Artifacts
	commandBus CommandBus
}
