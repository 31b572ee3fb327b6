package command

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
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

type SendTicketEmail struct {
	Header   header `json:"header"`
	TicketID string `json:"ticket_id"`
}

func NewSendTicketEmail(ticketID, idempotencyKey string) SendTicketEmail {
	return SendTicketEmail{
		Header:   newHeader(idempotencyKey),
		TicketID: ticketID,
	}
}
