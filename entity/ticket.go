package entity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const TicketIDPrefix = "RSG-PPOOL-"

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusSuccessful PaymentStatus = "successful"
	StatusFailed     PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// CanTransitionTo reports whether s may move forward to next. Staying in the
// same status is not a transition.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusSuccessful || next == StatusFailed
	case StatusProcessing:
		return next == StatusSuccessful || next == StatusFailed
	default:
		return false
	}
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Ticket struct {
	ID            string        `json:"id" db:"id"`
	TicketID      string        `json:"ticketId" db:"ticket_id"`
	Name          string        `json:"name" db:"name"`
	Email         string        `json:"email" db:"email"`
	Gender        Gender        `json:"gender" db:"gender"`
	Amount        int64         `json:"amount" db:"amount"`
	PaymentStatus PaymentStatus `json:"paymentStatus" db:"payment_status"`
	ProviderRef   *string       `json:"providerRef" db:"provider_ref"`
	FailureReason string        `json:"failureReason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}

func (t Ticket) ProviderReference() string {
	if t.ProviderRef == nil {
		return ""
	}
	return *t.ProviderRef
}

func (t Ticket) TicketType() string {
	if t.Gender == GenderMale {
		return "Guys - Early Bird"
	}
	return "Ladies - Early Bird"
}

// StatusChange describes a requested move of a ticket's payment status.
// ProviderRef is only recorded when the ticket has none yet.
type StatusChange struct {
	To          PaymentStatus
	ProviderRef string
	Reason      string
}

func NewTicket(intake Intake, now time.Time) Ticket {
	return Ticket{
		ID:            uuid.NewString(),
		TicketID:      NewTicketID(),
		Name:          intake.Name,
		Email:         intake.Email,
		Gender:        Gender(intake.Gender),
		Amount:        intake.Amount,
		PaymentStatus: StatusPending,
		CreatedAt:     now.UTC().Truncate(time.Microsecond),
	}
}

func NewTicketID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		panic(fmt.Sprintf("reading random source: %s", err))
	}

	return fmt.Sprintf("%s%06d", TicketIDPrefix, n.Int64()+100000)
}
