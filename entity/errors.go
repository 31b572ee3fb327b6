package entity

import (
	"errors"
	"fmt"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketIDTaken     = errors.New("ticket id already taken")
	ErrInvalidTransition = errors.New("invalid payment status transition")
)

type ValidationError struct {
	Err error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Err)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

type AuthenticationError struct {
	Reason string
}

func (e AuthenticationError) Error() string {
	return "unauthenticated notification: " + e.Reason
}

// MismatchError means the provider's account of a payment does not agree with
// the stored ticket. Ticket is the ticket as it is stored now.
type MismatchError struct {
	Reason string
	Ticket Ticket
}

func (e MismatchError) Error() string {
	return fmt.Sprintf("payment for ticket %s does not match: %s", e.Ticket.TicketID, e.Reason)
}

type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway %s: unexpected status code %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("payment gateway %s: %s", e.Op, e.Err)
}

func (e UpstreamError) Unwrap() error {
	return e.Err
}

type ArtifactGenerationError struct {
	TicketID string
	Err      error
}

func (e ArtifactGenerationError) Error() string {
	return fmt.Sprintf("generating artifact for ticket %s: %s", e.TicketID, e.Err)
}

func (e ArtifactGenerationError) Unwrap() error {
	return e.Err
}
