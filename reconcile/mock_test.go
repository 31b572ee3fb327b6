package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"ticketshop/clients"
	"ticketshop/entity"
	"ticketshop/reconcile"
)

type MockGateway struct {
	lock         sync.Mutex
	Charges      []clients.ChargeRequest
	Verified     []string
	Transactions map[string]clients.Transaction
	Err          error
	Delay        time.Duration
}

func (m *MockGateway) InitializeCharge(_ context.Context, req clients.ChargeRequest) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	m.Charges = append(m.Charges, req)

	return "https://checkout.example/pay/" + req.TxRef, nil
}

func (m *MockGateway) VerifyTransaction(_ context.Context, transactionID string) (clients.Transaction, error) {
	time.Sleep(m.Delay)

	m.lock.Lock()
	defer m.lock.Unlock()

	m.Verified = append(m.Verified, transactionID)
	if m.Err != nil {
		return clients.Transaction{}, m.Err
	}

	transaction, ok := m.Transactions[transactionID]
	if !ok {
		return clients.Transaction{}, entity.UpstreamError{Op: "verify transaction", StatusCode: 400}
	}

	return transaction, nil
}

func (m *MockGateway) VerifiedCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.Verified)
}

type MockArtifacts struct {
	lock     sync.Mutex
	Produced []string
	Err      error
	Delay    time.Duration
}

func (m *MockArtifacts) Produce(_ context.Context, ticket entity.Ticket) (string, error) {
	time.Sleep(m.Delay)

	m.lock.Lock()
	defer m.lock.Unlock()

	if m.Err != nil {
		return "", entity.ArtifactGenerationError{TicketID: ticket.TicketID, Err: m.Err}
	}
	m.Produced = append(m.Produced, ticket.TicketID)

	return "tickets/" + ticket.TicketID + ".pdf", nil
}

func (m *MockArtifacts) ProducedCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.Produced)
}

// collidingStore reports the first creates as ticket id collisions.
type collidingStore struct {
	reconcile.TicketStore
	lock       sync.Mutex
	collisions int
}

func (s *collidingStore) Create(ctx context.Context, ticket entity.Ticket) error {
	s.lock.Lock()
	if s.collisions > 0 {
		s.collisions--
		s.lock.Unlock()
		return entity.ErrTicketIDTaken
	}
	s.lock.Unlock()

	return s.TicketStore.Create(ctx, ticket)
}

// failingPaidStore fails the first updates to successful.
type failingPaidStore struct {
	reconcile.TicketStore
	lock     sync.Mutex
	failures int
}

func (s *failingPaidStore) Update(ctx context.Context, id string, change entity.StatusChange) (entity.Ticket, error) {
	s.lock.Lock()
	if change.To == entity.StatusSuccessful && s.failures > 0 {
		s.failures--
		s.lock.Unlock()
		return entity.Ticket{}, errStoreUnavailable
	}
	s.lock.Unlock()

	return s.TicketStore.Update(ctx, id, change)
}

var (
	errRender           = errors.New("render failed")
	errStoreUnavailable = errors.New("store unavailable")
)
