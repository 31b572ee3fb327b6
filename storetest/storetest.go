// Package storetest holds the behaviour every ticket store backend must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketshop/entity"
)

type Store interface {
	Create(ctx context.Context, ticket entity.Ticket) error
	Get(ctx context.Context, id string) (entity.Ticket, error)
	GetByTicketID(ctx context.Context, ticketID string) (entity.Ticket, error)
	GetByProviderRef(ctx context.Context, providerRef string) (entity.Ticket, error)
	Claim(ctx context.Context, id string, change entity.StatusChange) (entity.Ticket, bool, error)
	Update(ctx context.Context, id string, change entity.StatusChange) (entity.Ticket, error)
	List(ctx context.Context) ([]entity.Ticket, error)
}

func Run(t *testing.T, store Store) {
	t.Run("create and get", func(t *testing.T) { testCreateAndGet(t, store) })
	t.Run("ticket id is unique", func(t *testing.T) { testTicketIDUnique(t, store) })
	t.Run("claim pending once", func(t *testing.T) { testClaimOnce(t, store) })
	t.Run("concurrent claims", func(t *testing.T) { testConcurrentClaims(t, store) })
	t.Run("forward only updates", func(t *testing.T) { testForwardOnly(t, store) })
	t.Run("provider ref set once", func(t *testing.T) { testProviderRefSetOnce(t, store) })
	t.Run("list", func(t *testing.T) { testList(t, store) })
	t.Run("not found", func(t *testing.T) { testNotFound(t, store) })
}

func NewTicket() entity.Ticket {
	return entity.NewTicket(entity.Intake{
		Name:   "Ada Lovelace",
		Email:  "ada@example.com",
		Gender: string(entity.GenderFemale),
		Amount: 3000,
	}, time.Now())
}

func createTicket(t *testing.T, store Store) entity.Ticket {
	t.Helper()

	ticket := NewTicket()
	require.NoError(t, store.Create(context.Background(), ticket))

	return ticket
}

func testCreateAndGet(t *testing.T, store Store) {
	ctx := context.Background()
	ticket := createTicket(t, store)

	byID, err := store.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketID, byID.TicketID)
	assert.Equal(t, ticket.Name, byID.Name)
	assert.Equal(t, ticket.Email, byID.Email)
	assert.Equal(t, ticket.Gender, byID.Gender)
	assert.Equal(t, ticket.Amount, byID.Amount)
	assert.Equal(t, entity.StatusPending, byID.PaymentStatus)
	assert.Nil(t, byID.ProviderRef)
	assert.True(t, ticket.CreatedAt.Equal(byID.CreatedAt), "created at %s, stored %s", ticket.CreatedAt, byID.CreatedAt)

	byTicketID, err := store.GetByTicketID(ctx, ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, byTicketID.ID)
}

func testTicketIDUnique(t *testing.T, store Store) {
	ticket := createTicket(t, store)

	duplicate := NewTicket()
	duplicate.TicketID = ticket.TicketID

	err := store.Create(context.Background(), duplicate)
	require.ErrorIs(t, err, entity.ErrTicketIDTaken)
}

func testClaimOnce(t *testing.T, store Store) {
	ctx := context.Background()
	ticket := createTicket(t, store)

	claimed, ok, err := store.Claim(ctx, ticket.ID, entity.StatusChange{To: entity.StatusProcessing, ProviderRef: "FLW-1"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entity.StatusProcessing, claimed.PaymentStatus)
	assert.Equal(t, "FLW-1", claimed.ProviderReference())

	again, ok, err := store.Claim(ctx, ticket.ID, entity.StatusChange{To: entity.StatusProcessing, ProviderRef: "FLW-2"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, entity.StatusProcessing, again.PaymentStatus)
	assert.Equal(t, "FLW-1", again.ProviderReference())
}

func testConcurrentClaims(t *testing.T, store Store) {
	ctx := context.Background()
	ticket := createTicket(t, store)

	const attempts = 20

	var (
		wg   sync.WaitGroup
		lock sync.Mutex
		won  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, ok, err := store.Claim(ctx, ticket.ID, entity.StatusChange{To: entity.StatusProcessing})
			assert.NoError(t, err)

			if ok {
				lock.Lock()
				won++
				lock.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
}

func testForwardOnly(t *testing.T, store Store) {
	ctx := context.Background()
	ticket := createTicket(t, store)

	_, err := store.Update(ctx, ticket.ID, entity.StatusChange{To: entity.StatusPending})
	require.NoError(t, err, "same status is a no-op")

	_, ok, err := store.Claim(ctx, ticket.ID, entity.StatusChange{To: entity.StatusProcessing})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = store.Update(ctx, ticket.ID, entity.StatusChange{To: entity.StatusPending})
	require.ErrorIs(t, err, entity.ErrInvalidTransition)

	updated, err := store.Update(ctx, ticket.ID, entity.StatusChange{To: entity.StatusSuccessful})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSuccessful, updated.PaymentStatus)

	updated, err = store.Update(ctx, ticket.ID, entity.StatusChange{To: entity.StatusSuccessful})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSuccessful, updated.PaymentStatus)

	_, err = store.Update(ctx, ticket.ID, entity.StatusChange{To: entity.StatusFailed, Reason: "late failure"})
	require.ErrorIs(t, err, entity.ErrInvalidTransition)

	stored, err := store.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSuccessful, stored.PaymentStatus)
	assert.Empty(t, stored.FailureReason)

	other := createTicket(t, store)
	failed, err := store.Update(ctx, other.ID, entity.StatusChange{To: entity.StatusFailed, Reason: "card declined"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, failed.PaymentStatus)
	assert.Equal(t, "card declined", failed.FailureReason)

	_, ok, err = store.Claim(ctx, other.ID, entity.StatusChange{To: entity.StatusProcessing})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testProviderRefSetOnce(t *testing.T, store Store) {
	ctx := context.Background()
	ticket := createTicket(t, store)
	ref := "FLW-" + uuid.NewString()

	_, err := store.Update(ctx, ticket.ID, entity.StatusChange{To: entity.StatusProcessing, ProviderRef: ref})
	require.NoError(t, err)

	updated, err := store.Update(ctx, ticket.ID, entity.StatusChange{To: entity.StatusSuccessful, ProviderRef: "FLW-other"})
	require.NoError(t, err)
	assert.Equal(t, ref, updated.ProviderReference())

	byRef, err := store.GetByProviderRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, byRef.ID)
}

func testList(t *testing.T, store Store) {
	ctx := context.Background()
	first := createTicket(t, store)
	second := createTicket(t, store)

	tickets, err := store.List(ctx)
	require.NoError(t, err)

	ids := make(map[string]bool, len(tickets))
	for _, ticket := range tickets {
		ids[ticket.ID] = true
	}
	assert.True(t, ids[first.ID])
	assert.True(t, ids[second.ID])
}

func testNotFound(t *testing.T, store Store) {
	ctx := context.Background()
	missing := uuid.NewString()

	_, err := store.Get(ctx, missing)
	assert.ErrorIs(t, err, entity.ErrTicketNotFound)

	_, err = store.GetByTicketID(ctx, "RSG-PPOOL-000000")
	assert.ErrorIs(t, err, entity.ErrTicketNotFound)

	_, err = store.GetByProviderRef(ctx, "FLW-"+missing)
	assert.ErrorIs(t, err, entity.ErrTicketNotFound)

	_, _, err = store.Claim(ctx, missing, entity.StatusChange{To: entity.StatusProcessing})
	assert.ErrorIs(t, err, entity.ErrTicketNotFound)

	_, err = store.Update(ctx, missing, entity.StatusChange{To: entity.StatusFailed})
	assert.ErrorIs(t, err, entity.ErrTicketNotFound)
}
