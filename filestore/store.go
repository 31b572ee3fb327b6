package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/gofrs/flock"

	"ticketshop/entity"
	"ticketshop/event"
)

type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Store keeps all tickets in one JSON file. Every mutation holds both the
// process mutex and an exclusive lock on a sibling lock file for the whole
// read-modify-write, so the claim is atomic across processes sharing the file.
type Store struct {
	path      string
	mu        sync.Mutex
	fileLock  *flock.Flock
	publisher Publisher
}

func New(path string, publisher Publisher) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	s := &Store{
		path:      path,
		fileLock:  flock.New(path + ".lock"),
		publisher: publisher,
	}

	if err := s.fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("locking store file: %w", err)
	}
	defer s.unlock()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.write(nil); err != nil {
			return nil, fmt.Errorf("initialising store file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking store file: %w", err)
	}

	return s, nil
}

func (s *Store) Create(ctx context.Context, ticket entity.Ticket) error {
	return s.mutate(func(tickets []entity.Ticket) ([]entity.Ticket, error) {
		for _, t := range tickets {
			if t.ID == ticket.ID || t.TicketID == ticket.TicketID {
				return nil, entity.ErrTicketIDTaken
			}
		}
		return append(tickets, ticket), nil
	})
}

func (s *Store) Get(ctx context.Context, id string) (entity.Ticket, error) {
	return s.find(func(t entity.Ticket) bool { return t.ID == id })
}

func (s *Store) GetByTicketID(ctx context.Context, ticketID string) (entity.Ticket, error) {
	return s.find(func(t entity.Ticket) bool { return t.TicketID == ticketID })
}

func (s *Store) GetByProviderRef(ctx context.Context, providerRef string) (entity.Ticket, error) {
	return s.find(func(t entity.Ticket) bool { return t.ProviderRef != nil && *t.ProviderRef == providerRef })
}

func (s *Store) List(ctx context.Context) ([]entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fileLock.RLock(); err != nil {
		return nil, fmt.Errorf("locking store file: %w", err)
	}
	defer s.unlock()

	return s.read()
}

// Claim moves a pending ticket to change.To. When the ticket is no longer
// pending it is returned unchanged with ok set to false.
func (s *Store) Claim(ctx context.Context, id string, change entity.StatusChange) (ticket entity.Ticket, ok bool, err error) {
	err = s.mutate(func(tickets []entity.Ticket) ([]entity.Ticket, error) {
		i, err := indexOf(tickets, id)
		if err != nil {
			return nil, err
		}

		ticket = tickets[i]
		if ticket.PaymentStatus != entity.StatusPending {
			return nil, nil
		}

		ticket = apply(ticket, change)
		tickets[i] = ticket
		ok = true

		return tickets, nil
	})
	if err != nil {
		return entity.Ticket{}, false, err
	}

	if ok {
		s.publishTransition(ctx, ticket)
	}

	return ticket, ok, nil
}

func (s *Store) Update(ctx context.Context, id string, change entity.StatusChange) (entity.Ticket, error) {
	var (
		ticket  entity.Ticket
		changed bool
	)
	err := s.mutate(func(tickets []entity.Ticket) ([]entity.Ticket, error) {
		i, err := indexOf(tickets, id)
		if err != nil {
			return nil, err
		}

		ticket = tickets[i]
		if ticket.PaymentStatus == change.To {
			return nil, nil
		}
		if !ticket.PaymentStatus.CanTransitionTo(change.To) {
			return nil, fmt.Errorf("%w: %s to %s", entity.ErrInvalidTransition, ticket.PaymentStatus, change.To)
		}

		ticket = apply(ticket, change)
		tickets[i] = ticket
		changed = true

		return tickets, nil
	})
	if err != nil {
		return entity.Ticket{}, err
	}

	if changed {
		s.publishTransition(ctx, ticket)
	}

	return ticket, nil
}

func apply(ticket entity.Ticket, change entity.StatusChange) entity.Ticket {
	ticket.PaymentStatus = change.To
	if ticket.ProviderRef == nil && change.ProviderRef != "" {
		ref := change.ProviderRef
		ticket.ProviderRef = &ref
	}
	if change.To == entity.StatusFailed {
		ticket.FailureReason = change.Reason
	}
	return ticket
}

func (s *Store) publishTransition(ctx context.Context, ticket entity.Ticket) {
	if s.publisher == nil {
		return
	}

	e := event.ForTransition(ticket)
	if e == nil {
		return
	}

	if err := s.publisher.Publish(ctx, e); err != nil {
		log.FromContext(ctx).
			WithError(err).
			WithField("ticket_id", ticket.TicketID).
			Error("Failed to publish ticket status event")
	}
}

func (s *Store) find(match func(entity.Ticket) bool) (entity.Ticket, error) {
	tickets, err := s.List(context.Background())
	if err != nil {
		return entity.Ticket{}, err
	}

	for _, t := range tickets {
		if match(t) {
			return t, nil
		}
	}

	return entity.Ticket{}, entity.ErrTicketNotFound
}

// mutate runs fn under the exclusive lock. A nil slice from fn means
// nothing changed and the file is left as it is.
func (s *Store) mutate(fn func([]entity.Ticket) ([]entity.Ticket, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fileLock.Lock(); err != nil {
		return fmt.Errorf("locking store file: %w", err)
	}
	defer s.unlock()

	tickets, err := s.read()
	if err != nil {
		return err
	}

	updated, err := fn(tickets)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}

	return s.write(updated)
}

func (s *Store) unlock() {
	if err := s.fileLock.Unlock(); err != nil {
		log.FromContext(context.Background()).WithError(err).Error("Failed to unlock store file")
	}
}

func (s *Store) read() ([]entity.Ticket, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	var tickets []entity.Ticket
	if err := json.Unmarshal(data, &tickets); err != nil {
		return nil, fmt.Errorf("decoding store file: %w", err)
	}

	return tickets, nil
}

func (s *Store) write(tickets []entity.Ticket) error {
	if tickets == nil {
		tickets = []entity.Ticket{}
	}

	data, err := json.MarshalIndent(tickets, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tickets: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tickets-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}

	return nil
}

func indexOf(tickets []entity.Ticket, id string) (int, error) {
	for i, t := range tickets {
		if t.ID == id {
			return i, nil
		}
	}
	return -1, entity.ErrTicketNotFound
}
