package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"ticketshop/entity"
	"ticketshop/observability"
)

var ticketIDPattern = regexp.MustCompile(`^[A-Z0-9-]+$`)

type RenderFunc func(ticket entity.Ticket, currency string) ([]byte, error)

// Store keeps one rendered PDF per ticket under dir, named by ticket id.
type Store struct {
	dir      string
	currency string
	render   RenderFunc
}

func NewStore(dir, currency string, render RenderFunc) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	if render == nil {
		render = Render
	}

	return &Store{
		dir:      dir,
		currency: currency,
		render:   render,
	}, nil
}

func (s *Store) Path(ticketID string) string {
	return filepath.Join(s.dir, ticketID+".pdf")
}

// Produce renders the ticket and writes its PDF, replacing any previous copy.
func (s *Store) Produce(ctx context.Context, ticket entity.Ticket) (string, error) {
	data, err := s.renderTicket(ctx, ticket)
	if err != nil {
		return "", err
	}

	path := s.Path(ticket.TicketID)
	if err := writeFile(path, data); err != nil {
		return "", entity.ArtifactGenerationError{TicketID: ticket.TicketID, Err: err}
	}

	log.FromContext(ctx).WithField("ticket_id", ticket.TicketID).WithField("path", path).Info("Ticket PDF written")

	return path, nil
}

// Load returns the stored PDF of the ticket, rendering and storing it first
// when it does not exist yet.
func (s *Store) Load(ctx context.Context, ticket entity.Ticket) ([]byte, error) {
	if !ticketIDPattern.MatchString(ticket.TicketID) {
		return nil, fmt.Errorf("invalid ticket id %q", ticket.TicketID)
	}

	data, err := os.ReadFile(s.Path(ticket.TicketID))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading ticket pdf: %w", err)
	}

	data, err = s.renderTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}

	if err := writeFile(s.Path(ticket.TicketID), data); err != nil {
		return nil, entity.ArtifactGenerationError{TicketID: ticket.TicketID, Err: err}
	}

	return data, nil
}

func (s *Store) renderTicket(ctx context.Context, ticket entity.Ticket) ([]byte, error) {
	if !ticketIDPattern.MatchString(ticket.TicketID) {
		return nil, entity.ArtifactGenerationError{
			TicketID: ticket.TicketID,
			Err:      fmt.Errorf("invalid ticket id %q", ticket.TicketID),
		}
	}

	start := time.Now()
	data, err := s.render(ticket, s.currency)
	observability.ArtifactRenderDuration.Observe(time.Since(start).Seconds())
	observability.ArtifactRenders.WithLabelValues(observability.StatusLabel(err)).Inc()
	if err != nil {
		log.FromContext(ctx).WithError(err).WithField("ticket_id", ticket.TicketID).Error("Failed to render ticket PDF")
		return nil, entity.ArtifactGenerationError{TicketID: ticket.TicketID, Err: err}
	}

	return data, nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ticket-*.pdf")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
