package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ticketshop/entity"
	"ticketshop/event"
	"ticketshop/message"
)

const postgresUniqueValueViolationErrorCode = "23505"

const ticketColumns = `id, ticket_id, name, email, gender, amount, payment_status, provider_ref, failure_reason, created_at`

func CreateTicketsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tickets (
		id UUID PRIMARY KEY,
		ticket_id VARCHAR(32) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		gender VARCHAR(16) NOT NULL,
		amount BIGINT NOT NULL,
		payment_status VARCHAR(16) NOT NULL,
		provider_ref VARCHAR(255),
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS tickets_provider_ref_idx ON tickets (provider_ref);`)
	return err
}

type TicketStore struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewTicketStore(db *sqlx.DB, logger watermill.LoggerAdapter) TicketStore {
	if db == nil {
		panic("db is nil")
	}

	return TicketStore{
		db:     db,
		logger: logger,
	}
}

func (s TicketStore) Create(ctx context.Context, ticket entity.Ticket) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO tickets (`+ticketColumns+`)
		VALUES (:id, :ticket_id, :name, :email, :gender, :amount, :payment_status, :provider_ref, :failure_reason, :created_at)`,
		ticket)
	if isErrorUniqueViolation(err) {
		return entity.ErrTicketIDTaken
	}
	if err != nil {
		return fmt.Errorf("inserting ticket: %w", err)
	}

	return nil
}

func (s TicketStore) Get(ctx context.Context, id string) (entity.Ticket, error) {
	return s.getBy(ctx, "id", id)
}

func (s TicketStore) GetByTicketID(ctx context.Context, ticketID string) (entity.Ticket, error) {
	return s.getBy(ctx, "ticket_id", ticketID)
}

func (s TicketStore) GetByProviderRef(ctx context.Context, providerRef string) (entity.Ticket, error) {
	return s.getBy(ctx, "provider_ref", providerRef)
}

func (s TicketStore) getBy(ctx context.Context, column, value string) (entity.Ticket, error) {
	if column == "id" && !isUUID(value) {
		return entity.Ticket{}, entity.ErrTicketNotFound
	}

	var ticket entity.Ticket
	err := s.db.GetContext(ctx, &ticket,
		`SELECT `+ticketColumns+` FROM tickets WHERE `+column+` = $1 LIMIT 1`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, entity.ErrTicketNotFound
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("selecting ticket by %s: %w", column, err)
	}

	return ticket, nil
}

func (s TicketStore) List(ctx context.Context) ([]entity.Ticket, error) {
	var tickets []entity.Ticket
	err := s.db.SelectContext(ctx, &tickets, `SELECT `+ticketColumns+` FROM tickets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("selecting tickets: %w", err)
	}

	return tickets, nil
}

// Claim moves a pending ticket to change.To with a single conditional UPDATE,
// so two concurrent callers can never both win. The loser gets the ticket as
// it is stored and ok set to false.
func (s TicketStore) Claim(ctx context.Context, id string, change entity.StatusChange) (ticket entity.Ticket, ok bool, err error) {
	if !isUUID(id) {
		return entity.Ticket{}, false, entity.ErrTicketNotFound
	}

	err = updateInTx(ctx, s.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		ticket, ok, err = transition(ctx, tx, id, change, []entity.PaymentStatus{entity.StatusPending})
		if err != nil || !ok {
			return err
		}

		return s.publishTransition(ctx, tx, ticket)
	})
	if err != nil {
		return entity.Ticket{}, false, err
	}

	return ticket, ok, nil
}

func (s TicketStore) Update(ctx context.Context, id string, change entity.StatusChange) (ticket entity.Ticket, err error) {
	if !isUUID(id) {
		return entity.Ticket{}, entity.ErrTicketNotFound
	}

	var from []entity.PaymentStatus
	for _, status := range []entity.PaymentStatus{entity.StatusPending, entity.StatusProcessing} {
		if status.CanTransitionTo(change.To) {
			from = append(from, status)
		}
	}

	err = updateInTx(ctx, s.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		var ok bool
		ticket, ok, err = transition(ctx, tx, id, change, from)
		if err != nil {
			return err
		}

		if !ok {
			if ticket.PaymentStatus == change.To {
				return nil
			}
			return fmt.Errorf("%w: %s to %s", entity.ErrInvalidTransition, ticket.PaymentStatus, change.To)
		}

		return s.publishTransition(ctx, tx, ticket)
	})
	if err != nil {
		return entity.Ticket{}, err
	}

	return ticket, nil
}

// transition updates the ticket only when its current status is one of from.
// When nothing matched it returns the current row and false.
func transition(
	ctx context.Context,
	tx *sqlx.Tx,
	id string,
	change entity.StatusChange,
	from []entity.PaymentStatus,
) (entity.Ticket, bool, error) {
	var ticket entity.Ticket

	if len(from) > 0 {
		err := tx.GetContext(ctx, &ticket, `UPDATE tickets SET
				payment_status = $2,
				provider_ref = COALESCE(provider_ref, NULLIF($3, '')),
				failure_reason = $4
			WHERE id = $1 AND payment_status = ANY($5)
			RETURNING `+ticketColumns,
			id, change.To, change.ProviderRef, failureReason(change), pq.Array(statuses(from)))
		if err == nil {
			return ticket, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return entity.Ticket{}, false, fmt.Errorf("updating ticket status: %w", err)
		}
	}

	err := tx.GetContext(ctx, &ticket, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, false, entity.ErrTicketNotFound
	}
	if err != nil {
		return entity.Ticket{}, false, fmt.Errorf("selecting ticket: %w", err)
	}

	return ticket, false, nil
}

func failureReason(change entity.StatusChange) string {
	if change.To != entity.StatusFailed {
		return ""
	}
	return change.Reason
}

func statuses(from []entity.PaymentStatus) []string {
	out := make([]string, len(from))
	for i, status := range from {
		out[i] = string(status)
	}
	return out
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s TicketStore) publishTransition(ctx context.Context, tx *sqlx.Tx, ticket entity.Ticket) error {
	e := event.ForTransition(ticket)
	if e == nil {
		return nil
	}

	if err := message.PublishInTx(ctx, e, tx.Tx, s.logger); err != nil {
		return fmt.Errorf("publishing event in transaction: %w", err)
	}

	return nil
}

func updateInTx(
	ctx context.Context,
	db *sqlx.DB,
	isolation sql.IsolationLevel,
	fn func(ctx context.Context, tx *sqlx.Tx) error,
) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, rollbackErr)
			}
			return
		}

		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

func isErrorUniqueViolation(err error) bool {
	var psqlErr *pq.Error
	return errors.As(err, &psqlErr) && psqlErr.Code == postgresUniqueValueViolationErrorCode
}
