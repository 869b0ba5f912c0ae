package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ticketbooth-services/common/db"
	"github.com/ticketbooth-services/services/event-lambda/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

type EventRepository struct {
	db *db.DB
}

func NewEventRepository(conn *db.DB) *EventRepository {
	return &EventRepository{db: conn}
}

// DB exposes the pool for reads that do not need a transaction.
func (r *EventRepository) DB() *db.DB {
	return r.db
}

// WithTransaction runs fn in a write transaction on the repository's pool.
func (r *EventRepository) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return r.db.WithTransaction(ctx, fn)
}

const eventColumns = `id, name, start_at, end_at, location, short_description, COALESCE(description, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		e                            models.Event
		start, end, created, updated db.Timestamp
	)
	if err := row.Scan(&e.ID, &e.Name, &start, &end, &e.Location, &e.ShortDescription,
		&e.Description, &created, &updated); err != nil {
		return nil, err
	}
	e.StartAt = start.Time
	e.EndAt = end.Time
	e.CreatedAt = created.Time
	e.UpdatedAt = updated.Time
	return &e, nil
}

// ============================================================
// ListEvents - every event ordered by start time
// ============================================================
func (r *EventRepository) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// ============================================================
// GetEvent
// ============================================================
func (r *EventRepository) GetEvent(ctx context.Context, q db.Querier, eventID int64) (*models.Event, error) {
	e, err := scanEvent(q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	return e, nil
}

// LockEvent row-locks the event for the rest of tx.
func (r *EventRepository) LockEvent(ctx context.Context, tx *sql.Tx, eventID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = ?`+r.db.ForUpdate(), eventID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock event %d: %w", eventID, err)
	}
	return nil
}

// ============================================================
// InsertEvent
// ============================================================
func (r *EventRepository) InsertEvent(ctx context.Context, tx *sql.Tx, in *models.EventInput, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO events (name, start_at, end_at, location, short_description, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.StartAt.UTC(), in.EndAt.UTC(), in.Location, in.ShortDescription, in.Description,
		now.UTC(), now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

// ============================================================
// UpdateEvent - write back every mutable column
// ============================================================
func (r *EventRepository) UpdateEvent(ctx context.Context, q db.Querier, e *models.Event) error {
	_, err := q.ExecContext(ctx, `
		UPDATE events
		SET name = ?, start_at = ?, end_at = ?, location = ?, short_description = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		e.Name, e.StartAt.UTC(), e.EndAt.UTC(), e.Location, e.ShortDescription, e.Description,
		e.UpdatedAt.UTC(), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update event %d: %w", e.ID, err)
	}
	return nil
}

// ============================================================
// DeleteEvent - remove the event and its ticket types
// ============================================================
func (r *EventRepository) DeleteEvent(ctx context.Context, tx *sql.Tx, eventID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_types WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("delete ticket types of event %d: %w", eventID, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", eventID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================
// Ticket types
// ============================================================

// InsertTicketType writes a new ticket type for eventID.
func (r *EventRepository) InsertTicketType(ctx context.Context, q db.Querier, eventID int64, in *models.TicketTypeInput, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO ticket_types (event_id, classification, cost, quantity, includes_item, item_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		eventID, in.Classification, in.Cost.StringFixed(2), in.Quantity, in.IncludesItem, in.ItemName, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert ticket type: %w", err)
	}
	return res.LastInsertId()
}

// ClassificationTaken reports whether another ticket type of the event
// already uses the classification, compared case-insensitively.
func (r *EventRepository) ClassificationTaken(ctx context.Context, q db.Querier, eventID int64, classification string, exceptID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ticket_types
		WHERE event_id = ? AND LOWER(classification) = ? AND id <> ?`,
		eventID, strings.ToLower(classification), exceptID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check classification: %w", err)
	}
	return n > 0, nil
}

// UpdateTicketType writes back the mutable columns of a ticket type.
func (r *EventRepository) UpdateTicketType(ctx context.Context, tx *sql.Tx, id int64, in *models.TicketTypeInput) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE ticket_types
		SET classification = ?, cost = ?, quantity = ?, includes_item = ?, item_name = ?
		WHERE id = ?`,
		in.Classification, in.Cost.StringFixed(2), in.Quantity, in.IncludesItem, in.ItemName, id,
	)
	if err != nil {
		return fmt.Errorf("update ticket type %d: %w", id, err)
	}
	return nil
}

// DeleteTicketType removes one ticket type.
func (r *EventRepository) DeleteTicketType(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_types WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete ticket type %d: %w", id, err)
	}
	return nil
}
