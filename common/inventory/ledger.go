// Package inventory answers how many tickets of a type remain and gates
// sales and admin edits on that answer. Sold counts are always derived
// from purchased_tickets at the instant of the call.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ticketbooth-services/common/db"
)

// ErrNotFound is returned when a ticket type does not exist.
var ErrNotFound = errors.New("ticket type not found")

// Snapshot is a ticket type together with its sold count at one instant.
type Snapshot struct {
	TicketTypeID   int64
	EventID        int64
	Classification string
	Cost           decimal.Decimal
	Quantity       int
	Sold           int
	IncludesItem   bool
	ItemName       string
}

// Available never goes below zero.
func (s *Snapshot) Available() int {
	if s.Sold >= s.Quantity {
		return 0
	}
	return s.Quantity - s.Sold
}

// SaleLocked reports whether any ticket of this type has been sold.
func (s *Snapshot) SaleLocked() bool {
	return s.Sold > 0
}

// CanDecreaseQuantity reports whether quantity may be set to newQuantity.
func CanDecreaseQuantity(s *Snapshot, newQuantity int) bool {
	return newQuantity >= s.Sold
}

// CanDelete reports whether the ticket type has no sales.
func CanDelete(s *Snapshot) bool {
	return s.Sold == 0
}

// Ledger reads ticket type inventory.
type Ledger struct {
	db *db.DB
}

func NewLedger(conn *db.DB) *Ledger {
	return &Ledger{db: conn}
}

const snapshotColumns = `id, event_id, classification, cost, quantity, includes_item, item_name`

// SoldCount counts purchased tickets of a type on q.
func (l *Ledger) SoldCount(ctx context.Context, q db.Querier, ticketTypeID int64) (int, error) {
	var sold int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchased_tickets WHERE ticket_type_id = ?`, ticketTypeID).Scan(&sold)
	if err != nil {
		return 0, fmt.Errorf("count sold tickets: %w", err)
	}
	return sold, nil
}

// AvailableCount returns quantity minus sold for a ticket type on q.
func (l *Ledger) AvailableCount(ctx context.Context, q db.Querier, ticketTypeID int64) (int, error) {
	var quantity int
	err := q.QueryRowContext(ctx,
		`SELECT quantity FROM ticket_types WHERE id = ?`, ticketTypeID).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load ticket type: %w", err)
	}

	sold, err := l.SoldCount(ctx, q, ticketTypeID)
	if err != nil {
		return 0, err
	}
	snap := Snapshot{Quantity: quantity, Sold: sold}
	return snap.Available(), nil
}

// Lock row-locks the ticket type for the rest of tx and returns its
// snapshot. The sold count is read after the lock is held, so no other
// purchase of the same type can interleave until tx ends.
func (l *Ledger) Lock(ctx context.Context, tx *sql.Tx, ticketTypeID int64) (*Snapshot, error) {
	var s Snapshot
	err := tx.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM ticket_types WHERE id = ?`+l.db.ForUpdate(),
		ticketTypeID,
	).Scan(&s.TicketTypeID, &s.EventID, &s.Classification, &s.Cost, &s.Quantity, &s.IncludesItem, &s.ItemName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock ticket type %d: %w", ticketTypeID, err)
	}

	if s.Sold, err = l.SoldCount(ctx, tx, ticketTypeID); err != nil {
		return nil, err
	}
	return &s, nil
}

// LockEvent locks every ticket type of an event in id order.
func (l *Ledger) LockEvent(ctx context.Context, tx *sql.Tx, eventID int64) ([]*Snapshot, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM ticket_types WHERE event_id = ? ORDER BY id`+l.db.ForUpdate(), eventID)
	if err != nil {
		return nil, fmt.Errorf("lock event ticket types: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snaps := make([]*Snapshot, 0, len(ids))
	for _, id := range ids {
		s, err := l.Lock(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// Snapshots lists an event's ticket types with sold counts, ordered by id.
func (l *Ledger) Snapshots(ctx context.Context, q db.Querier, eventID int64) ([]*Snapshot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT tt.id, tt.event_id, tt.classification, tt.cost, tt.quantity, tt.includes_item, tt.item_name,
		       (SELECT COUNT(*) FROM purchased_tickets pt WHERE pt.ticket_type_id = tt.id) AS sold
		FROM ticket_types tt
		WHERE tt.event_id = ?
		ORDER BY tt.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.TicketTypeID, &s.EventID, &s.Classification, &s.Cost, &s.Quantity,
			&s.IncludesItem, &s.ItemName, &s.Sold); err != nil {
			return nil, err
		}
		snaps = append(snaps, &s)
	}
	return snaps, rows.Err()
}
