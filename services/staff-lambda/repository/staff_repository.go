package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ticketbooth-services/common/db"
	commonmodels "github.com/ticketbooth-services/common/models"
	"github.com/ticketbooth-services/services/staff-lambda/models"
)

// ErrNotFound is returned when no ticket matches.
var ErrNotFound = errors.New("ticket not found")

// StaffRepository reads and transitions purchased tickets at the door.
type StaffRepository struct {
	db *db.DB
}

func NewStaffRepository(conn *db.DB) *StaffRepository {
	return &StaffRepository{db: conn}
}

const ticketSelect = `
	SELECT pt.id, pt.event_id, pt.ticket_type_id, tt.classification, pt.order_id,
	       pt.purchaser_name, pt.purchaser_email, pt.purchaser_phone, pt.holder_name, pt.credential,
	       pt.admission_status, pt.checked_in_at, pt.checked_in_by,
	       tt.includes_item, tt.item_name, pt.item_status, pt.item_collected_at, pt.item_collected_by,
	       pt.created_at
	FROM purchased_tickets pt
	JOIN ticket_types tt ON tt.id = pt.ticket_type_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (*commonmodels.PurchasedTicket, error) {
	var (
		t                        commonmodels.PurchasedTicket
		admission, item          string
		checkedInAt, collectedAt db.Timestamp
		createdAt                db.Timestamp
		checkedInBy, collectedBy sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.EventID, &t.TicketTypeID, &t.Classification, &t.OrderID,
		&t.PurchaserName, &t.PurchaserEmail, &t.PurchaserPhone, &t.HolderName, &t.Credential,
		&admission, &checkedInAt, &checkedInBy,
		&t.IncludesItem, &t.ItemName, &item, &collectedAt, &collectedBy,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	t.Admission = commonmodels.AdmissionState(admission)
	t.Item = commonmodels.ItemState(item)
	t.CheckedInAt = checkedInAt.Ptr()
	t.ItemCollectedAt = collectedAt.Ptr()
	t.CreatedAt = createdAt.Time
	if checkedInBy.Valid {
		t.CheckedInBy = &checkedInBy.String
	}
	if collectedBy.Valid {
		t.ItemCollectedBy = &collectedBy.String
	}
	t.SyncFlags()
	return &t, nil
}

func (r *StaffRepository) queryTickets(ctx context.Context, query string, args ...interface{}) ([]commonmodels.PurchasedTicket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []commonmodels.PurchasedTicket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// ============================================================
// GetTicket - one ticket, scoped to its event
// ============================================================
func (r *StaffRepository) GetTicket(ctx context.Context, eventID, ticketID int64) (*commonmodels.PurchasedTicket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx,
		ticketSelect+` WHERE pt.id = ? AND pt.event_id = ?`, ticketID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket %d: %w", ticketID, err)
	}
	return t, nil
}

// ============================================================
// GetTicketByCredential - resolve a scanned code across events
// ============================================================
func (r *StaffRepository) GetTicketByCredential(ctx context.Context, credential string) (*commonmodels.PurchasedTicket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx,
		ticketSelect+` WHERE pt.credential = ?`, credential))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket by credential: %w", err)
	}
	return t, nil
}

// ============================================================
// Search - case-insensitive substring match inside one event
// pattern must already be folded with SearchKey and escaped with '!'.
// Names and email match their stored *_key columns; phone and order id
// are ASCII.
// ============================================================
func (r *StaffRepository) Search(ctx context.Context, eventID int64, pattern string, limit int) ([]commonmodels.PurchasedTicket, error) {
	tickets, err := r.queryTickets(ctx, ticketSelect+`
		WHERE pt.event_id = ?
		  AND (pt.holder_name_key LIKE ? ESCAPE '!'
		    OR pt.purchaser_name_key LIKE ? ESCAPE '!'
		    OR pt.purchaser_email_key LIKE ? ESCAPE '!'
		    OR LOWER(pt.purchaser_phone) LIKE ? ESCAPE '!'
		    OR LOWER(pt.order_id) LIKE ? ESCAPE '!')
		ORDER BY pt.holder_name, pt.id
		LIMIT ?`,
		eventID, pattern, pattern, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search tickets: %w", err)
	}
	return tickets, nil
}

// ============================================================
// ListOrder - every ticket of an order inside one event
// ============================================================
func (r *StaffRepository) ListOrder(ctx context.Context, eventID int64, orderID string) ([]commonmodels.PurchasedTicket, error) {
	tickets, err := r.queryTickets(ctx, ticketSelect+`
		WHERE pt.event_id = ? AND pt.order_id = ?
		ORDER BY pt.holder_name, pt.id`, eventID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order %s: %w", orderID, err)
	}
	return tickets, nil
}

// ============================================================
// MarkCheckedIn - ISSUED -> CHECKED_IN, guarded in the WHERE clause
// Returns the number of rows transitioned (0 or 1).
// ============================================================
func (r *StaffRepository) MarkCheckedIn(ctx context.Context, eventID, ticketID int64, at time.Time, actor string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchased_tickets
		SET admission_status = ?, checked_in_at = ?, checked_in_by = ?
		WHERE id = ? AND event_id = ? AND admission_status = ?`,
		string(commonmodels.AdmissionCheckedIn), at.UTC(), actor,
		ticketID, eventID, string(commonmodels.AdmissionIssued))
	if err != nil {
		return 0, fmt.Errorf("failed to update checkin: %w", err)
	}
	return res.RowsAffected()
}

// ============================================================
// MarkGroupCheckedIn - admit every still-ISSUED ticket of the set
// The candidates are row-locked first so the returned ids are exactly
// the tickets this call transitioned.
// ============================================================
func (r *StaffRepository) MarkGroupCheckedIn(ctx context.Context, eventID int64, ticketIDs []int64, at time.Time, actor string) ([]int64, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}

	var admitted []int64
	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		args := make([]interface{}, 0, len(ticketIDs)+2)
		args = append(args, eventID, string(commonmodels.AdmissionIssued))
		for _, id := range ticketIDs {
			args = append(args, id)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM purchased_tickets
			WHERE event_id = ? AND admission_status = ?
			  AND id IN (`+db.Placeholders(len(ticketIDs))+`)
			ORDER BY id`+r.db.ForUpdate(), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			admitted = append(admitted, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()
		if len(admitted) == 0 {
			return nil
		}

		args = make([]interface{}, 0, len(admitted)+4)
		args = append(args, string(commonmodels.AdmissionCheckedIn), at.UTC(), actor, string(commonmodels.AdmissionIssued))
		for _, id := range admitted {
			args = append(args, id)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE purchased_tickets
			SET admission_status = ?, checked_in_at = ?, checked_in_by = ?
			WHERE admission_status = ?
			  AND id IN (`+db.Placeholders(len(admitted))+`)`, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(n) != len(admitted) {
			return fmt.Errorf("admitted %d of %d locked tickets", n, len(admitted))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update group checkin: %w", err)
	}
	return admitted, nil
}

// ============================================================
// MarkItemCollected - PENDING -> COLLECTED, guarded in the WHERE clause
// ============================================================
func (r *StaffRepository) MarkItemCollected(ctx context.Context, eventID, ticketID int64, at time.Time, actor string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchased_tickets
		SET item_status = ?, item_collected_at = ?, item_collected_by = ?
		WHERE id = ? AND event_id = ? AND item_status = ?`,
		string(commonmodels.ItemCollected), at.UTC(), actor,
		ticketID, eventID, string(commonmodels.ItemPending))
	if err != nil {
		return 0, fmt.Errorf("failed to update item collection: %w", err)
	}
	return res.RowsAffected()
}

// EventExists reports whether eventID names an event.
func (r *StaffRepository) EventExists(ctx context.Context, eventID int64) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE id = ?`, eventID).Scan(&n); err != nil {
		return false, fmt.Errorf("check event %d: %w", eventID, err)
	}
	return n > 0, nil
}

// ============================================================
// EventStats - per ticket type tallies for the door dashboard
// ============================================================
func (r *StaffRepository) EventStats(ctx context.Context, eventID int64) (*models.EventStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tt.id, tt.classification, tt.quantity, tt.includes_item,
		       COUNT(pt.id),
		       COALESCE(SUM(CASE WHEN pt.admission_status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN pt.item_status = ? THEN 1 ELSE 0 END), 0)
		FROM ticket_types tt
		LEFT JOIN purchased_tickets pt ON pt.ticket_type_id = tt.id
		WHERE tt.event_id = ?
		GROUP BY tt.id, tt.classification, tt.quantity, tt.includes_item
		ORDER BY tt.id`,
		string(commonmodels.AdmissionCheckedIn), string(commonmodels.ItemCollected), eventID)
	if err != nil {
		return nil, fmt.Errorf("event stats %d: %w", eventID, err)
	}
	defer rows.Close()

	stats := &models.EventStats{EventID: eventID, ByType: []models.TypeStats{}}
	for rows.Next() {
		var (
			ts           models.TypeStats
			includesItem bool
		)
		if err := rows.Scan(&ts.TicketTypeID, &ts.Classification, &ts.Quantity, &includesItem,
			&ts.Sold, &ts.CheckedIn, &ts.ItemsCollected); err != nil {
			return nil, err
		}
		stats.TicketsSold += ts.Sold
		stats.CheckedIn += ts.CheckedIn
		stats.ItemsCollected += ts.ItemsCollected
		if includesItem {
			stats.ItemsIncluded += ts.Sold
		}
		stats.ByType = append(stats.ByType, ts)
	}
	return stats, rows.Err()
}
