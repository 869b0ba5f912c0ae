package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ticketbooth-services/common/db"
	commonmodels "github.com/ticketbooth-services/common/models"
	"github.com/ticketbooth-services/services/ticket-lambda/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

type TicketRepository struct {
	db *db.DB
}

func NewTicketRepository(conn *db.DB) *TicketRepository {
	return &TicketRepository{db: conn}
}

// WithTransaction runs fn in a write transaction on the repository's pool.
func (r *TicketRepository) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return r.db.WithTransaction(ctx, fn)
}

// ============================================================
// GetEvent - load the event a purchase is for
// ============================================================
func (r *TicketRepository) GetEvent(ctx context.Context, q db.Querier, eventID int64) (*models.Event, error) {
	var (
		e          models.Event
		start, end db.Timestamp
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, start_at, end_at, location FROM events WHERE id = ?`, eventID,
	).Scan(&e.ID, &e.Name, &start, &end, &e.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	e.StartAt = start.Time
	e.EndAt = end.Time
	return &e, nil
}

// ============================================================
// InsertOrder - write the order row inside the purchase transaction
// ============================================================
func (r *TicketRepository) InsertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, event_id, purchaser_first_name, purchaser_last_name, purchaser_email, purchaser_phone,
			payment_reference, subtotal, service_fee, processing_fee, total, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.EventID,
		order.Purchaser.FirstName,
		order.Purchaser.LastName,
		order.Purchaser.Email,
		order.Purchaser.Phone,
		order.PaymentReference,
		order.Pricing.Subtotal.StringFixed(2),
		order.Pricing.ServiceFee.StringFixed(2),
		order.Pricing.ProcessingFee.StringFixed(2),
		order.Pricing.Total.StringFixed(2),
		order.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	return nil
}

// ============================================================
// InsertTicket - write one purchased ticket and return its id
// ============================================================
func (r *TicketRepository) InsertTicket(ctx context.Context, tx *sql.Tx, order *models.Order, ticket *models.IssuedTicket) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO purchased_tickets (
			event_id, ticket_type_id, order_id, purchaser_name, purchaser_email, purchaser_phone,
			holder_name, credential, admission_status, item_status, created_at,
			holder_name_key, purchaser_name_key, purchaser_email_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.EventID,
		ticket.TicketTypeID,
		order.ID,
		order.Purchaser.FullName(),
		order.Purchaser.Email,
		order.Purchaser.Phone,
		ticket.HolderName,
		ticket.Credential,
		string(commonmodels.AdmissionIssued),
		string(ticket.ItemStatus),
		order.CreatedAt.UTC(),
		commonmodels.SearchKey(ticket.HolderName),
		commonmodels.SearchKey(order.Purchaser.FullName()),
		commonmodels.SearchKey(order.Purchaser.Email),
	)
	if err != nil {
		return 0, fmt.Errorf("insert ticket for order %s: %w", order.ID, err)
	}
	return res.LastInsertId()
}

// ============================================================
// GetOrderDetail - order, event and tickets as persisted
// ============================================================
func (r *TicketRepository) GetOrderDetail(ctx context.Context, orderID string) (*models.OrderDetail, error) {
	var (
		d       models.OrderDetail
		created db.Timestamp
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, purchaser_first_name, purchaser_last_name, purchaser_email, purchaser_phone,
		       payment_reference, subtotal, service_fee, processing_fee, total, created_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(
		&d.Order.ID, &d.Order.EventID,
		&d.Order.Purchaser.FirstName, &d.Order.Purchaser.LastName,
		&d.Order.Purchaser.Email, &d.Order.Purchaser.Phone,
		&d.Order.PaymentReference,
		&d.Order.Pricing.Subtotal, &d.Order.Pricing.ServiceFee,
		&d.Order.Pricing.ProcessingFee, &d.Order.Pricing.Total,
		&created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	d.Order.CreatedAt = created.Time

	event, err := r.GetEvent(ctx, r.db, d.Order.EventID)
	if err != nil {
		return nil, err
	}
	d.Event = *event

	rows, err := r.db.QueryContext(ctx, `
		SELECT pt.id, pt.ticket_type_id, tt.classification, pt.holder_name, pt.credential,
		       tt.includes_item, tt.item_name, pt.item_status, tt.cost
		FROM purchased_tickets pt
		JOIN ticket_types tt ON tt.id = pt.ticket_type_id
		WHERE pt.order_id = ?
		ORDER BY pt.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load tickets for order %s: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t          models.IssuedTicket
			itemStatus string
		)
		if err := rows.Scan(&t.ID, &t.TicketTypeID, &t.Classification, &t.HolderName, &t.Credential,
			&t.IncludesItem, &t.ItemName, &itemStatus, &t.Cost); err != nil {
			return nil, err
		}
		t.ItemStatus = commonmodels.ItemState(itemStatus)
		d.Tickets = append(d.Tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &d, nil
}
