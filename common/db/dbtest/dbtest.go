// Package dbtest opens throwaway SQLite databases with the production
// schema applied.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ticketbooth-services/common/credential"
	"github.com/ticketbooth-services/common/db"
	"github.com/ticketbooth-services/common/models"
)

// Open returns a migrated database that is closed when the test ends.
func Open(t testing.TB) *db.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{
		Driver:     db.SQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ticketbooth.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.Migrate(ctx))
	return conn
}

// SeedEvent inserts an event running from start to end.
func SeedEvent(t testing.TB, conn *db.DB, name string, start, end time.Time) int64 {
	t.Helper()

	now := time.Now().UTC()
	res, err := conn.ExecContext(context.Background(),
		`INSERT INTO events (name, start_at, end_at, location, short_description, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name, start.UTC(), end.UTC(), "Main Hall", "", "", now, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// SeedUpcomingEvent inserts an event starting tomorrow.
func SeedUpcomingEvent(t testing.TB, conn *db.DB, name string) int64 {
	start := time.Now().UTC().Add(24 * time.Hour)
	return SeedEvent(t, conn, name, start, start.Add(4*time.Hour))
}

// TicketType describes a seeded ticket type.
type TicketType struct {
	Classification string
	Cost           string
	Quantity       int
	IncludesItem   bool
	ItemName       string
}

// SeedTicketType inserts a ticket type under eventID.
func SeedTicketType(t testing.TB, conn *db.DB, eventID int64, tt TicketType) int64 {
	t.Helper()

	if tt.Cost == "" {
		tt.Cost = "0.00"
	}
	res, err := conn.ExecContext(context.Background(),
		`INSERT INTO ticket_types (event_id, classification, cost, quantity, includes_item, item_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		eventID, tt.Classification, tt.Cost, tt.Quantity, tt.IncludesItem, tt.ItemName, time.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// Ticket describes a seeded purchased ticket. Empty fields get defaults.
type Ticket struct {
	OrderID        string
	HolderName     string
	PurchaserName  string
	PurchaserEmail string
	PurchaserPhone string
	Credential     string
}

var issuer = credential.NewIssuer(0)

// SeedTicket inserts a ticket of ticketTypeID, creating its order row on
// first use. The item state follows the ticket type.
func SeedTicket(t testing.TB, conn *db.DB, ticketTypeID int64, tk Ticket) int64 {
	t.Helper()
	ctx := context.Background()

	var (
		eventID      int64
		includesItem bool
	)
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT event_id, includes_item FROM ticket_types WHERE id = ?`, ticketTypeID).Scan(&eventID, &includesItem))

	if tk.OrderID == "" {
		tk.OrderID = "order-1"
	}
	if tk.HolderName == "" {
		tk.HolderName = "Guest"
	}
	if tk.PurchaserName == "" {
		tk.PurchaserName = "Pat Buyer"
	}
	if tk.PurchaserEmail == "" {
		tk.PurchaserEmail = "pat@example.com"
	}
	if tk.PurchaserPhone == "" {
		tk.PurchaserPhone = "555-010-0100"
	}
	if tk.Credential == "" {
		tk.Credential = issuer.Issue()
	}
	itemStatus := "NONE"
	if includesItem {
		itemStatus = "PENDING"
	}

	now := time.Now().UTC()
	if Count(t, conn, `SELECT COUNT(*) FROM orders WHERE id = ?`, tk.OrderID) == 0 {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO orders (id, event_id, purchaser_first_name, purchaser_last_name, purchaser_email,
			                    purchaser_phone, subtotal, service_fee, processing_fee, total, created_at)
			VALUES (?, ?, ?, ?, ?, ?, '0.00', '0.00', '0.00', '0.00', ?)`,
			tk.OrderID, eventID, tk.PurchaserName, "", tk.PurchaserEmail, tk.PurchaserPhone, now)
		require.NoError(t, err)
	}

	res, err := conn.ExecContext(ctx, `
		INSERT INTO purchased_tickets (event_id, ticket_type_id, order_id, purchaser_name, purchaser_email,
		                               purchaser_phone, holder_name, credential, admission_status, item_status, created_at,
		                               holder_name_key, purchaser_name_key, purchaser_email_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'ISSUED', ?, ?, ?, ?, ?)`,
		eventID, ticketTypeID, tk.OrderID, tk.PurchaserName, tk.PurchaserEmail, tk.PurchaserPhone,
		tk.HolderName, tk.Credential, itemStatus, now,
		models.SearchKey(tk.HolderName), models.SearchKey(tk.PurchaserName), models.SearchKey(tk.PurchaserEmail))
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// Count runs a COUNT(*) query and returns the result.
func Count(t testing.TB, conn *db.DB, query string, args ...interface{}) int {
	t.Helper()

	var n int
	require.NoError(t, conn.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}
