package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbooth-services/common/db"
	"github.com/ticketbooth-services/common/db/dbtest"
)

func insertOrderWithTickets(t *testing.T, conn *db.DB, eventID, ticketTypeID int64, n int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	orderID := fmt.Sprintf("order-%d-%d", ticketTypeID, now.UnixNano())

	_, err := conn.ExecContext(ctx, `
		INSERT INTO orders (id, event_id, purchaser_first_name, purchaser_last_name, purchaser_email, purchaser_phone,
			subtotal, service_fee, processing_fee, total, created_at)
		VALUES (?, ?, 'Ada', 'Lovelace', 'ada@example.com', '+15555550100', '0', '0', '0', '0', ?)`,
		orderID, eventID, now)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO purchased_tickets (event_id, ticket_type_id, order_id, purchaser_name, purchaser_email,
				purchaser_phone, holder_name, credential, admission_status, item_status, created_at)
			VALUES (?, ?, ?, 'Ada Lovelace', 'ada@example.com', '+15555550100', 'Holder', ?, 'ISSUED', 'NONE', ?)`,
			eventID, ticketTypeID, orderID, fmt.Sprintf("%s-%d", orderID, i), now)
		require.NoError(t, err)
	}
}

func TestAvailableCountReflectsSales(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger(conn)
	ctx := context.Background()

	eventID := dbtest.SeedUpcomingEvent(t, conn, "Jazz Night")
	typeID := dbtest.SeedTicketType(t, conn, eventID, dbtest.TicketType{Classification: "General", Cost: "25.00", Quantity: 5})

	available, err := ledger.AvailableCount(ctx, conn, typeID)
	require.NoError(t, err)
	assert.Equal(t, 5, available)

	insertOrderWithTickets(t, conn, eventID, typeID, 3)

	available, err = ledger.AvailableCount(ctx, conn, typeID)
	require.NoError(t, err)
	assert.Equal(t, 2, available)

	_, err = ledger.AvailableCount(ctx, conn, typeID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLockReturnsSnapshotInsideTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger(conn)
	ctx := context.Background()

	eventID := dbtest.SeedUpcomingEvent(t, conn, "Gala")
	typeID := dbtest.SeedTicketType(t, conn, eventID, dbtest.TicketType{
		Classification: "VIP", Cost: "120.50", Quantity: 2, IncludesItem: true, ItemName: "Tote bag",
	})
	insertOrderWithTickets(t, conn, eventID, typeID, 1)

	err := conn.WithTransaction(ctx, func(tx *sql.Tx) error {
		snap, err := ledger.Lock(ctx, tx, typeID)
		require.NoError(t, err)

		assert.Equal(t, eventID, snap.EventID)
		assert.Equal(t, "VIP", snap.Classification)
		assert.Equal(t, "120.5", snap.Cost.String())
		assert.True(t, snap.IncludesItem)
		assert.Equal(t, "Tote bag", snap.ItemName)
		assert.Equal(t, 1, snap.Sold)
		assert.Equal(t, 1, snap.Available())

		_, err = ledger.Lock(ctx, tx, typeID+1)
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestSnapshotsListsEventTypesWithSoldCounts(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger(conn)
	ctx := context.Background()

	eventID := dbtest.SeedUpcomingEvent(t, conn, "Festival")
	otherEvent := dbtest.SeedUpcomingEvent(t, conn, "Other")
	general := dbtest.SeedTicketType(t, conn, eventID, dbtest.TicketType{Classification: "General", Cost: "10.00", Quantity: 4})
	vip := dbtest.SeedTicketType(t, conn, eventID, dbtest.TicketType{Classification: "VIP", Cost: "50.00", Quantity: 1})
	dbtest.SeedTicketType(t, conn, otherEvent, dbtest.TicketType{Classification: "General", Quantity: 9})
	insertOrderWithTickets(t, conn, eventID, vip, 1)

	snaps, err := ledger.Snapshots(ctx, conn, eventID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, general, snaps[0].TicketTypeID)
	assert.Equal(t, 0, snaps[0].Sold)
	assert.Equal(t, 4, snaps[0].Available())
	assert.Equal(t, vip, snaps[1].TicketTypeID)
	assert.Equal(t, 1, snaps[1].Sold)
	assert.Equal(t, 0, snaps[1].Available())
}

func TestLockEventLocksAllTypes(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger(conn)
	ctx := context.Background()

	eventID := dbtest.SeedUpcomingEvent(t, conn, "Expo")
	a := dbtest.SeedTicketType(t, conn, eventID, dbtest.TicketType{Classification: "A", Quantity: 1})
	b := dbtest.SeedTicketType(t, conn, eventID, dbtest.TicketType{Classification: "B", Quantity: 1})

	err := conn.WithTransaction(ctx, func(tx *sql.Tx) error {
		snaps, err := ledger.LockEvent(ctx, tx, eventID)
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, a, snaps[0].TicketTypeID)
		assert.Equal(t, b, snaps[1].TicketTypeID)
		return nil
	})
	require.NoError(t, err)
}

func TestPolicyGuards(t *testing.T) {
	tests := []struct {
		name        string
		snap        Snapshot
		newQuantity int
		canDecrease bool
		canDelete   bool
		available   int
	}{
		{"unsold", Snapshot{Quantity: 10, Sold: 0}, 0, true, true, 10},
		{"partly sold, shrink to sold", Snapshot{Quantity: 10, Sold: 4}, 4, true, false, 6},
		{"partly sold, shrink below sold", Snapshot{Quantity: 10, Sold: 4}, 3, false, false, 6},
		{"sold out", Snapshot{Quantity: 2, Sold: 2}, 5, true, false, 0},
		{"oversold data never goes negative", Snapshot{Quantity: 1, Sold: 3}, 3, true, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canDecrease, CanDecreaseQuantity(&tt.snap, tt.newQuantity))
			assert.Equal(t, tt.canDelete, CanDelete(&tt.snap))
			assert.Equal(t, tt.available, tt.snap.Available())
			assert.Equal(t, tt.snap.Sold > 0, tt.snap.SaleLocked())
		})
	}
}
