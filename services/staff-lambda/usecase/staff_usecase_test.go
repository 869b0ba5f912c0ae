package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbooth-services/common/db"
	"github.com/ticketbooth-services/common/db/dbtest"
	apperrors "github.com/ticketbooth-services/common/errors"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/metrics"
	commonmodels "github.com/ticketbooth-services/common/models"
	"github.com/ticketbooth-services/common/realtime"
	"github.com/ticketbooth-services/services/staff-lambda/repository"
)

type recordingBroadcaster struct {
	activity chan realtime.DoorActivity
}

func (b *recordingBroadcaster) Publish(_ context.Context, a realtime.DoorActivity) error {
	b.activity <- a
	return nil
}

type door struct {
	conn        *db.DB
	uc          *StaffUseCase
	broadcaster *recordingBroadcaster
	eventID     int64
	general     int64
	merch       int64
}

func newDoor(t *testing.T) *door {
	t.Helper()

	conn := dbtest.Open(t)
	b := &recordingBroadcaster{activity: make(chan realtime.DoorActivity, 64)}
	uc := NewStaffUseCase(repository.NewStaffRepository(conn), b, metrics.New(), logger.Discard())

	eventID := dbtest.SeedUpcomingEvent(t, conn, "Summit")
	return &door{
		conn:        conn,
		uc:          uc,
		broadcaster: b,
		eventID:     eventID,
		general: dbtest.SeedTicketType(t, conn, eventID, dbtest.TicketType{
			Classification: "General", Cost: "10.00", Quantity: 100,
		}),
		merch: dbtest.SeedTicketType(t, conn, eventID, dbtest.TicketType{
			Classification: "Merch Pack", Cost: "40.00", Quantity: 100, IncludesItem: true, ItemName: "T-shirt",
		}),
	}
}

func TestCheckInTwiceKeepsFirstTimestamp(t *testing.T) {
	d := newDoor(t)
	ctx := context.Background()
	ticketID := dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{HolderName: "Alice"})

	first := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	d.uc.now = func() time.Time { return first }

	ticket, err := d.uc.CheckIn(ctx, d.eventID, ticketID, "vol-1")
	require.NoError(t, err)
	assert.Equal(t, commonmodels.AdmissionCheckedIn, ticket.Admission)
	assert.True(t, ticket.CheckedIn)
	require.NotNil(t, ticket.CheckedInAt)
	assert.True(t, first.Equal(*ticket.CheckedInAt))
	require.NotNil(t, ticket.CheckedInBy)
	assert.Equal(t, "vol-1", *ticket.CheckedInBy)

	d.uc.now = func() time.Time { return first.Add(time.Hour) }
	_, err = d.uc.CheckIn(ctx, d.eventID, ticketID, "vol-2")
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeAlreadyCheckedIn, appErr.Code)
	assert.Equal(t, "2026-03-01T18:00:00Z", appErr.Fields["checkedInAt"])

	stored, err := d.uc.GetTicket(ctx, d.eventID, ticketID)
	require.NoError(t, err)
	assert.True(t, first.Equal(*stored.CheckedInAt))
	assert.Equal(t, "vol-1", *stored.CheckedInBy)

	select {
	case a := <-d.broadcaster.activity:
		assert.Equal(t, realtime.KindCheckIn, a.Kind)
		assert.Equal(t, []int64{ticketID}, a.TicketIDs)
	case <-time.After(2 * time.Second):
		t.Fatal("check-in was not broadcast")
	}
}

// awaitActivity returns the first broadcast of the given kind. Broadcasts
// are published from goroutines, so kinds may arrive out of order.
func awaitActivity(t *testing.T, b *recordingBroadcaster, kind string) realtime.DoorActivity {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case a := <-b.activity:
			if a.Kind == kind {
				return a
			}
		case <-timeout:
			t.Fatalf("no %s broadcast", kind)
		}
	}
}

func TestCheckInScopedToEvent(t *testing.T) {
	d := newDoor(t)
	ticketID := dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{})
	other := dbtest.SeedUpcomingEvent(t, d.conn, "Other")

	_, err := d.uc.CheckIn(context.Background(), other, ticketID, "vol-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, err = d.uc.CheckIn(context.Background(), d.eventID, 9999, "vol-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	assert.Equal(t, 0, dbtest.Count(t, d.conn,
		`SELECT COUNT(*) FROM purchased_tickets WHERE admission_status = 'CHECKED_IN'`))
}

func TestConcurrentCheckInHasOneWinner(t *testing.T) {
	d := newDoor(t)
	ticketID := dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{})

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		already int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.uc.CheckIn(context.Background(), d.eventID, ticketID, "vol")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperrors.IsCode(err, apperrors.ErrCodeAlreadyCheckedIn):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, already)
}

func TestRedeemItemOnce(t *testing.T) {
	d := newDoor(t)
	ctx := context.Background()
	ticketID := dbtest.SeedTicket(t, d.conn, d.merch, dbtest.Ticket{})

	collected := time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)
	d.uc.now = func() time.Time { return collected }

	ticket, err := d.uc.RedeemItem(ctx, d.eventID, ticketID, "vol-1")
	require.NoError(t, err)
	assert.Equal(t, commonmodels.ItemCollected, ticket.Item)
	assert.True(t, ticket.ItemCollected)
	// Item pickup does not admit the holder.
	assert.Equal(t, commonmodels.AdmissionIssued, ticket.Admission)

	d.uc.now = func() time.Time { return collected.Add(10 * time.Minute) }
	_, err = d.uc.RedeemItem(ctx, d.eventID, ticketID, "vol-2")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeAlreadyRedeemed, appErr.Code)
	assert.Equal(t, "2026-03-01T19:30:00Z", appErr.Fields["itemCollectedAt"])

	stored, err := d.uc.GetTicket(ctx, d.eventID, ticketID)
	require.NoError(t, err)
	assert.True(t, collected.Equal(*stored.ItemCollectedAt))
}

func TestRedeemWithoutItem(t *testing.T) {
	d := newDoor(t)
	ticketID := dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{})

	_, err := d.uc.RedeemItem(context.Background(), d.eventID, ticketID, "vol-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNoItemOnTicket))

	_, err = d.uc.RedeemItem(context.Background(), d.eventID, 9999, "vol-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestGroupCheckInSkipsAlreadyAdmitted(t *testing.T) {
	d := newDoor(t)
	ctx := context.Background()

	ids := []int64{
		dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{OrderID: "order-g", HolderName: "A"}),
		dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{OrderID: "order-g", HolderName: "B"}),
		dbtest.SeedTicket(t, d.conn, d.merch, dbtest.Ticket{OrderID: "order-g", HolderName: "C"}),
	}

	early := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	d.uc.now = func() time.Time { return early }
	_, err := d.uc.CheckIn(ctx, d.eventID, ids[1], "vol-1")
	require.NoError(t, err)

	d.uc.now = func() time.Time { return early.Add(30 * time.Minute) }
	n, err := d.uc.GroupCheckIn(ctx, d.eventID, []int64{ids[0], ids[1], ids[2], 99999}, "vol-2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	group := awaitActivity(t, d.broadcaster, realtime.KindGroupCheckIn)
	assert.ElementsMatch(t, []int64{ids[0], ids[2]}, group.TicketIDs)
	assert.Equal(t, "vol-2", group.Actor)

	untouched, err := d.uc.GetTicket(ctx, d.eventID, ids[1])
	require.NoError(t, err)
	assert.True(t, early.Equal(*untouched.CheckedInAt))
	assert.Equal(t, "vol-1", *untouched.CheckedInBy)

	for _, id := range []int64{ids[0], ids[2]} {
		ticket, err := d.uc.GetTicket(ctx, d.eventID, id)
		require.NoError(t, err)
		assert.True(t, ticket.CheckedIn)
		assert.Equal(t, "vol-2", *ticket.CheckedInBy)
	}

	n, err = d.uc.GroupCheckIn(ctx, d.eventID, ids, "vol-2")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGroupCheckInIgnoresOtherEvents(t *testing.T) {
	d := newDoor(t)

	other := dbtest.SeedUpcomingEvent(t, d.conn, "Other")
	otherType := dbtest.SeedTicketType(t, d.conn, other, dbtest.TicketType{Classification: "General", Quantity: 5})
	foreign := dbtest.SeedTicket(t, d.conn, otherType, dbtest.Ticket{OrderID: "order-x"})
	local := dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{})

	n, err := d.uc.GroupCheckIn(context.Background(), d.eventID, []int64{foreign, local, local}, "vol")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = d.uc.GroupCheckIn(context.Background(), d.eventID, nil, "vol")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMissingField))
}

func TestSearch(t *testing.T) {
	d := newDoor(t)
	ctx := context.Background()

	dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{OrderID: "o-1", HolderName: "Zoe Quinn", PurchaserName: "Max Power"})
	dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{OrderID: "o-1", HolderName: "Anna Power", PurchaserName: "Max Power"})
	dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{OrderID: "o-2", HolderName: "100% Real", PurchaserEmail: "real_deal@example.com"})

	other := dbtest.SeedUpcomingEvent(t, d.conn, "Other")
	otherType := dbtest.SeedTicketType(t, d.conn, other, dbtest.TicketType{Classification: "General", Quantity: 5})
	dbtest.SeedTicket(t, d.conn, otherType, dbtest.Ticket{OrderID: "o-3", HolderName: "Paul Power"})

	tickets, err := d.uc.Search(ctx, d.eventID, "POWER")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "Anna Power", tickets[0].HolderName)
	assert.Equal(t, "Zoe Quinn", tickets[1].HolderName)

	tickets, err = d.uc.Search(ctx, d.eventID, "%")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "100% Real", tickets[0].HolderName)

	tickets, err = d.uc.Search(ctx, d.eventID, "_deal")
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	tickets, err = d.uc.Search(ctx, d.eventID, "o-2")
	require.NoError(t, err)
	assert.Len(t, tickets, 1)

	dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{OrderID: "o-4", HolderName: "ÉLODIE ÅSTRÖM", PurchaserEmail: "Élodie@Example.com"})
	for _, q := range []string{"élodie", "ÉLODIE", "Åström", "élodie@example"} {
		tickets, err = d.uc.Search(ctx, d.eventID, q)
		require.NoError(t, err, q)
		require.Len(t, tickets, 1, q)
		assert.Equal(t, "ÉLODIE ÅSTRÖM", tickets[0].HolderName, q)
	}

	_, err = d.uc.Search(ctx, d.eventID, "   ")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestSearchIsCapped(t *testing.T) {
	d := newDoor(t)
	for i := 0; i < SearchLimit+5; i++ {
		dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{HolderName: "Crowd Member"})
	}

	tickets, err := d.uc.Search(context.Background(), d.eventID, "crowd")
	require.NoError(t, err)
	assert.Len(t, tickets, SearchLimit)
}

func TestListOrder(t *testing.T) {
	d := newDoor(t)
	ctx := context.Background()

	dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{OrderID: "order-7", HolderName: "Carol"})
	dbtest.SeedTicket(t, d.conn, d.merch, dbtest.Ticket{OrderID: "order-7", HolderName: "Bob"})
	dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{OrderID: "order-8", HolderName: "Alice"})

	tickets, err := d.uc.ListOrder(ctx, d.eventID, "order-7")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "Bob", tickets[0].HolderName)
	assert.Equal(t, "Carol", tickets[1].HolderName)
	assert.Equal(t, "Merch Pack", tickets[0].Classification)

	_, err = d.uc.ListOrder(ctx, d.eventID, "order-404")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestScanResolvesCredential(t *testing.T) {
	d := newDoor(t)
	ctx := context.Background()

	code := "QR_0123456789ABCDEF0123456789ABCDEF"
	ticketID := dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{Credential: code})

	ticket, err := d.uc.Scan(ctx, "  qr_0123456789abcdef0123456789abcdef ")
	require.NoError(t, err)
	assert.Equal(t, ticketID, ticket.ID)
	assert.Equal(t, d.eventID, ticket.EventID)

	_, err = d.uc.Scan(ctx, "QR_FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, err = d.uc.Scan(ctx, "hello")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
}

func TestEventStats(t *testing.T) {
	d := newDoor(t)
	ctx := context.Background()

	a := dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{})
	dbtest.SeedTicket(t, d.conn, d.general, dbtest.Ticket{})
	m := dbtest.SeedTicket(t, d.conn, d.merch, dbtest.Ticket{})

	_, err := d.uc.CheckIn(ctx, d.eventID, a, "vol")
	require.NoError(t, err)
	_, err = d.uc.RedeemItem(ctx, d.eventID, m, "vol")
	require.NoError(t, err)

	stats, err := d.uc.EventStats(ctx, d.eventID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TicketsSold)
	assert.Equal(t, 1, stats.CheckedIn)
	assert.Equal(t, 1, stats.ItemsIncluded)
	assert.Equal(t, 1, stats.ItemsCollected)
	require.Len(t, stats.ByType, 2)
	assert.Equal(t, 2, stats.ByType[0].Sold)

	_, err = d.uc.EventStats(ctx, 9999)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}
