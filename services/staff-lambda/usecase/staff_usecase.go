package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ticketbooth-services/common/credential"
	apperrors "github.com/ticketbooth-services/common/errors"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/metrics"
	commonmodels "github.com/ticketbooth-services/common/models"
	"github.com/ticketbooth-services/common/realtime"
	"github.com/ticketbooth-services/services/staff-lambda/models"
	"github.com/ticketbooth-services/services/staff-lambda/repository"
)

// SearchLimit caps attendee search results.
const SearchLimit = 20

// MaxGroupSize caps the ticket ids accepted by one group check-in.
const MaxGroupSize = 200

// Door operation labels for metrics.
const (
	opCheckIn      = "checkin"
	opGroupCheckIn = "group_checkin"
	opRedeem       = "redeem"
)

// StaffUseCase is the check-in and item redemption state machine.
type StaffUseCase struct {
	repo        *repository.StaffRepository
	broadcaster realtime.Broadcaster
	metrics     *metrics.Metrics
	log         *logger.Logger
	now         func() time.Time
}

func NewStaffUseCase(
	repo *repository.StaffRepository,
	broadcaster realtime.Broadcaster,
	m *metrics.Metrics,
	log *logger.Logger,
) *StaffUseCase {
	if broadcaster == nil {
		broadcaster = realtime.Noop{}
	}
	return &StaffUseCase{
		repo:        repo,
		broadcaster: broadcaster,
		metrics:     m,
		log:         log.With("component", "door"),
		now:         time.Now,
	}
}

// stamp is the time written on a transition. Both stores keep
// microseconds.
func (uc *StaffUseCase) stamp() time.Time {
	return uc.now().UTC().Truncate(time.Microsecond)
}

// ============================================================
// Search - attendee lookup at the door
// ============================================================
func (uc *StaffUseCase) Search(ctx context.Context, eventID int64, query string) ([]commonmodels.PurchasedTicket, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.ValidationError("Search query is required")
	}

	tickets, err := uc.repo.Search(ctx, eventID, likePattern(query), SearchLimit)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return tickets, nil
}

// likePattern folds q, escapes LIKE wildcards with '!' and wraps it
// for a substring match.
func likePattern(q string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(commonmodels.SearchKey(q)) + "%"
}

// ============================================================
// GetTicket / Scan - ticket detail
// ============================================================
func (uc *StaffUseCase) GetTicket(ctx context.Context, eventID, ticketID int64) (*commonmodels.PurchasedTicket, error) {
	t, err := uc.repo.GetTicket(ctx, eventID, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Ticket")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return t, nil
}

// Scan resolves a scanned credential to its ticket.
func (uc *StaffUseCase) Scan(ctx context.Context, code string) (*commonmodels.PurchasedTicket, error) {
	code = credential.Normalize(code)
	if code == "" {
		return nil, apperrors.MissingField("credential")
	}
	if !credential.Valid(code) {
		return nil, apperrors.InvalidInput("credential", "Not a ticket credential")
	}

	t, err := uc.repo.GetTicketByCredential(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Ticket")
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return t, nil
}

// ============================================================
// CheckIn - ISSUED -> CHECKED_IN
// ============================================================
func (uc *StaffUseCase) CheckIn(ctx context.Context, eventID, ticketID int64, actor string) (*commonmodels.PurchasedTicket, error) {
	at := uc.stamp()
	n, err := uc.repo.MarkCheckedIn(ctx, eventID, ticketID, at, actor)
	if err != nil {
		uc.metrics.DoorOperation(opCheckIn, metrics.OutcomeError)
		return nil, apperrors.DatabaseError(err)
	}

	t, err := uc.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		uc.metrics.DoorOperation(opCheckIn, outcomeOf(err))
		return nil, err
	}

	if n == 0 {
		// Lost the guard: the ticket was already admitted.
		var previous time.Time
		if t.CheckedInAt != nil {
			previous = *t.CheckedInAt
		}
		uc.metrics.DoorOperation(opCheckIn, metrics.OutcomeAlreadyDone)
		return nil, apperrors.AlreadyCheckedIn(previous)
	}

	uc.metrics.DoorOperation(opCheckIn, metrics.OutcomeSuccess)
	uc.logDoorEvent(ctx, "TICKET_CHECKED_IN", actor, t)
	uc.broadcast(ctx, realtime.DoorActivity{
		Kind: realtime.KindCheckIn, EventID: eventID, TicketIDs: []int64{ticketID}, Actor: actor, At: at,
	})
	return t, nil
}

// ============================================================
// RedeemItem - PENDING -> COLLECTED
// ============================================================
func (uc *StaffUseCase) RedeemItem(ctx context.Context, eventID, ticketID int64, actor string) (*commonmodels.PurchasedTicket, error) {
	at := uc.stamp()
	n, err := uc.repo.MarkItemCollected(ctx, eventID, ticketID, at, actor)
	if err != nil {
		uc.metrics.DoorOperation(opRedeem, metrics.OutcomeError)
		return nil, apperrors.DatabaseError(err)
	}

	t, err := uc.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		uc.metrics.DoorOperation(opRedeem, outcomeOf(err))
		return nil, err
	}

	if n == 0 {
		switch t.Item {
		case commonmodels.ItemNone:
			uc.metrics.DoorOperation(opRedeem, metrics.OutcomeNotPermitted)
			return nil, apperrors.NoItemOnTicket()
		default:
			var previous time.Time
			if t.ItemCollectedAt != nil {
				previous = *t.ItemCollectedAt
			}
			uc.metrics.DoorOperation(opRedeem, metrics.OutcomeAlreadyDone)
			return nil, apperrors.AlreadyRedeemed(previous)
		}
	}

	uc.metrics.DoorOperation(opRedeem, metrics.OutcomeSuccess)
	uc.logDoorEvent(ctx, "ITEM_REDEEMED", actor, t)
	uc.broadcast(ctx, realtime.DoorActivity{
		Kind: realtime.KindRedeem, EventID: eventID, TicketIDs: []int64{ticketID}, Actor: actor, At: at,
	})
	return t, nil
}

// ============================================================
// GroupCheckIn - admit every still-ISSUED ticket in the set
// ============================================================
func (uc *StaffUseCase) GroupCheckIn(ctx context.Context, eventID int64, ticketIDs []int64, actor string) (int, error) {
	ids := dedupe(ticketIDs)
	if len(ids) == 0 {
		return 0, apperrors.MissingField("ticketIds")
	}
	if len(ids) > MaxGroupSize {
		return 0, apperrors.InvalidInput("ticketIds", "Too many tickets in one group check-in")
	}

	at := uc.stamp()
	admitted, err := uc.repo.MarkGroupCheckedIn(ctx, eventID, ids, at, actor)
	if err != nil {
		uc.metrics.DoorOperation(opGroupCheckIn, metrics.OutcomeError)
		return 0, apperrors.DatabaseError(err)
	}

	n := len(admitted)
	uc.metrics.DoorOperations(opCheckIn, metrics.OutcomeSuccess, n)
	uc.metrics.DoorOperation(opGroupCheckIn, metrics.OutcomeSuccess)
	uc.log.WithContext(ctx).LogEvent(logger.EventLog{
		Event:   "GROUP_CHECKED_IN",
		Actor:   actor,
		Entity:  "event",
		Action:  "checkin",
		Success: true,
		Metadata: map[string]interface{}{
			"eventId":   eventID,
			"requested": len(ids),
			"checkedIn": n,
		},
	})
	if n > 0 {
		uc.broadcast(ctx, realtime.DoorActivity{
			Kind: realtime.KindGroupCheckIn, EventID: eventID, TicketIDs: admitted, Actor: actor, At: at,
		})
	}
	return n, nil
}

// ============================================================
// ListOrder - every ticket of one order in the event
// ============================================================
func (uc *StaffUseCase) ListOrder(ctx context.Context, eventID int64, orderID string) ([]commonmodels.PurchasedTicket, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, apperrors.MissingField("orderId")
	}

	tickets, err := uc.repo.ListOrder(ctx, eventID, orderID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if len(tickets) == 0 {
		return nil, apperrors.NotFound("Order")
	}
	return tickets, nil
}

// ============================================================
// EventStats - door dashboard counts
// ============================================================
func (uc *StaffUseCase) EventStats(ctx context.Context, eventID int64) (*models.EventStats, error) {
	ok, err := uc.repo.EventExists(ctx, eventID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if !ok {
		return nil, apperrors.NotFound("Event")
	}

	stats, err := uc.repo.EventStats(ctx, eventID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return stats, nil
}

// ============================================================
// Helpers
// ============================================================

// broadcast publishes after the transition has been stored. Door devices
// only miss an update if it fails, so errors are logged.
func (uc *StaffUseCase) broadcast(ctx context.Context, activity realtime.DoorActivity) {
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := uc.broadcaster.Publish(bg, activity); err != nil {
			uc.log.WithContext(bg).Warn("door activity broadcast failed",
				"kind", activity.Kind, "eventId", activity.EventID, "error", err)
		}
	}()
}

func (uc *StaffUseCase) logDoorEvent(ctx context.Context, event, actor string, t *commonmodels.PurchasedTicket) {
	uc.log.WithContext(ctx).LogEvent(logger.EventLog{
		Event:    event,
		Actor:    actor,
		Entity:   "ticket",
		EntityID: t.Credential,
		Action:   "update",
		Success:  true,
		Metadata: map[string]interface{}{
			"eventId":  t.EventID,
			"ticketId": t.ID,
			"orderId":  t.OrderID,
		},
	})
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func outcomeOf(err error) string {
	if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		return metrics.OutcomeNotFound
	}
	return metrics.OutcomeError
}
