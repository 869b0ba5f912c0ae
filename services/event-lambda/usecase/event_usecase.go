package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/ticketbooth-services/common/errors"
	"github.com/ticketbooth-services/common/inventory"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/validator"
	"github.com/ticketbooth-services/services/event-lambda/models"
	"github.com/ticketbooth-services/services/event-lambda/repository"
)

// EventUseCase serves public event reads and admin edits. Every admin
// write that depends on sold counts runs under the ledger's row locks.
type EventUseCase struct {
	repo   *repository.EventRepository
	ledger *inventory.Ledger
	log    *logger.Logger
	now    func() time.Time
}

func NewEventUseCase(repo *repository.EventRepository, ledger *inventory.Ledger, log *logger.Logger) *EventUseCase {
	return &EventUseCase{
		repo:   repo,
		ledger: ledger,
		log:    log.With("component", "events"),
		now:    time.Now,
	}
}

// ============================================================
// Public reads
// ============================================================

// ListEvents returns events by start time with their capacity. Ended
// events are left out unless includePast is set.
func (uc *EventUseCase) ListEvents(ctx context.Context, includePast bool) ([]models.EventListItem, error) {
	list, err := uc.repo.ListEvents(ctx)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	now := uc.now()
	items := make([]models.EventListItem, 0, len(list))
	for _, e := range list {
		ended := e.Ended(now)
		if ended && !includePast {
			continue
		}

		snaps, err := uc.ledger.Snapshots(ctx, uc.repo.DB(), e.ID)
		if err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		item := models.EventListItem{Event: e, HasEnded: ended}
		for _, s := range snaps {
			item.Capacity += s.Quantity
			item.TicketsSold += s.Sold
			item.TicketsAvailable += s.Available()
		}
		item.SoldOut = len(snaps) > 0 && item.TicketsAvailable == 0
		items = append(items, item)
	}
	return items, nil
}

// GetEvent returns the stored event without its ticket types.
func (uc *EventUseCase) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	e, err := uc.repo.GetEvent(ctx, uc.repo.DB(), eventID)
	if err != nil {
		return nil, notFoundOr(err, "Event")
	}
	return e, nil
}

// GetEventDetail returns an event with its ticket types.
func (uc *EventUseCase) GetEventDetail(ctx context.Context, eventID int64) (*models.EventDetail, error) {
	e, err := uc.repo.GetEvent(ctx, uc.repo.DB(), eventID)
	if err != nil {
		return nil, notFoundOr(err, "Event")
	}
	types, err := uc.ticketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &models.EventDetail{Event: *e, TicketTypes: types}, nil
}

// ListTicketTypes returns the event's ticket types with live counts.
func (uc *EventUseCase) ListTicketTypes(ctx context.Context, eventID int64) ([]models.TicketTypeView, error) {
	if _, err := uc.repo.GetEvent(ctx, uc.repo.DB(), eventID); err != nil {
		return nil, notFoundOr(err, "Event")
	}
	return uc.ticketTypes(ctx, eventID)
}

func (uc *EventUseCase) ticketTypes(ctx context.Context, eventID int64) ([]models.TicketTypeView, error) {
	snaps, err := uc.ledger.Snapshots(ctx, uc.repo.DB(), eventID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	views := make([]models.TicketTypeView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, toView(s))
	}
	return views, nil
}

// ============================================================
// CreateEvent - event and its ticket types in one transaction
// ============================================================
func (uc *EventUseCase) CreateEvent(ctx context.Context, in *models.EventInput, actor string) (*models.EventDetail, error) {
	normalizeEvent(in)
	if err := validateEvent(in); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(in.TicketTypes))
	for i := range in.TicketTypes {
		tt := &in.TicketTypes[i]
		normalizeTicketType(tt)
		if err := validateTicketType(tt); err != nil {
			return nil, err
		}
		key := strings.ToLower(tt.Classification)
		if seen[key] {
			return nil, apperrors.InvalidInput("ticketTypes", fmt.Sprintf("Duplicate classification %q", tt.Classification))
		}
		seen[key] = true
	}

	now := uc.now().UTC()
	var eventID int64
	err := uc.repo.WithTransaction(ctx, func(tx *sql.Tx) error {
		id, err := uc.repo.InsertEvent(ctx, tx, in, now)
		if err != nil {
			return err
		}
		for i := range in.TicketTypes {
			if _, err := uc.repo.InsertTicketType(ctx, tx, id, &in.TicketTypes[i], now); err != nil {
				return err
			}
		}
		eventID = id
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	uc.logAdminEvent(ctx, "EVENT_CREATED", actor, "event", eventID, map[string]interface{}{
		"ticketTypes": len(in.TicketTypes),
	})
	return uc.GetEventDetail(ctx, eventID)
}

// ============================================================
// UpdateEvent - event metadata and schedule
// ============================================================
func (uc *EventUseCase) UpdateEvent(ctx context.Context, eventID int64, patch *models.EventPatch, actor string) (*models.Event, error) {
	e, err := uc.repo.GetEvent(ctx, uc.repo.DB(), eventID)
	if err != nil {
		return nil, notFoundOr(err, "Event")
	}

	if patch.Name != nil {
		e.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.StartAt != nil {
		e.StartAt = *patch.StartAt
	}
	if patch.EndAt != nil {
		e.EndAt = *patch.EndAt
	}
	if patch.Location != nil {
		e.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.ShortDescription != nil {
		e.ShortDescription = strings.TrimSpace(*patch.ShortDescription)
	}
	if patch.Description != nil {
		e.Description = strings.TrimSpace(*patch.Description)
	}

	if err := validateEvent(&models.EventInput{Name: e.Name, StartAt: e.StartAt, EndAt: e.EndAt}); err != nil {
		return nil, err
	}

	e.UpdatedAt = uc.now().UTC()
	if err := uc.repo.UpdateEvent(ctx, uc.repo.DB(), e); err != nil {
		return nil, notFoundOr(err, "Event")
	}

	uc.logAdminEvent(ctx, "EVENT_UPDATED", actor, "event", eventID, nil)
	return e, nil
}

// ============================================================
// DeleteEvent - only when no ticket of any type has been sold
// ============================================================
func (uc *EventUseCase) DeleteEvent(ctx context.Context, eventID int64, actor string) error {
	err := uc.repo.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := uc.repo.LockEvent(ctx, tx, eventID); err != nil {
			return notFoundOr(err, "Event")
		}
		snaps, err := uc.ledger.LockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			if !inventory.CanDelete(s) {
				return apperrors.SaleLocked("Event has sold tickets and cannot be deleted").
					WithField("ticketType", s.Classification).
					WithField("sold", s.Sold)
			}
		}
		return notFoundOr(uc.repo.DeleteEvent(ctx, tx, eventID), "Event")
	})
	if err != nil {
		return toAppError(err)
	}

	uc.logAdminEvent(ctx, "EVENT_DELETED", actor, "event", eventID, nil)
	return nil
}

// ============================================================
// CreateTicketType
// ============================================================
func (uc *EventUseCase) CreateTicketType(ctx context.Context, eventID int64, in *models.TicketTypeInput, actor string) (*models.TicketTypeView, error) {
	normalizeTicketType(in)
	if err := validateTicketType(in); err != nil {
		return nil, err
	}

	var view models.TicketTypeView
	err := uc.repo.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := uc.repo.LockEvent(ctx, tx, eventID); err != nil {
			return notFoundOr(err, "Event")
		}
		taken, err := uc.repo.ClassificationTaken(ctx, tx, eventID, in.Classification, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.Conflict(fmt.Sprintf("Ticket type %q already exists for this event", in.Classification))
		}
		id, err := uc.repo.InsertTicketType(ctx, tx, eventID, in, uc.now())
		if err != nil {
			return err
		}
		snap, err := uc.ledger.Lock(ctx, tx, id)
		if err != nil {
			return err
		}
		view = toView(snap)
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	uc.logAdminEvent(ctx, "TICKET_TYPE_CREATED", actor, "ticket_type", view.ID, map[string]interface{}{
		"eventId": eventID,
	})
	return &view, nil
}

// ============================================================
// UpdateTicketType - sale-lock policy
// ============================================================

// UpdateTicketType applies req to a ticket type. While nothing is sold any
// field may change. Once a ticket is sold only quantity may change, and
// never below the sold count; any other field that would change is
// rejected with SaleLocked.
func (uc *EventUseCase) UpdateTicketType(ctx context.Context, eventID, ticketTypeID int64, req *models.UpdateTicketTypeRequest, actor string) (*models.TicketTypeView, error) {
	var view models.TicketTypeView
	err := uc.repo.WithTransaction(ctx, func(tx *sql.Tx) error {
		snap, err := uc.lockOwned(ctx, tx, eventID, ticketTypeID)
		if err != nil {
			return err
		}

		current := models.TicketTypeInput{
			Classification: snap.Classification,
			Cost:           snap.Cost,
			Quantity:       snap.Quantity,
			IncludesItem:   snap.IncludesItem,
			ItemName:       snap.ItemName,
		}
		next := applyTicketTypeUpdate(current, req)
		normalizeTicketType(&next)
		if err := validateTicketType(&next); err != nil {
			return err
		}

		if snap.SaleLocked() {
			if field := lockedFieldChanged(current, next); field != "" {
				return apperrors.SaleLocked("Ticket type has sales; only quantity may change").
					WithField("field", field).
					WithField("sold", snap.Sold)
			}
		}
		if !inventory.CanDecreaseQuantity(snap, next.Quantity) {
			return apperrors.SaleLocked(fmt.Sprintf("Quantity cannot be lower than the %d tickets already sold", snap.Sold)).
				WithField("field", "quantity").
				WithField("sold", snap.Sold)
		}

		if !strings.EqualFold(next.Classification, current.Classification) {
			taken, err := uc.repo.ClassificationTaken(ctx, tx, eventID, next.Classification, ticketTypeID)
			if err != nil {
				return err
			}
			if taken {
				return apperrors.Conflict(fmt.Sprintf("Ticket type %q already exists for this event", next.Classification))
			}
		}

		if err := uc.repo.UpdateTicketType(ctx, tx, ticketTypeID, &next); err != nil {
			return err
		}
		view = models.TicketTypeView{
			ID:             ticketTypeID,
			EventID:        eventID,
			Classification: next.Classification,
			Cost:           next.Cost,
			Quantity:       next.Quantity,
			Sold:           snap.Sold,
			Available:      next.Quantity - snap.Sold,
			IncludesItem:   next.IncludesItem,
			ItemName:       next.ItemName,
		}
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	uc.logAdminEvent(ctx, "TICKET_TYPE_UPDATED", actor, "ticket_type", ticketTypeID, map[string]interface{}{
		"eventId":  eventID,
		"quantity": view.Quantity,
		"sold":     view.Sold,
	})
	return &view, nil
}

// ============================================================
// DeleteTicketType - only when nothing is sold
// ============================================================
func (uc *EventUseCase) DeleteTicketType(ctx context.Context, eventID, ticketTypeID int64, actor string) error {
	err := uc.repo.WithTransaction(ctx, func(tx *sql.Tx) error {
		snap, err := uc.lockOwned(ctx, tx, eventID, ticketTypeID)
		if err != nil {
			return err
		}
		if !inventory.CanDelete(snap) {
			return apperrors.SaleLocked("Ticket type has sold tickets and cannot be deleted").
				WithField("sold", snap.Sold)
		}
		return uc.repo.DeleteTicketType(ctx, tx, ticketTypeID)
	})
	if err != nil {
		return toAppError(err)
	}

	uc.logAdminEvent(ctx, "TICKET_TYPE_DELETED", actor, "ticket_type", ticketTypeID, map[string]interface{}{
		"eventId": eventID,
	})
	return nil
}

// ============================================================
// Helpers
// ============================================================

// lockOwned locks a ticket type and checks it belongs to eventID.
func (uc *EventUseCase) lockOwned(ctx context.Context, tx *sql.Tx, eventID, ticketTypeID int64) (*inventory.Snapshot, error) {
	snap, err := uc.ledger.Lock(ctx, tx, ticketTypeID)
	if errors.Is(err, inventory.ErrNotFound) {
		return nil, apperrors.TicketTypeNotFound(ticketTypeID)
	}
	if err != nil {
		return nil, err
	}
	if snap.EventID != eventID {
		return nil, apperrors.TicketTypeNotFound(ticketTypeID)
	}
	return snap, nil
}

func (uc *EventUseCase) logAdminEvent(ctx context.Context, event, actor, entity string, id int64, meta map[string]interface{}) {
	uc.log.WithContext(ctx).LogEvent(logger.EventLog{
		Event:    event,
		Actor:    actor,
		Entity:   entity,
		EntityID: fmt.Sprint(id),
		Action:   strings.ToLower(event[strings.LastIndex(event, "_")+1:]),
		Success:  true,
		Metadata: meta,
	})
}

func applyTicketTypeUpdate(cur models.TicketTypeInput, req *models.UpdateTicketTypeRequest) models.TicketTypeInput {
	next := cur
	if req.Classification != nil {
		next.Classification = *req.Classification
	}
	if req.Cost != nil {
		next.Cost = *req.Cost
	}
	if req.Quantity != nil {
		next.Quantity = *req.Quantity
	}
	if req.IncludesItem != nil {
		next.IncludesItem = *req.IncludesItem
	}
	if req.ItemName != nil {
		next.ItemName = *req.ItemName
	}
	return next
}

// lockedFieldChanged names the first frozen field that differs, or "".
func lockedFieldChanged(cur, next models.TicketTypeInput) string {
	switch {
	case next.Classification != cur.Classification:
		return "classification"
	case !next.Cost.Equal(cur.Cost):
		return "cost"
	case next.IncludesItem != cur.IncludesItem:
		return "includesItem"
	case next.ItemName != cur.ItemName:
		return "itemName"
	}
	return ""
}

func normalizeEvent(in *models.EventInput) {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	in.ShortDescription = strings.TrimSpace(in.ShortDescription)
	in.Description = strings.TrimSpace(in.Description)
}

func normalizeTicketType(in *models.TicketTypeInput) {
	in.Classification = strings.TrimSpace(in.Classification)
	in.ItemName = strings.TrimSpace(in.ItemName)
	if !in.IncludesItem {
		in.ItemName = ""
	}
}

func validateEvent(in *models.EventInput) error {
	if in.Name == "" {
		return apperrors.MissingField("name")
	}
	if msg := validator.GetScheduleError(in.StartAt, in.EndAt); msg != "" {
		return apperrors.InvalidInput("endAt", msg)
	}
	return nil
}

func validateTicketType(in *models.TicketTypeInput) error {
	if in.Classification == "" {
		return apperrors.MissingField("classification")
	}
	if in.Cost.IsNegative() {
		return apperrors.InvalidInput("cost", "Cost cannot be negative")
	}
	if !in.Cost.Equal(in.Cost.Round(2)) {
		return apperrors.InvalidInput("cost", "Cost may have at most two decimal places")
	}
	if in.Quantity < 1 {
		return apperrors.InvalidInput("quantity", "Quantity must be at least 1")
	}
	if in.IncludesItem && in.ItemName == "" {
		return apperrors.MissingField("itemName")
	}
	return nil
}

func toView(s *inventory.Snapshot) models.TicketTypeView {
	return models.TicketTypeView{
		ID:             s.TicketTypeID,
		EventID:        s.EventID,
		Classification: s.Classification,
		Cost:           s.Cost.Round(2),
		Quantity:       s.Quantity,
		Sold:           s.Sold,
		Available:      s.Available(),
		IncludesItem:   s.IncludesItem,
		ItemName:       s.ItemName,
	}
}

// notFoundOr maps repository.ErrNotFound to a NotFound for resource and
// passes anything else through. A nil err stays nil.
func notFoundOr(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource)
	}
	if err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			return err
		}
		return apperrors.DatabaseError(err)
	}
	return nil
}

func toAppError(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	return apperrors.DatabaseError(err)
}
