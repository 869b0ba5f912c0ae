package usecase

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ticketbooth-services/common/credential"
	apperrors "github.com/ticketbooth-services/common/errors"
	"github.com/ticketbooth-services/common/inventory"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/metrics"
	commonmodels "github.com/ticketbooth-services/common/models"
	"github.com/ticketbooth-services/common/pricing"
	"github.com/ticketbooth-services/common/validator"
	"github.com/ticketbooth-services/services/ticket-lambda/models"
	"github.com/ticketbooth-services/services/ticket-lambda/repository"
)

// Notifier is told about every committed order. Implementations must not
// block the purchase path for long; errors are logged by the caller.
type Notifier interface {
	OrderConfirmed(ctx context.Context, orderID string) error
}

// confirmationTimeout bounds a single post-commit dispatch.
const confirmationTimeout = 2 * time.Minute

type PurchaseUseCase struct {
	repo     *repository.TicketRepository
	ledger   *inventory.Ledger
	issuer   *credential.Issuer
	pricing  *pricing.Calculator
	notifier Notifier
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewPurchaseUseCase(
	repo *repository.TicketRepository,
	ledger *inventory.Ledger,
	issuer *credential.Issuer,
	calc *pricing.Calculator,
	notifier Notifier,
	m *metrics.Metrics,
	log *logger.Logger,
) *PurchaseUseCase {
	return &PurchaseUseCase{
		repo:     repo,
		ledger:   ledger,
		issuer:   issuer,
		pricing:  calc,
		notifier: notifier,
		metrics:  m,
		log:      log.With("component", "purchase"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// lineHolders pairs a cart line with the holders named for it.
type lineHolders struct {
	line    models.CartLine
	holders []models.TicketHolder
}

// ============================================================
// ProcessPurchase - validate, lock, price and issue in one transaction
// ============================================================
func (uc *PurchaseUseCase) ProcessPurchase(ctx context.Context, req *models.PurchaseRequest) (*models.PurchaseResult, error) {
	started := uc.now()

	groups, err := validatePurchase(req)
	if err != nil {
		uc.metrics.ObservePurchase(purchaseOutcome(err), uc.now().Sub(started))
		return nil, err
	}

	order := &models.Order{
		ID:               uc.newID(),
		EventID:          req.EventID,
		Purchaser:        trimPurchaser(req.PurchaserInfo),
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		CreatedAt:        uc.now().UTC(),
	}

	var issued []models.IssuedTicket
	err = uc.repo.WithTransaction(ctx, func(tx *sql.Tx) error {
		var txErr error
		issued, txErr = uc.issueInTx(ctx, tx, order, groups, req.TotalAmount)
		return txErr
	})

	took := uc.now().Sub(started)
	if err != nil {
		uc.metrics.ObservePurchase(purchaseOutcome(err), took)
		appErr := toPurchaseError(err)
		if appErr.IsServerError() {
			uc.log.WithContext(ctx).Error("purchase transaction failed",
				"orderId", order.ID, "eventId", req.EventID, "error", err)
		}
		return nil, appErr
	}

	uc.metrics.ObservePurchase(metrics.OutcomeSuccess, took)
	uc.metrics.TicketsIssued(strconv.FormatInt(order.EventID, 10), len(issued))
	uc.log.WithContext(ctx).LogEvent(logger.EventLog{
		Event:    "PURCHASE_COMPLETED",
		Actor:    order.Purchaser.Email,
		Entity:   "order",
		EntityID: order.ID,
		Action:   "create",
		Success:  true,
		Metadata: map[string]interface{}{
			"eventId":     order.EventID,
			"ticketCount": len(issued),
			"total":       order.Pricing.Total.StringFixed(2),
		},
	})

	uc.dispatchConfirmation(ctx, order.ID)

	return &models.PurchaseResult{
		OrderID: order.ID,
		EventID: order.EventID,
		Tickets: issued,
		Pricing: order.Pricing,
	}, nil
}

func (uc *PurchaseUseCase) issueInTx(
	ctx context.Context,
	tx *sql.Tx,
	order *models.Order,
	groups []lineHolders,
	quoted *decimal.Decimal,
) ([]models.IssuedTicket, error) {
	event, err := uc.repo.GetEvent(ctx, tx, order.EventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Event")
	}
	if err != nil {
		return nil, err
	}
	if event.Ended(uc.now()) {
		return nil, apperrors.EventEnded()
	}

	// Lock in ascending id order so concurrent multi-type carts never
	// wait on each other in a cycle.
	ids := make([]int64, len(groups))
	for i, g := range groups {
		ids[i] = g.line.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	snaps := make(map[int64]*inventory.Snapshot, len(ids))
	for _, id := range ids {
		snap, err := uc.ledger.Lock(ctx, tx, id)
		if errors.Is(err, inventory.ErrNotFound) {
			return nil, apperrors.TicketTypeNotFound(id)
		}
		if err != nil {
			return nil, err
		}
		if snap.EventID != order.EventID {
			return nil, apperrors.TicketTypeNotFound(id)
		}
		snaps[id] = snap
	}

	lines := make([]pricing.Line, 0, len(groups))
	for _, g := range groups {
		snap := snaps[g.line.ID]
		if snap.Available() < g.line.Quantity {
			return nil, apperrors.InsufficientInventory(snap.Classification, snap.Available())
		}
		lines = append(lines, pricing.Line{UnitCost: snap.Cost, Quantity: g.line.Quantity})
	}

	order.Pricing = uc.pricing.Price(lines)
	if quoted != nil && !order.Pricing.Matches(*quoted) {
		return nil, apperrors.PriceMismatch(order.Pricing.Total.StringFixed(2))
	}

	if err := uc.repo.InsertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	issued := make([]models.IssuedTicket, 0, len(lines))
	for _, g := range groups {
		snap := snaps[g.line.ID]
		for _, h := range g.holders {
			ticket := models.IssuedTicket{
				TicketTypeID:   snap.TicketTypeID,
				Classification: snap.Classification,
				HolderName:     h.FullName(),
				Credential:     uc.issuer.Issue(),
				IncludesItem:   snap.IncludesItem,
				ItemName:       snap.ItemName,
				ItemStatus:     commonmodels.InitialItemState(snap.IncludesItem),
				Cost:           snap.Cost,
			}
			id, err := uc.repo.InsertTicket(ctx, tx, order, &ticket)
			if err != nil {
				return nil, err
			}
			ticket.ID = id
			issued = append(issued, ticket)
		}
	}
	return issued, nil
}

// dispatchConfirmation hands the order to the notifier without waiting.
// The purchase has committed; a failure here is only logged.
func (uc *PurchaseUseCase) dispatchConfirmation(ctx context.Context, orderID string) {
	if uc.notifier == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, confirmationTimeout)
		defer cancel()
		if err := uc.notifier.OrderConfirmed(ctx, orderID); err != nil {
			uc.log.WithContext(ctx).Warn("order confirmation dispatch failed",
				"orderId", orderID, "error", err)
		}
	}()
}

// ============================================================
// Validation (no database access)
// ============================================================

func validatePurchase(req *models.PurchaseRequest) ([]lineHolders, error) {
	if req == nil {
		return nil, apperrors.ValidationError("Request body is required")
	}
	if req.EventID <= 0 {
		return nil, apperrors.MissingField("eventId")
	}

	p := trimPurchaser(req.PurchaserInfo)
	if msg := validator.GetNameError("First name", p.FirstName); msg != "" {
		return nil, apperrors.InvalidInput("purchaserInfo.firstName", msg)
	}
	if msg := validator.GetNameError("Last name", p.LastName); msg != "" {
		return nil, apperrors.InvalidInput("purchaserInfo.lastName", msg)
	}
	if msg := validator.GetEmailError(p.Email); msg != "" {
		return nil, apperrors.InvalidInput("purchaserInfo.email", msg)
	}
	if msg := validator.GetPhoneError(p.Phone); msg != "" {
		return nil, apperrors.InvalidInput("purchaserInfo.phone", msg)
	}

	if len(req.SelectedTickets) == 0 {
		return nil, apperrors.ValidationError("Select at least one ticket")
	}

	groups := make([]lineHolders, 0, len(req.SelectedTickets))
	byLabel := make(map[string]int, len(req.SelectedTickets))
	seenIDs := make(map[int64]bool, len(req.SelectedTickets))
	for _, line := range req.SelectedTickets {
		if line.ID <= 0 {
			return nil, apperrors.InvalidInput("selectedTickets.id", "Ticket type id is required")
		}
		if line.Quantity <= 0 {
			return nil, apperrors.InvalidInput("selectedTickets.quantity", "Quantity must be at least 1")
		}
		if seenIDs[line.ID] {
			return nil, apperrors.InvalidInput("selectedTickets.id", "Each ticket type may appear only once")
		}
		seenIDs[line.ID] = true

		label := strings.TrimSpace(line.Type)
		if label == "" {
			return nil, apperrors.InvalidInput("selectedTickets.type", "Ticket type label is required")
		}
		if _, dup := byLabel[label]; dup {
			return nil, apperrors.InvalidInput("selectedTickets.type", "Ticket type labels must be unique")
		}
		byLabel[label] = len(groups)
		groups = append(groups, lineHolders{line: line})
	}

	for _, h := range req.TicketHolders {
		h.FirstName = strings.TrimSpace(h.FirstName)
		h.LastName = strings.TrimSpace(h.LastName)
		if h.FirstName == "" || h.LastName == "" {
			return nil, apperrors.InvalidInput("ticketHolders", "Every ticket holder needs a first and last name")
		}
		idx, ok := byLabel[strings.TrimSpace(h.Type)]
		if !ok {
			return nil, apperrors.InvalidInput("ticketHolders.type",
				"Ticket holder refers to a ticket type that is not in the cart")
		}
		groups[idx].holders = append(groups[idx].holders, h)
	}

	for _, g := range groups {
		if len(g.holders) != g.line.Quantity {
			return nil, apperrors.HolderCountMismatch(strings.TrimSpace(g.line.Type), g.line.Quantity, len(g.holders))
		}
	}
	return groups, nil
}

func trimPurchaser(p models.PurchaserInfo) models.PurchaserInfo {
	return models.PurchaserInfo{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Email:     strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:     strings.TrimSpace(p.Phone),
	}
}

// toPurchaseError keeps business errors and hides everything else behind
// a database error.
func toPurchaseError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	return apperrors.DatabaseError(err)
}

func purchaseOutcome(err error) string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return metrics.OutcomeError
	}
	switch {
	case appErr.Code == apperrors.ErrCodeInsufficientInventory:
		return metrics.OutcomeSoldOut
	case appErr.Code == apperrors.ErrCodeNotFound:
		return metrics.OutcomeNotFound
	case appErr.IsServerError():
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}
