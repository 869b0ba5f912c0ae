package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ticketbooth-services/common/models"
	"github.com/ticketbooth-services/common/pricing"
)

// ============================================================
// PURCHASE REQUEST
// ============================================================

// PurchaserInfo is the contact who pays for the order.
type PurchaserInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// FullName joins first and last name.
func (p PurchaserInfo) FullName() string {
	return p.FirstName + " " + p.LastName
}

// TicketHolder names the person a ticket is issued to. Type matches the
// label of the cart line the holder belongs to.
type TicketHolder struct {
	Type      string `json:"type"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// FullName joins first and last name.
func (h TicketHolder) FullName() string {
	return h.FirstName + " " + h.LastName
}

// CartLine is one ticket type in the cart. Price is what the client saw
// and is never trusted.
type CartLine struct {
	ID       int64            `json:"id"`
	Type     string           `json:"type"`
	Quantity int              `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// PurchaseRequest - POST /api/purchases
type PurchaseRequest struct {
	EventID          int64            `json:"eventId"`
	PurchaserInfo    PurchaserInfo    `json:"purchaserInfo"`
	TicketHolders    []TicketHolder   `json:"ticketHolders"`
	SelectedTickets  []CartLine       `json:"selectedTickets"`
	TotalAmount      *decimal.Decimal `json:"totalAmount,omitempty"`
	PaymentReference string           `json:"paymentReference,omitempty"`
}

// ============================================================
// PURCHASE RESULT
// ============================================================

// IssuedTicket is a ticket created by a purchase.
type IssuedTicket struct {
	ID             int64            `json:"id"`
	TicketTypeID   int64            `json:"ticketTypeId"`
	Classification string           `json:"classification"`
	HolderName     string           `json:"holderName"`
	Credential     string           `json:"credential"`
	IncludesItem   bool             `json:"includesItem"`
	ItemName       string           `json:"itemName,omitempty"`
	ItemStatus     models.ItemState `json:"itemStatus"`
	Cost           decimal.Decimal  `json:"cost"`
}

// PurchaseResult is returned after the purchase transaction commits.
type PurchaseResult struct {
	OrderID string            `json:"orderId"`
	EventID int64             `json:"eventId"`
	Tickets []IssuedTicket    `json:"tickets"`
	Pricing pricing.Breakdown `json:"pricing"`
}

// PurchaseResponse is the body of a successful purchase.
type PurchaseResponse struct {
	Success      bool              `json:"success"`
	OrderID      string            `json:"orderId"`
	TotalTickets int               `json:"totalTickets"`
	Tickets      []IssuedTicket    `json:"tickets"`
	Pricing      pricing.Breakdown `json:"pricing"`
}

// ============================================================
// PERSISTED ORDER
// ============================================================

// Event is the slice of an event the purchase path needs.
type Event struct {
	ID       int64
	Name     string
	StartAt  time.Time
	EndAt    time.Time
	Location string
}

// Ended reports whether the event is over at now.
func (e *Event) Ended(now time.Time) bool {
	return !e.EndAt.After(now)
}

// Order is the row written once per purchase.
type Order struct {
	ID               string
	EventID          int64
	Purchaser        PurchaserInfo
	PaymentReference string
	Pricing          pricing.Breakdown
	CreatedAt        time.Time
}

// OrderDetail is an order with its event and tickets, as stored. The
// confirmation email is built from it.
type OrderDetail struct {
	Order   Order
	Event   Event
	Tickets []IssuedTicket
}
