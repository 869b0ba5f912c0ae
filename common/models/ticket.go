package models

import (
	"strings"
	"time"
)

// AdmissionState is the entry axis of a purchased ticket.
type AdmissionState string

const (
	AdmissionIssued    AdmissionState = "ISSUED"
	AdmissionCheckedIn AdmissionState = "CHECKED_IN"
)

// CanCheckIn reports whether the ticket may still be admitted.
func (s AdmissionState) CanCheckIn() bool {
	return s == AdmissionIssued
}

// ItemState is the item-pickup axis. Tickets whose type has no item stay
// in ItemNone for their whole life.
type ItemState string

const (
	ItemNone      ItemState = "NONE"
	ItemPending   ItemState = "PENDING"
	ItemCollected ItemState = "COLLECTED"
)

// InitialItemState is the item state a ticket is issued with.
func InitialItemState(includesItem bool) ItemState {
	if includesItem {
		return ItemPending
	}
	return ItemNone
}

// CanRedeem reports whether the item may still be collected.
func (s ItemState) CanRedeem() bool {
	return s == ItemPending
}

// PurchasedTicket is a ticket as staff see it at the door.
type PurchasedTicket struct {
	ID             int64  `json:"id"`
	EventID        int64  `json:"eventId"`
	TicketTypeID   int64  `json:"ticketTypeId"`
	Classification string `json:"classification"`
	OrderID        string `json:"orderId"`
	PurchaserName  string `json:"purchaserName"`
	PurchaserEmail string `json:"purchaserEmail"`
	PurchaserPhone string `json:"purchaserPhone"`
	HolderName     string `json:"holderName"`
	Credential     string `json:"credential"`

	Admission   AdmissionState `json:"admissionStatus"`
	CheckedIn   bool           `json:"checkedIn"`
	CheckedInAt *time.Time     `json:"checkedInAt"`
	CheckedInBy *string        `json:"checkedInBy"`

	IncludesItem    bool       `json:"includesItem"`
	ItemName        string     `json:"itemName,omitempty"`
	Item            ItemState  `json:"itemStatus"`
	ItemCollected   bool       `json:"itemCollected"`
	ItemCollectedAt *time.Time `json:"itemCollectedAt"`
	ItemCollectedBy *string    `json:"itemCollectedBy"`

	CreatedAt time.Time `json:"createdAt"`
}

// SyncFlags derives the boolean views from the tagged states.
func (t *PurchasedTicket) SyncFlags() {
	t.CheckedIn = t.Admission == AdmissionCheckedIn
	t.ItemCollected = t.Item == ItemCollected
}

// SearchKey folds s for attendee search. Tickets store the folded names
// and email; SQLite's LOWER folds ASCII only.
func SearchKey(s string) string {
	return strings.ToLower(s)
}
