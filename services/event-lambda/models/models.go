package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event maps to table: events
type Event struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	StartAt          time.Time `json:"startAt"`
	EndAt            time.Time `json:"endAt"`
	Location         string    `json:"location"`
	ShortDescription string    `json:"shortDescription"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Ended reports whether the event is over at now.
func (e *Event) Ended(now time.Time) bool {
	return !e.EndAt.After(now)
}

// ============================================================
// Read models
// ============================================================

// EventListItem - GET /api/events
type EventListItem struct {
	Event
	Capacity         int  `json:"capacity"`
	TicketsSold      int  `json:"ticketsSold"`
	TicketsAvailable int  `json:"ticketsAvailable"`
	SoldOut          bool `json:"soldOut"`
	HasEnded         bool `json:"ended"`
}

// TicketTypeView is a ticket type with its live inventory.
type TicketTypeView struct {
	ID             int64           `json:"id"`
	EventID        int64           `json:"eventId"`
	Classification string          `json:"classification"`
	Cost           decimal.Decimal `json:"cost"`
	Quantity       int             `json:"quantity"`
	Sold           int             `json:"sold"`
	Available      int             `json:"available"`
	IncludesItem   bool            `json:"includes_item"`
	ItemName       string          `json:"item_name"`
}

// EventDetail - GET /api/events/{eventId}
type EventDetail struct {
	Event
	TicketTypes []TicketTypeView `json:"ticketTypes"`
}

// ============================================================
// Admin requests
// ============================================================

// TicketTypeInput describes a new ticket type.
type TicketTypeInput struct {
	Classification string          `json:"classification"`
	Cost           decimal.Decimal `json:"cost"`
	Quantity       int             `json:"quantity"`
	IncludesItem   bool            `json:"includesItem"`
	ItemName       string          `json:"itemName"`
}

// CreateEventRequest - POST /api/admin/events
type CreateEventRequest struct {
	Name             string            `json:"name"`
	StartAt          string            `json:"startAt"`
	EndAt            string            `json:"endAt"`
	Location         string            `json:"location"`
	ShortDescription string            `json:"shortDescription"`
	Description      string            `json:"description"`
	TicketTypes      []TicketTypeInput `json:"ticketTypes"`
}

// UpdateEventRequest - PUT /api/admin/events/{eventId}. Omitted fields
// keep their stored value.
type UpdateEventRequest struct {
	Name             *string `json:"name"`
	StartAt          *string `json:"startAt"`
	EndAt            *string `json:"endAt"`
	Location         *string `json:"location"`
	ShortDescription *string `json:"shortDescription"`
	Description      *string `json:"description"`
}

// EventInput is a validated, parsed event.
type EventInput struct {
	Name             string
	StartAt          time.Time
	EndAt            time.Time
	Location         string
	ShortDescription string
	Description      string
	TicketTypes      []TicketTypeInput
}

// EventPatch carries the parsed fields of an UpdateEventRequest.
type EventPatch struct {
	Name             *string
	StartAt          *time.Time
	EndAt            *time.Time
	Location         *string
	ShortDescription *string
	Description      *string
}

// UpdateTicketTypeRequest - PUT /api/admin/events/{eventId}/ticket-types/{ticketTypeId}
// Omitted fields keep their stored value.
type UpdateTicketTypeRequest struct {
	Classification *string          `json:"classification"`
	Cost           *decimal.Decimal `json:"cost"`
	Quantity       *int             `json:"quantity"`
	IncludesItem   *bool            `json:"includesItem"`
	ItemName       *string          `json:"itemName"`
}
