package models

// GroupCheckInRequest - POST /api/staff/events/{eventId}/group-checkin
type GroupCheckInRequest struct {
	TicketIDs []int64 `json:"ticketIds"`
}

// GroupCheckInResponse reports how many tickets moved to CHECKED_IN.
type GroupCheckInResponse struct {
	CheckedInCount int `json:"checkedInCount"`
}

// ScanRequest - POST /api/staff/scan
type ScanRequest struct {
	Credential string `json:"credential"`
}

// TypeStats is the door tally for one ticket type.
type TypeStats struct {
	TicketTypeID   int64  `json:"ticketTypeId"`
	Classification string `json:"classification"`
	Quantity       int    `json:"quantity"`
	Sold           int    `json:"sold"`
	CheckedIn      int    `json:"checkedIn"`
	ItemsCollected int    `json:"itemsCollected"`
}

// EventStats is the door dashboard for an event.
type EventStats struct {
	EventID        int64       `json:"eventId"`
	TicketsSold    int         `json:"ticketsSold"`
	CheckedIn      int         `json:"checkedIn"`
	ItemsIncluded  int         `json:"itemsIncluded"`
	ItemsCollected int         `json:"itemsCollected"`
	ByType         []TypeStats `json:"byType"`
}
