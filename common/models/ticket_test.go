package models

import "testing"

func TestAdmissionTransitions(t *testing.T) {
	if !AdmissionIssued.CanCheckIn() {
		t.Error("issued ticket should be admissible")
	}
	if AdmissionCheckedIn.CanCheckIn() {
		t.Error("checked-in ticket must not be admitted twice")
	}
}

func TestItemTransitions(t *testing.T) {
	tests := []struct {
		state     ItemState
		canRedeem bool
	}{
		{ItemNone, false},
		{ItemPending, true},
		{ItemCollected, false},
	}
	for _, tt := range tests {
		if got := tt.state.CanRedeem(); got != tt.canRedeem {
			t.Errorf("%s.CanRedeem() = %v, want %v", tt.state, got, tt.canRedeem)
		}
	}

	if InitialItemState(true) != ItemPending || InitialItemState(false) != ItemNone {
		t.Error("unexpected initial item state")
	}
}

func TestSyncFlags(t *testing.T) {
	ticket := PurchasedTicket{Admission: AdmissionCheckedIn, Item: ItemPending}
	ticket.SyncFlags()

	if !ticket.CheckedIn || ticket.ItemCollected {
		t.Errorf("unexpected flags: checkedIn=%v itemCollected=%v", ticket.CheckedIn, ticket.ItemCollected)
	}
}
