package model

// DeltaType names the kind of incremental update sent to subscribers.
type DeltaType string

const (
    DeltaSeatStatus DeltaType = "seat_status_changed"
    DeltaPrice      DeltaType = "price_changed"
)

// Delta is one state change of a showing.  Seat deltas carry SeatNumber,
// Status and the seat's new Version; price deltas carry PriceCents and the
// showing's new PriceVersion.
type Delta struct {
    Type       DeltaType  `json:"type"`
    ShowingID  string     `json:"showing_id"`
    SeatNumber string     `json:"seat_number,omitempty"`
    Status     SeatStatus `json:"status,omitempty"`
    PriceCents int64      `json:"price_cents,omitempty"`
    Version    uint64     `json:"version"`
}

// SeatStatusChanged builds a seat delta.
func SeatStatusChanged(showingID, seatNumber string, status SeatStatus, version uint64) Delta {
    return Delta{Type: DeltaSeatStatus, ShowingID: showingID, SeatNumber: seatNumber, Status: status, Version: version}
}

// PriceChanged builds a price delta.
func PriceChanged(showingID string, priceCents int64, version uint64) Delta {
    return Delta{Type: DeltaPrice, ShowingID: showingID, PriceCents: priceCents, Version: version}
}
