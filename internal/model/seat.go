package model

import "time"

// SeatStatus is the availability of a seat within one showing.  The string
// values are what clients receive on the wire.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "available" // free to reserve
    SeatHeld      SeatStatus = "reserved"  // held under a lease, not yet paid
    SeatBooked    SeatStatus = "booked"    // confirmed; terminal
)

// Valid reports whether s is one of the three known statuses.
func (s SeatStatus) Valid() bool {
    switch s {
    case SeatAvailable, SeatHeld, SeatBooked:
        return true
    }
    return false
}

// Seat is one seat of a showing.  Holder, LeaseID, HeldAt and ExpiresAt are
// only set while Status is SeatHeld.  BookedBy records who confirmed the seat
// once it is booked.  Version grows by one on every transition and lets
// subscribers discard deltas already reflected in a snapshot.
//
// Fields:
//  Number    – seat label, unique within the showing (e.g. "A1").
//  Status    – available, reserved or booked.
//  Holder    – identity holding the lease (hidden from clients).
//  LeaseID   – identifier of the current lease (hidden from clients).
//  HeldAt    – when the current lease was granted.
//  ExpiresAt – when the current lease lapses.
//  BookedBy  – identity that confirmed the seat (hidden from clients).
//  Version   – transition counter.
type Seat struct {
    Number    string     `json:"number"`
    Status    SeatStatus `json:"status"`
    Holder    string     `json:"-"`
    LeaseID   string     `json:"-"`
    HeldAt    time.Time  `json:"held_at,omitzero"`
    ExpiresAt time.Time  `json:"expires_at,omitzero"`
    BookedBy  string     `json:"-"`
    Version   uint64     `json:"version"`
}

// Lease returns the lease view of a held seat.  The second result is false
// when the seat is not held.
func (s Seat) Lease(showingID string) (Lease, bool) {
    if s.Status != SeatHeld {
        return Lease{}, false
    }
    return Lease{
        ID:         s.LeaseID,
        ShowingID:  showingID,
        SeatNumber: s.Number,
        Holder:     s.Holder,
        GrantedAt:  s.HeldAt,
        ExpiresAt:  s.ExpiresAt,
    }, true
}
