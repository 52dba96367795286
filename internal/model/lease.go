package model

import "time"

// Lease is the time-bounded claim a holder has on a seat.  It is not stored
// on its own; it is derived from a held Seat and disappears when the seat is
// confirmed, released or expired.  Leases are never extended.
type Lease struct {
    ID         string    `json:"id"`
    ShowingID  string    `json:"showing_id"`
    SeatNumber string    `json:"seat_number"`
    Holder     string    `json:"-"`
    GrantedAt  time.Time `json:"granted_at"`
    ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at now.
func (l Lease) Expired(now time.Time) bool { return !now.Before(l.ExpiresAt) }
