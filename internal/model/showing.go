package model

import "time"

// Showing is one bookable screening together with its seat map.  The seat
// order is fixed when the showing is provisioned.  CurrentPriceCents is
// derived from demand and only changes through the pricing adjuster;
// PriceVersion grows with every change.
//
// Fields:
//  ID                – stable identifier.
//  Title             – movie title.
//  Showtime          – when the screening starts.
//  BasePriceCents    – price before demand adjustment.
//  CurrentPriceCents – price clients pay right now.
//  PriceVersion      – price change counter.
//  Seats             – seats in display order.
type Showing struct {
    ID                string    `json:"id"`
    Title             string    `json:"title"`
    Showtime          time.Time `json:"showtime"`
    BasePriceCents    int64     `json:"base_price_cents"`
    CurrentPriceCents int64     `json:"current_price_cents"`
    PriceVersion      uint64    `json:"price_version"`
    Seats             []Seat    `json:"seats"`
}

// Seat returns the seat with the given number.
func (s Showing) Seat(number string) (Seat, bool) {
    for _, st := range s.Seats {
        if st.Number == number {
            return st, true
        }
    }
    return Seat{}, false
}

// ShowingSummary is the list view of a showing.
type ShowingSummary struct {
    ID                string    `json:"id"`
    Title             string    `json:"title"`
    Showtime          time.Time `json:"showtime"`
    CurrentPriceCents int64     `json:"current_price_cents"`
    AvailableSeats    int       `json:"available_seats"`
    TotalSeats        int       `json:"total_seats"`
}

// Occupancy counts seats per status together with the showing's prices.
// It is the input the pricing adjuster works from.
type Occupancy struct {
    Booked            int
    Held              int
    Total             int
    BasePriceCents    int64
    CurrentPriceCents int64
}
