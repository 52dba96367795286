// Package queue carries booking and pricing events to RabbitMQ and contains
// the audit consumer that records them in logs/booking.log.
package queue

import (
    "time"

    "github.com/iliyamo/seatsync/internal/ledger"
    "github.com/iliyamo/seatsync/internal/model"
)

// Queue names.  Messages go through the default exchange, so the routing key
// of every message equals its queue name.
const (
    SeatBookedQueue   = "seat.booked"
    PriceChangedQueue = "price.changed"
)

// SeatBookedEvent is published when a seat is confirmed.  It carries enough
// for downstream consumers to log or notify without asking the ledger.
type SeatBookedEvent struct {
    ShowingID  string `json:"showing_id"`
    SeatNumber string `json:"seat_number"`
    BookedBy   string `json:"booked_by"`
    Version    uint64 `json:"version"`
    BookedAt   string `json:"booked_at"`
}

// PriceChangedEvent is published when the pricing adjuster moves the current
// price of a showing.
type PriceChangedEvent struct {
    ShowingID  string `json:"showing_id"`
    PriceCents int64  `json:"price_cents"`
    Version    uint64 `json:"version"`
    ChangedAt  string `json:"changed_at"`
}

// message is one queued publication.
type message struct {
    queue string
    body  interface{}
}

// fromLedger maps a ledger event to the message it should produce.  Holds
// and releases are not published.
func fromLedger(ev ledger.Event, at time.Time) (message, bool) {
    stamp := at.UTC().Format(time.RFC3339)
    switch ev.Delta.Type {
    case model.DeltaSeatStatus:
        if ev.Delta.Status != model.SeatBooked {
            return message{}, false
        }
        bookedBy := ""
        if ev.Seat != nil {
            bookedBy = ev.Seat.BookedBy
        }
        return message{queue: SeatBookedQueue, body: SeatBookedEvent{
            ShowingID:  ev.Delta.ShowingID,
            SeatNumber: ev.Delta.SeatNumber,
            BookedBy:   bookedBy,
            Version:    ev.Delta.Version,
            BookedAt:   stamp,
        }}, true
    case model.DeltaPrice:
        return message{queue: PriceChangedQueue, body: PriceChangedEvent{
            ShowingID:  ev.Delta.ShowingID,
            PriceCents: ev.PriceCents,
            Version:    ev.Delta.Version,
            ChangedAt:  stamp,
        }}, true
    }
    return message{}, false
}
