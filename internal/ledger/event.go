package ledger

import "github.com/iliyamo/seatsync/internal/model"

// Event describes one applied mutation.  Seat is set for seat transitions
// and holds the full seat after the change; PriceCents is set for price
// changes.
type Event struct {
	Delta      model.Delta
	Seat       *model.Seat
	PriceCents int64
}

// Observer receives ledger events.  Events for one seat, and price events
// for one showing, arrive in the order they were applied.  There is no order
// across seats: each seat has its own lock, so two seats of one showing
// mutated concurrently may be observed in either order.  Consumers that
// rebuild a showing apply each seat's delta by its Version.  OnLedgerEvent
// is called while the mutated seat is locked, so implementations must only
// enqueue and return.
type Observer interface {
	OnLedgerEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnLedgerEvent calls f(ev).
func (f ObserverFunc) OnLedgerEvent(ev Event) { f(ev) }
