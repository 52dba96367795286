// Package ledger holds the authoritative state of every showing and seat.
// All seat mutations go through CompareAndSet, which locks only the seat it
// touches, so unrelated seats of the same showing change in parallel.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seatsync/internal/model"
)

// Transition is the target state of a compare-and-set.  Holder, LeaseID,
// HeldAt and ExpiresAt are required when Status is SeatHeld and ignored
// otherwise.  BookedBy may be left empty on a move to SeatBooked, in which
// case the current holder is recorded.
type Transition struct {
	Status    model.SeatStatus
	Holder    string
	LeaseID   string
	HeldAt    time.Time
	ExpiresAt time.Time
}

// Guard inspects the current seat under its lock after the status check has
// passed.  A non-nil error vetoes the mutation and is returned to the caller.
type Guard func(current model.Seat) error

// Result is the outcome of a compare-and-set.  Seat is the state after the
// call: the new state when OK, the unchanged current state otherwise.
type Result struct {
	OK   bool
	Seat model.Seat
}

type seatSlot struct {
	mu   sync.Mutex
	seat model.Seat
}

type showingState struct {
	id       string
	title    string
	showtime time.Time
	base     int64

	priceMu      sync.Mutex
	price        int64
	priceVersion uint64

	order []*seatSlot
	seats map[string]*seatSlot
}

// Ledger is the in-memory record of all provisioned showings.  Create one
// with New and pass it to every component that needs it.
type Ledger struct {
	mu       sync.RWMutex // guards showings; only Provision writes
	showings map[string]*showingState

	obsMu     sync.Mutex
	observers []Observer // copy-on-write
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{showings: make(map[string]*showingState)}
}

// Watch registers an observer for all future events.
func (l *Ledger) Watch(o Observer) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()
	next := make([]Observer, len(l.observers), len(l.observers)+1)
	copy(next, l.observers)
	l.observers = append(next, o)
}

func (l *Ledger) emit(ev Event) {
	l.obsMu.Lock()
	obs := l.observers
	l.obsMu.Unlock()
	for _, o := range obs {
		o.OnLedgerEvent(ev)
	}
}

// Provision adds a showing.  Seats keep the given order and state, which lets
// a persisted ledger be restored with its holds and bookings.  A zero
// CurrentPriceCents starts at the base price.
func (l *Ledger) Provision(s model.Showing) error {
	if s.ID == "" || len(s.Seats) == 0 || s.BasePriceCents < 0 {
		return fmt.Errorf("%w: id and at least one seat are required", ErrInvalidShowing)
	}
	st := &showingState{
		id:           s.ID,
		title:        s.Title,
		showtime:     s.Showtime,
		base:         s.BasePriceCents,
		price:        s.CurrentPriceCents,
		priceVersion: s.PriceVersion,
		order:        make([]*seatSlot, 0, len(s.Seats)),
		seats:        make(map[string]*seatSlot, len(s.Seats)),
	}
	if st.price <= 0 {
		st.price = st.base
	}
	for _, seat := range s.Seats {
		if seat.Number == "" {
			return fmt.Errorf("%w: empty seat number", ErrInvalidShowing)
		}
		if _, dup := st.seats[seat.Number]; dup {
			return fmt.Errorf("%w: duplicate seat %q", ErrInvalidShowing, seat.Number)
		}
		if seat.Status == "" {
			seat.Status = model.SeatAvailable
		}
		if !seat.Status.Valid() {
			return fmt.Errorf("%w: seat %q has status %q", ErrInvalidShowing, seat.Number, seat.Status)
		}
		if seat.Status == model.SeatHeld && (seat.Holder == "" || seat.ExpiresAt.IsZero()) {
			return fmt.Errorf("%w: held seat %q needs holder and expiry", ErrInvalidShowing, seat.Number)
		}
		if seat.Status != model.SeatHeld {
			clearHold(&seat)
		}
		slot := &seatSlot{seat: seat}
		st.order = append(st.order, slot)
		st.seats[seat.Number] = slot
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.showings[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrShowingExists, s.ID)
	}
	l.showings[s.ID] = st
	return nil
}

func (l *Ledger) showing(id string) (*showingState, error) {
	l.mu.RLock()
	st, ok := l.showings[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShowingNotFound, id)
	}
	return st, nil
}

func (l *Ledger) slot(showingID, seatNumber string) (*seatSlot, error) {
	st, err := l.showing(showingID)
	if err != nil {
		return nil, err
	}
	slot, ok := st.seats[seatNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrSeatNotFound, showingID, seatNumber)
	}
	return slot, nil
}

// CompareAndSet moves a seat to next if its status is currently expected.
// When the status differs it returns OK=false and the current seat without
// changing anything.  It never waits for another caller beyond the short
// per-seat critical section.
func (l *Ledger) CompareAndSet(showingID, seatNumber string, expected model.SeatStatus, next Transition) (Result, error) {
	return l.CompareAndSetIf(showingID, seatNumber, expected, next, nil)
}

// CompareAndSetIf is CompareAndSet with an extra guard evaluated atomically
// with the status check.  A guard error leaves the seat untouched and is
// returned together with OK=false and the current seat.
func (l *Ledger) CompareAndSetIf(showingID, seatNumber string, expected model.SeatStatus, next Transition, guard Guard) (Result, error) {
	if !allowed(expected, next.Status) {
		return Result{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, expected, next.Status)
	}
	if next.Status == model.SeatHeld && (next.Holder == "" || next.ExpiresAt.IsZero()) {
		return Result{}, fmt.Errorf("%w: hold needs holder and expiry", ErrInvalidTransition)
	}
	slot, err := l.slot(showingID, seatNumber)
	if err != nil {
		return Result{}, err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	cur := slot.seat
	if cur.Status != expected {
		return Result{Seat: cur}, nil
	}
	if guard != nil {
		if err := guard(cur); err != nil {
			return Result{Seat: cur}, err
		}
	}

	upd := cur
	switch next.Status {
	case model.SeatHeld:
		upd.Holder = next.Holder
		upd.LeaseID = next.LeaseID
		upd.HeldAt = next.HeldAt
		upd.ExpiresAt = next.ExpiresAt
	case model.SeatBooked:
		upd.BookedBy = cur.Holder
		if next.Holder != "" {
			upd.BookedBy = next.Holder
		}
		clearHold(&upd)
	case model.SeatAvailable:
		clearHold(&upd)
	}
	upd.Status = next.Status
	upd.Version++
	slot.seat = upd

	// Still under the seat lock: the next mutation of this seat cannot
	// emit before this one.
	seat := upd
	l.emit(Event{
		Delta: model.SeatStatusChanged(showingID, seatNumber, upd.Status, upd.Version),
		Seat:  &seat,
	})
	return Result{OK: true, Seat: upd}, nil
}

// allowed encodes the seat state machine:
// available -> reserved -> booked, reserved -> available.
func allowed(from, to model.SeatStatus) bool {
	switch from {
	case model.SeatAvailable:
		return to == model.SeatHeld
	case model.SeatHeld:
		return to == model.SeatBooked || to == model.SeatAvailable
	}
	return false
}

func clearHold(s *model.Seat) {
	s.Holder = ""
	s.LeaseID = ""
	s.HeldAt = time.Time{}
	s.ExpiresAt = time.Time{}
}

// Seat returns a copy of one seat.
func (l *Ledger) Seat(showingID, seatNumber string) (model.Seat, error) {
	slot, err := l.slot(showingID, seatNumber)
	if err != nil {
		return model.Seat{}, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.seat, nil
}

// Snapshot returns a deep copy of a showing.  Each seat is read under its own
// lock; seats changing during the copy may be from slightly different
// instants, and every seat carries its Version so readers can reconcile.
func (l *Ledger) Snapshot(showingID string) (model.Showing, error) {
	st, err := l.showing(showingID)
	if err != nil {
		return model.Showing{}, err
	}
	out := model.Showing{
		ID:             st.id,
		Title:          st.title,
		Showtime:       st.showtime,
		BasePriceCents: st.base,
		Seats:          make([]model.Seat, 0, len(st.order)),
	}
	st.priceMu.Lock()
	out.CurrentPriceCents = st.price
	out.PriceVersion = st.priceVersion
	st.priceMu.Unlock()

	for _, slot := range st.order {
		slot.mu.Lock()
		out.Seats = append(out.Seats, slot.seat)
		slot.mu.Unlock()
	}
	return out, nil
}

// HeldSeats returns copies of the seats currently held in a showing.
func (l *Ledger) HeldSeats(showingID string) ([]model.Seat, error) {
	st, err := l.showing(showingID)
	if err != nil {
		return nil, err
	}
	var held []model.Seat
	for _, slot := range st.order {
		slot.mu.Lock()
		if slot.seat.Status == model.SeatHeld {
			held = append(held, slot.seat)
		}
		slot.mu.Unlock()
	}
	return held, nil
}

// ShowingIDs returns the IDs of all provisioned showings, sorted.
func (l *Ledger) ShowingIDs() []string {
	l.mu.RLock()
	ids := make([]string, 0, len(l.showings))
	for id := range l.showings {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// List returns a summary of every showing ordered by showtime, then ID.
func (l *Ledger) List() []model.ShowingSummary {
	l.mu.RLock()
	states := make([]*showingState, 0, len(l.showings))
	for _, st := range l.showings {
		states = append(states, st)
	}
	l.mu.RUnlock()

	out := make([]model.ShowingSummary, 0, len(states))
	for _, st := range states {
		occ := st.occupancy()
		st.priceMu.Lock()
		price := st.price
		st.priceMu.Unlock()
		out = append(out, model.ShowingSummary{
			ID:                st.id,
			Title:             st.title,
			Showtime:          st.showtime,
			CurrentPriceCents: price,
			AvailableSeats:    occ.Total - occ.Booked - occ.Held,
			TotalSeats:        occ.Total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Showtime.Equal(out[j].Showtime) {
			return out[i].Showtime.Before(out[j].Showtime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (st *showingState) occupancy() model.Occupancy {
	occ := model.Occupancy{Total: len(st.order), BasePriceCents: st.base}
	for _, slot := range st.order {
		slot.mu.Lock()
		switch slot.seat.Status {
		case model.SeatBooked:
			occ.Booked++
		case model.SeatHeld:
			occ.Held++
		}
		slot.mu.Unlock()
	}
	return occ
}

// Occupancy counts booked and held seats of a showing.
func (l *Ledger) Occupancy(showingID string) (model.Occupancy, error) {
	st, err := l.showing(showingID)
	if err != nil {
		return model.Occupancy{}, err
	}
	occ := st.occupancy()
	st.priceMu.Lock()
	occ.CurrentPriceCents = st.price
	st.priceMu.Unlock()
	return occ, nil
}

// Reprice recomputes the current price of a showing with fn.  fn runs under
// the showing's price lock with freshly counted occupancy, so concurrent
// reprices never overwrite a newer count with an older one.  When the price
// changes the new PriceChanged delta is emitted and returned with true.
func (l *Ledger) Reprice(showingID string, fn func(model.Occupancy) int64) (model.Delta, bool, error) {
	st, err := l.showing(showingID)
	if err != nil {
		return model.Delta{}, false, err
	}
	st.priceMu.Lock()
	defer st.priceMu.Unlock()

	occ := st.occupancy()
	occ.CurrentPriceCents = st.price
	next := fn(occ)
	if next == st.price || next < 0 {
		return model.Delta{}, false, nil
	}
	st.price = next
	st.priceVersion++
	d := model.PriceChanged(showingID, next, st.priceVersion)
	l.emit(Event{Delta: d, PriceCents: next})
	return d, true, nil
}
