package reservation

import (
	"fmt"
	"time"

	"github.com/iliyamo/seatsync/internal/ledger"
	"github.com/iliyamo/seatsync/internal/model"
)

// Resolver applies holder and expiry policy around ledger compare-and-set
// calls and turns CAS failures into caller-facing errors.  The checks run as
// ledger guards, under the same seat lock as the mutation.
type Resolver struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

// NewResolver returns a Resolver over l using now as its clock.
func NewResolver(l *ledger.Ledger, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{ledger: l, now: now}
}

// Claim moves an available seat to held under lease.  When the seat is
// already held by the same holder on a live lease, the existing seat is
// returned with granted=false and no error.  Any other occupied state is
// ErrSeatUnavailable.
func (r *Resolver) Claim(lease model.Lease) (seat model.Seat, granted bool, err error) {
	res, err := r.ledger.CompareAndSet(lease.ShowingID, lease.SeatNumber, model.SeatAvailable, ledger.Transition{
		Status:    model.SeatHeld,
		Holder:    lease.Holder,
		LeaseID:   lease.ID,
		HeldAt:    lease.GrantedAt,
		ExpiresAt: lease.ExpiresAt,
	})
	if err != nil {
		return model.Seat{}, false, err
	}
	if res.OK {
		return res.Seat, true, nil
	}
	cur := res.Seat
	if cur.Status == model.SeatHeld && cur.Holder == lease.Holder && r.now().Before(cur.ExpiresAt) {
		return cur, false, nil
	}
	return cur, false, fmt.Errorf("%w: %s/%s is %s", ErrSeatUnavailable, lease.ShowingID, lease.SeatNumber, cur.Status)
}

// Settle ends a hold owned by holder, moving the seat to booked or back to
// available.  Booking additionally requires the lease to be unexpired.  A
// seat that is not held at all belongs to nobody the caller can act for, so
// it is reported as ErrNotHolder.
func (r *Resolver) Settle(showingID, seatNumber, holder string, to model.SeatStatus) (model.Seat, error) {
	guard := func(cur model.Seat) error {
		if cur.Holder != holder {
			return ErrNotHolder
		}
		if to == model.SeatBooked && !r.now().Before(cur.ExpiresAt) {
			return ErrLeaseExpired
		}
		return nil
	}
	res, err := r.ledger.CompareAndSetIf(showingID, seatNumber, model.SeatHeld, ledger.Transition{Status: to, Holder: holder}, guard)
	if err != nil {
		return res.Seat, err
	}
	if !res.OK {
		return res.Seat, fmt.Errorf("%w: %s/%s is %s", ErrNotHolder, showingID, seatNumber, res.Seat.Status)
	}
	return res.Seat, nil
}

// Expire returns a lapsed hold to available.  It only succeeds when the seat
// still carries the lease that was scanned and that lease has lapsed; a
// confirm, release or new hold landing first makes it a no-op.
func (r *Resolver) Expire(showingID string, scanned model.Seat) (bool, error) {
	guard := func(cur model.Seat) error {
		if cur.LeaseID != scanned.LeaseID || r.now().Before(cur.ExpiresAt) {
			return errLeaseChanged
		}
		return nil
	}
	res, err := r.ledger.CompareAndSetIf(showingID, scanned.Number, model.SeatHeld, ledger.Transition{Status: model.SeatAvailable}, guard)
	if err == errLeaseChanged {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.OK, nil
}
