package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/ledger"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/pkg/logger"
)

// Default lease settings.
const (
	DefaultLeaseTTL      = 120 * time.Second
	DefaultSweepInterval = 5 * time.Second
)

// Options configures a Manager.  Zero values fall back to the defaults.
type Options struct {
	LeaseTTL      time.Duration
	SweepInterval time.Duration
	// Now is the clock; tests inject a fake one.
	Now func() time.Time
}

// Manager grants, ends and expires seat leases.  It is the only component
// that moves seats into or out of the held state.
type Manager struct {
	ledger   *ledger.Ledger
	resolver *Resolver
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// NewManager returns a Manager over l.
func NewManager(l *ledger.Ledger, log *logger.Logger, opts Options) *Manager {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		ledger:   l,
		resolver: NewResolver(l, opts.Now),
		ttl:      opts.LeaseTTL,
		interval: opts.SweepInterval,
		now:      opts.Now,
		log:      log,
	}
}

// LeaseTTL returns the fixed hold duration.
func (m *Manager) LeaseTTL() time.Duration { return m.ttl }

// Reserve places a hold on an available seat for holder.  Reserving a seat
// the holder already holds returns the existing lease unchanged; it is not a
// renewal.
func (m *Manager) Reserve(ctx context.Context, showingID, seatNumber, holder string) (model.Lease, error) {
	if holder == "" {
		return model.Lease{}, ErrUnauthenticated
	}
	if err := ctx.Err(); err != nil {
		return model.Lease{}, err
	}
	now := m.now()
	lease := model.Lease{
		ID:         uuid.NewString(),
		ShowingID:  showingID,
		SeatNumber: seatNumber,
		Holder:     holder,
		GrantedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
	}
	seat, granted, err := m.resolver.Claim(lease)
	if err != nil {
		return model.Lease{}, err
	}
	if granted {
		m.log.LogSeatTransition(ctx, showingID, seatNumber, string(model.SeatAvailable), string(model.SeatHeld), holder)
	}
	existing, _ := seat.Lease(showingID)
	return existing, nil
}

// Confirm books a seat held by holder on a live lease.
func (m *Manager) Confirm(ctx context.Context, showingID, seatNumber, holder string) (model.Seat, error) {
	return m.settle(ctx, showingID, seatNumber, holder, model.SeatBooked)
}

// Release gives a held seat back before its lease runs out.  Only the holder
// may release; a lapsed lease that the sweep has not reached yet can still be
// released by its holder.
func (m *Manager) Release(ctx context.Context, showingID, seatNumber, holder string) (model.Seat, error) {
	return m.settle(ctx, showingID, seatNumber, holder, model.SeatAvailable)
}

func (m *Manager) settle(ctx context.Context, showingID, seatNumber, holder string, to model.SeatStatus) (model.Seat, error) {
	if holder == "" {
		return model.Seat{}, ErrUnauthenticated
	}
	if err := ctx.Err(); err != nil {
		return model.Seat{}, err
	}
	seat, err := m.resolver.Settle(showingID, seatNumber, holder, to)
	if err != nil {
		return seat, err
	}
	m.log.LogSeatTransition(ctx, showingID, seatNumber, string(model.SeatHeld), string(to), holder)
	return seat, nil
}

// Sweep expires every hold whose lease has lapsed and returns how many seats
// went back to available.  A failure on one seat is logged and the sweep
// moves on.
func (m *Manager) Sweep(ctx context.Context) int {
	start := time.Now()
	expired := 0
	for _, showingID := range m.ledger.ShowingIDs() {
		if ctx.Err() != nil {
			break
		}
		held, err := m.ledger.HeldSeats(showingID)
		if err != nil {
			m.log.WithShowing(showingID).WithError(err).WarnContext(ctx, "sweep: listing held seats failed")
			continue
		}
		now := m.now()
		for _, seat := range held {
			if now.Before(seat.ExpiresAt) {
				continue
			}
			ok, err := m.resolver.Expire(showingID, seat)
			if err != nil {
				m.log.WithShowing(showingID).WithError(err).WarnContext(ctx, "sweep: expiring seat failed", "seat", seat.Number)
				continue
			}
			if ok {
				expired++
				m.log.LogSeatTransition(ctx, showingID, seat.Number, string(model.SeatHeld), string(model.SeatAvailable), seat.Holder)
			}
		}
	}
	m.log.LogSweep(ctx, expired, time.Since(start))
	return expired
}

// Run sweeps on every interval tick until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
