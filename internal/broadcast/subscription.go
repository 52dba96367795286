package broadcast

import (
	"context"
	"sync"

	"github.com/iliyamo/seatsync/internal/model"
)

// Subscription is one viewer's stream of deltas for a showing.  Call Close
// when the viewer goes away; it only affects this subscription.
type Subscription struct {
	ID        string
	ShowingID string

	ch chan model.Delta
	b  *Broadcaster
	t  *topic

	mu     sync.Mutex
	closed bool
	err    error

	// set once before Subscribe returns, read only by the consumer
	seatVersion  map[string]uint64
	priceVersion uint64
}

func (s *Subscription) baseline(snap model.Showing) {
	s.seatVersion = make(map[string]uint64, len(snap.Seats))
	for _, seat := range snap.Seats {
		s.seatVersion[seat.Number] = seat.Version
	}
	s.priceVersion = snap.PriceVersion
}

// deliver hands d to the subscriber without blocking.  It reports false when
// the buffer was full, in which case the subscription is ended.
func (s *Subscription) deliver(d model.Delta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- d:
		return true
	default:
		s.closeLocked(ErrSubscriberLagged)
		return false
	}
}

func (s *Subscription) closeLocked(err error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}

// Next returns the next delta, skipping any the initial snapshot already
// covered.  After the subscription ends, buffered deltas are still returned
// and then the terminal error (ErrClosed or ErrSubscriberLagged).
func (s *Subscription) Next(ctx context.Context) (model.Delta, error) {
	for {
		select {
		case <-ctx.Done():
			return model.Delta{}, ctx.Err()
		case d, ok := <-s.ch:
			if !ok {
				return model.Delta{}, s.Err()
			}
			if s.stale(d) {
				continue
			}
			return d, nil
		}
	}
}

func (s *Subscription) stale(d model.Delta) bool {
	switch d.Type {
	case model.DeltaSeatStatus:
		if d.Version <= s.seatVersion[d.SeatNumber] {
			return true
		}
		s.seatVersion[d.SeatNumber] = d.Version
	case model.DeltaPrice:
		if d.Version <= s.priceVersion {
			return true
		}
		s.priceVersion = d.Version
	}
	return false
}

// Err returns why the subscription ended, or nil while it is live.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription.  It is safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	s.closeLocked(ErrClosed)
	s.mu.Unlock()
	s.b.detach(s)
}
