package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/seatsync/internal/ledger"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/pkg/logger"
)

// SeatStore is the subset of ShowingRepo the journal writes through.
type SeatStore interface {
	SaveSeat(ctx context.Context, showingID string, st model.Seat) error
	SavePrice(ctx context.Context, showingID string, cents int64, version uint64) error
}

const (
	writeTimeout = 5 * time.Second // bounds a single row write
	minRetry     = 500 * time.Millisecond
	maxRetry     = 30 * time.Second
)

// Journal mirrors ledger events into a SeatStore.  OnLedgerEvent only
// queues; Run performs the writes on its own goroutine so the ledger never
// waits on the database.
type Journal struct {
	store SeatStore
	log   *logger.Logger

	mu      sync.Mutex
	pending []ledger.Event
	wake    chan struct{}
}

// NewJournal creates a journal writing to store.
func NewJournal(store SeatStore, log *logger.Logger) *Journal {
	if log == nil {
		log = logger.Discard()
	}
	return &Journal{store: store, log: log, wake: make(chan struct{}, 1)}
}

// OnLedgerEvent implements ledger.Observer.
func (j *Journal) OnLedgerEvent(ev ledger.Event) {
	j.mu.Lock()
	j.pending = append(j.pending, ev)
	j.mu.Unlock()
	select {
	case j.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many events are waiting to be written.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Run writes queued events until ctx is cancelled, then flushes whatever is
// still queued using a fresh deadline.  A failed write stays at the head of
// the queue and is retried with backoff; later events wait behind it so rows
// are never written out of order.
func (j *Journal) Run(ctx context.Context) error {
	backoff := minRetry
	var retry <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			defer cancel()
			if err := j.Flush(fctx); err != nil {
				j.log.WithError(err).Error("journal: events left unwritten at shutdown", "pending", j.Pending())
			}
			return ctx.Err()
		case <-j.wake:
			if retry != nil {
				// a failed write is waiting out its backoff
				continue
			}
		case <-retry:
		}
		if err := j.Flush(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			retry = time.After(backoff)
			if backoff < maxRetry {
				backoff *= 2
			}
			continue
		}
		retry = nil
		backoff = minRetry
	}
}

// Flush writes queued events in order and removes each one once the store
// accepted it.  It stops at the first failure, leaving that event queued,
// and returns the error.
func (j *Journal) Flush(ctx context.Context) error {
	for {
		j.mu.Lock()
		if len(j.pending) == 0 {
			j.mu.Unlock()
			return nil
		}
		ev := j.pending[0]
		j.mu.Unlock()

		if err := j.write(ctx, ev); err != nil {
			j.log.WithShowing(ev.Delta.ShowingID).WithError(err).Warn("journal write failed, will retry",
				"type", string(ev.Delta.Type),
				"seat", ev.Delta.SeatNumber,
				"version", ev.Delta.Version)
			return err
		}

		j.mu.Lock()
		j.pending = j.pending[1:]
		j.mu.Unlock()
	}
}

func (j *Journal) write(ctx context.Context, ev ledger.Event) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	switch ev.Delta.Type {
	case model.DeltaSeatStatus:
		if ev.Seat == nil {
			return nil
		}
		return j.store.SaveSeat(wctx, ev.Delta.ShowingID, *ev.Seat)
	case model.DeltaPrice:
		return j.store.SavePrice(wctx, ev.Delta.ShowingID, ev.PriceCents, ev.Delta.Version)
	}
	return nil
}
