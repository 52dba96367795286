// Package broadcast fans showing deltas out to live subscribers.  Every
// showing with at least one subscriber has a topic with its own dispatcher
// goroutine, so deltas for a showing reach every subscriber in publish
// order while different showings never wait on each other.
package broadcast

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/ledger"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/pkg/logger"
)

// DefaultBuffer is the number of deltas a subscriber may fall behind by
// before it is cut off.
const DefaultBuffer = 64

var (
	// ErrSubscriberLagged ends a subscription whose buffer overflowed.  The
	// client must subscribe again to get a fresh snapshot.
	ErrSubscriberLagged = errors.New("subscriber fell behind")
	// ErrClosed ends a subscription closed by its owner or by shutdown.
	ErrClosed = errors.New("subscription closed")
)

// Snapshotter supplies the full state of a showing.
type Snapshotter interface {
	Snapshot(showingID string) (model.Showing, error)
}

// Broadcaster owns all subscriptions.
type Broadcaster struct {
	source Snapshotter
	buffer int
	log    *logger.Logger

	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

// New returns a Broadcaster reading snapshots from source.  buffer <= 0 uses
// DefaultBuffer.
func New(source Snapshotter, buffer int, log *logger.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Broadcaster{
		source: source,
		buffer: buffer,
		log:    log,
		topics: make(map[string]*topic),
	}
}

type topic struct {
	id   string
	wake chan struct{}
	done chan struct{}

	mu    sync.Mutex
	queue []model.Delta
	subs  map[*Subscription]struct{}
}

func newTopic(id string) *topic {
	return &topic{
		id:   id,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber for a showing and returns it with the
// showing's current snapshot.  Registration happens before the snapshot is
// taken, and the subscription skips deltas the snapshot already reflects,
// so the snapshot plus the stream never miss or repeat a change.
func (b *Broadcaster) Subscribe(showingID string) (*Subscription, model.Showing, error) {
	// Fail fast on unknown showings without creating a topic.
	if _, err := b.source.Snapshot(showingID); err != nil {
		return nil, model.Showing{}, err
	}

	sub := &Subscription{
		ID:        uuid.NewString(),
		ShowingID: showingID,
		ch:        make(chan model.Delta, b.buffer),
		b:         b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, model.Showing{}, ErrClosed
	}
	t, ok := b.topics[showingID]
	if !ok {
		t = newTopic(showingID)
		b.topics[showingID] = t
		go b.dispatch(t)
	}
	sub.t = t
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	b.mu.Unlock()

	snap, err := b.source.Snapshot(showingID)
	if err != nil {
		sub.Close()
		return nil, model.Showing{}, err
	}
	sub.baseline(snap)
	return sub, snap, nil
}

// Publish queues a delta for every current subscriber of the showing.  It
// never blocks on subscribers.  Deltas for showings nobody watches are
// dropped; a later subscriber gets them through its snapshot.
func (b *Broadcaster) Publish(showingID string, d model.Delta) {
	b.mu.Lock()
	t := b.topics[showingID]
	b.mu.Unlock()
	if t == nil {
		return
	}
	t.mu.Lock()
	t.queue = append(t.queue, d)
	t.mu.Unlock()
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// OnLedgerEvent feeds ledger mutations straight into Publish.
func (b *Broadcaster) OnLedgerEvent(ev ledger.Event) {
	b.Publish(ev.Delta.ShowingID, ev.Delta)
}

var _ ledger.Observer = (*Broadcaster)(nil)

func (b *Broadcaster) dispatch(t *topic) {
	for {
		select {
		case <-t.done:
			return
		case <-t.wake:
		}
		t.mu.Lock()
		batch := t.queue
		t.queue = nil
		subs := make([]*Subscription, 0, len(t.subs))
		for s := range t.subs {
			subs = append(subs, s)
		}
		t.mu.Unlock()

		for _, d := range batch {
			for _, s := range subs {
				if !s.deliver(d) {
					b.log.WithShowing(t.id).Warn("subscriber lagged; dropping", "subscription", s.ID)
					b.detach(s)
				}
			}
		}
	}
}

// detach removes s from its topic and retires the topic once empty.
func (b *Broadcaster) detach(s *Subscription) {
	t := s.t
	b.mu.Lock()
	defer b.mu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[s]; !ok {
		return
	}
	delete(t.subs, s)
	if len(t.subs) == 0 {
		if b.topics[t.id] == t {
			delete(b.topics, t.id)
		}
		close(t.done)
	}
}

// Subscribers returns the number of live subscriptions for a showing.
func (b *Broadcaster) Subscribers(showingID string) int {
	b.mu.Lock()
	t := b.topics[showingID]
	b.mu.Unlock()
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close ends every subscription with ErrClosed and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*Subscription
	for _, t := range b.topics {
		t.mu.Lock()
		for s := range t.subs {
			all = append(all, s)
		}
		t.mu.Unlock()
	}
	b.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
