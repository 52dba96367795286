package queue

import (
    "context"
    "encoding/json"
    "errors"
    "io"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "testing"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/seatsync/internal/ledger"
    "github.com/iliyamo/seatsync/internal/model"
)

type sent struct {
    key  string
    body []byte
}

type fakeChannel struct {
    mu       sync.Mutex
    msgs     []sent
    declared []string
    failOnce bool
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.declared = append(f.declared, name)
    return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failOnce {
        f.failOnce = false
        return errors.New("channel closed")
    }
    f.msgs = append(f.msgs, sent{key: key, body: msg.Body})
    return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) published() []sent {
    f.mu.Lock()
    defer f.mu.Unlock()
    return append([]sent(nil), f.msgs...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func bookedEvent(seat string, version uint64) ledger.Event {
    s := model.Seat{Number: seat, Status: model.SeatBooked, BookedBy: "x", Version: version}
    return ledger.Event{Delta: model.SeatStatusChanged("s1", seat, model.SeatBooked, version), Seat: &s}
}

func waitFor(t *testing.T, cond func() bool) {
    t.Helper()
    deadline := time.Now().Add(2 * time.Second)
    for !cond() {
        if time.Now().After(deadline) {
            t.Fatal("condition not met in time")
        }
        time.Sleep(5 * time.Millisecond)
    }
}

func TestPublisherQueuesOnlyBookingsAndPrices(t *testing.T) {
    p := NewPublisher("amqp://unused", nil, nil)
    p.OnLedgerEvent(ledger.Event{Delta: model.SeatStatusChanged("s1", "A1", model.SeatHeld, 1)})
    p.OnLedgerEvent(ledger.Event{Delta: model.SeatStatusChanged("s1", "A1", model.SeatAvailable, 2)})
    p.OnLedgerEvent(bookedEvent("A2", 2))
    p.OnLedgerEvent(ledger.Event{Delta: model.PriceChanged("s1", 1250, 1), PriceCents: 1250})

    if got := p.Pending(); got != 2 {
        t.Fatalf("pending = %d, want 2", got)
    }
}

func TestPublisherRunPublishesInOrder(t *testing.T) {
    ch := &fakeChannel{}
    dial := func(string) (Channel, io.Closer, error) { return ch, nopCloser{}, nil }
    p := NewPublisher("amqp://test", dial, nil)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    done := make(chan error, 1)
    go func() { done <- p.Run(ctx) }()

    p.OnLedgerEvent(bookedEvent("A1", 2))
    p.OnLedgerEvent(ledger.Event{Delta: model.PriceChanged("s1", 1250, 1), PriceCents: 1250})

    waitFor(t, func() bool { return len(ch.published()) == 2 })
    msgs := ch.published()
    if msgs[0].key != SeatBookedQueue || msgs[1].key != PriceChangedQueue {
        t.Fatalf("keys = %s, %s", msgs[0].key, msgs[1].key)
    }
    var ev SeatBookedEvent
    if err := json.Unmarshal(msgs[0].body, &ev); err != nil {
        t.Fatal(err)
    }
    if ev.ShowingID != "s1" || ev.SeatNumber != "A1" || ev.BookedBy != "x" || ev.Version != 2 {
        t.Fatalf("event = %+v", ev)
    }

    cancel()
    select {
    case err := <-done:
        if !errors.Is(err, context.Canceled) {
            t.Fatalf("run returned %v", err)
        }
    case <-time.After(2 * time.Second):
        t.Fatal("run did not stop")
    }
}

func TestPublisherDrainsQueueOnCancel(t *testing.T) {
    ch := &fakeChannel{}
    dial := func(string) (Channel, io.Closer, error) { return ch, nopCloser{}, nil }
    p := NewPublisher("amqp://test", dial, nil)

    ctx, cancel := context.WithCancel(context.Background())
    p.OnLedgerEvent(bookedEvent("A1", 2))
    cancel()

    if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
        t.Fatalf("run returned %v", err)
    }
    if p.Pending() != 0 || len(ch.published()) != 1 {
        t.Fatalf("pending=%d published=%d", p.Pending(), len(ch.published()))
    }
}

func TestPublisherKeepsMessageAfterFailedPublish(t *testing.T) {
    ch := &fakeChannel{failOnce: true}
    p := NewPublisher("amqp://test", nil, nil)
    p.OnLedgerEvent(bookedEvent("A1", 2))

    if err := p.drain(context.Background(), ch); err == nil {
        t.Fatal("expected publish error")
    }
    if p.Pending() != 1 {
        t.Fatalf("message should stay queued")
    }
    if err := p.drain(context.Background(), ch); err != nil {
        t.Fatal(err)
    }
    if p.Pending() != 0 || len(ch.published()) != 1 {
        t.Fatalf("pending=%d published=%d", p.Pending(), len(ch.published()))
    }
}

func TestFormatAuditLine(t *testing.T) {
    body, _ := json.Marshal(SeatBookedEvent{ShowingID: "s1", SeatNumber: "A1", BookedBy: "x", Version: 2, BookedAt: "2026-10-18T12:00:00Z"})
    line, err := FormatAuditLine(SeatBookedQueue, body)
    if err != nil {
        t.Fatal(err)
    }
    want := "[2026-10-18T12:00:00Z] Seat booked | showing=s1 | seat=A1 | booked_by=x | version=2\n"
    if line != want {
        t.Fatalf("line = %q", line)
    }

    body, _ = json.Marshal(PriceChangedEvent{ShowingID: "s1", PriceCents: 1250, Version: 1, ChangedAt: "2026-10-18T12:00:00Z"})
    line, err = FormatAuditLine(PriceChangedQueue, body)
    if err != nil || !strings.Contains(line, "price=1250 cents") {
        t.Fatalf("line = %q err = %v", line, err)
    }

    if _, err := FormatAuditLine(SeatBookedQueue, []byte("{")); err == nil {
        t.Fatal("expected unmarshal error")
    }
    if _, err := FormatAuditLine("other", body); err == nil {
        t.Fatal("expected unknown queue error")
    }
}

func TestHandleMessageAppends(t *testing.T) {
    dir := filepath.Join(t.TempDir(), "logs")
    body, _ := json.Marshal(SeatBookedEvent{ShowingID: "s1", SeatNumber: "A1", BookedBy: "x", Version: 2, BookedAt: "t"})
    for i := 0; i < 2; i++ {
        if err := handleMessage(dir, SeatBookedQueue, body); err != nil {
            t.Fatal(err)
        }
    }
    data, err := os.ReadFile(filepath.Join(dir, AuditLogFile))
    if err != nil {
        t.Fatal(err)
    }
    if n := strings.Count(string(data), "Seat booked"); n != 2 {
        t.Fatalf("got %d lines:\n%s", n, data)
    }
}
