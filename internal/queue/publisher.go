package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/seatsync/internal/ledger"
    "github.com/iliyamo/seatsync/pkg/logger"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
    QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

// Dialer opens a channel on a fresh connection.  The returned closer tears
// down the connection.
type Dialer func(url string) (Channel, io.Closer, error)

// DialAMQP is the Dialer used in production.
func DialAMQP(url string) (Channel, io.Closer, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, fmt.Errorf("channel open: %w", err)
    }
    return ch, conn, nil
}

const (
    maxBackoff   = 30 * time.Second
    drainTimeout = 5 * time.Second
)

// Publisher forwards booking and price events from the ledger to RabbitMQ.
// OnLedgerEvent only queues; Run keeps one connection open and publishes in
// order, reconnecting with backoff when the broker goes away.  Messages are
// persistent and survive broker restarts.
type Publisher struct {
    url  string
    dial Dialer
    log  *logger.Logger
    now  func() time.Time

    mu      sync.Mutex
    pending []message
    wake    chan struct{}
}

// NewPublisher creates a publisher for url.  A nil dial uses DialAMQP.
func NewPublisher(url string, dial Dialer, log *logger.Logger) *Publisher {
    if dial == nil {
        dial = DialAMQP
    }
    if log == nil {
        log = logger.Discard()
    }
    return &Publisher{url: url, dial: dial, log: log, now: time.Now, wake: make(chan struct{}, 1)}
}

// OnLedgerEvent implements ledger.Observer.
func (p *Publisher) OnLedgerEvent(ev ledger.Event) {
    m, ok := fromLedger(ev, p.now())
    if !ok {
        return
    }
    p.mu.Lock()
    p.pending = append(p.pending, m)
    p.mu.Unlock()
    select {
    case p.wake <- struct{}{}:
    default:
    }
}

// Pending reports how many messages wait to be published.
func (p *Publisher) Pending() int {
    p.mu.Lock()
    defer p.mu.Unlock()
    return len(p.pending)
}

// Run publishes queued messages until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        ch, conn, err := p.dial(p.url)
        if err != nil {
            p.log.Warn("publisher: dial failed", "error", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < maxBackoff {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = p.serve(ctx, ch)
        _ = ch.Close()
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        p.log.Warn("publisher: connection lost, reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (p *Publisher) serve(ctx context.Context, ch Channel) error {
    for _, q := range []string{SeatBookedQueue, PriceChangedQueue} {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
    }
    for {
        if err := p.drain(ctx, ch); err != nil {
            return err
        }
        select {
        case <-ctx.Done():
            // last chance for events queued by requests that finished draining
            dctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
            defer cancel()
            if err := p.drain(dctx, ch); err != nil {
                p.log.Error("publisher: events left unpublished at shutdown", "error", err, "pending", p.Pending())
            }
            return ctx.Err()
        case <-p.wake:
        }
    }
}

// drain publishes queued messages in order.  A message stays at the head of
// the queue until the broker accepts it.
func (p *Publisher) drain(ctx context.Context, ch Channel) error {
    for {
        p.mu.Lock()
        if len(p.pending) == 0 {
            p.mu.Unlock()
            return nil
        }
        m := p.pending[0]
        p.mu.Unlock()

        body, err := json.Marshal(m.body)
        if err != nil {
            p.log.Error("publisher: marshal failed", "queue", m.queue, "error", err)
            p.pop()
            continue
        }
        pub := amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    p.now().UTC(),
            Body:         body,
        }
        if err := ch.PublishWithContext(ctx, "", m.queue, false, false, pub); err != nil {
            return fmt.Errorf("publish %s: %w", m.queue, err)
        }
        p.pop()
    }
}

func (p *Publisher) pop() {
    p.mu.Lock()
    p.pending = p.pending[1:]
    p.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
