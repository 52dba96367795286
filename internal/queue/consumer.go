package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/seatsync/pkg/logger"
)

// AuditLogFile is the file the consumer appends to inside its directory.
const AuditLogFile = "booking.log"

// StartAuditConsumer connects to RabbitMQ, declares the seat.booked and
// price.changed queues (durable) and appends every message to
// dir/booking.log as a single line.  It reconnects with backoff and only
// returns once ctx is cancelled.  Messages that cannot be decoded or written
// are rejected without requeue so one bad payload cannot stall the queue.
func StartAuditConsumer(ctx context.Context, url, dir string, log *logger.Logger) error {
    if log == nil {
        log = logger.Discard()
    }
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Warn("audit-consumer: failed to dial broker", "error", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < maxBackoff {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, dir, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("audit-consumer: consume loop ended, reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string, log *logger.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("audit-consumer: set QoS failed", "error", err)
    }

    var streams []<-chan amqp.Delivery
    for _, q := range []string{SeatBookedQueue, PriceChangedQueue} {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        streams = append(streams, msgs)
    }

    booked, priced := streams[0], streams[1]
    for booked != nil || priced != nil {
        var (
            d  amqp.Delivery
            ok bool
        )
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok = <-booked:
            if !ok {
                booked = nil
                continue
            }
        case d, ok = <-priced:
            if !ok {
                priced = nil
                continue
            }
        }
        if err := handleMessage(dir, d.RoutingKey, d.Body); err != nil {
            log.Warn("audit-consumer: handle message failed", "queue", d.RoutingKey, "error", err)
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func handleMessage(dir, queue string, body []byte) error {
    line, err := FormatAuditLine(queue, body)
    if err != nil {
        return err
    }
    return appendLine(dir, line)
}

// FormatAuditLine renders one message as a human-friendly log line.
func FormatAuditLine(queue string, body []byte) (string, error) {
    switch queue {
    case SeatBookedQueue:
        var ev SeatBookedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Seat booked | showing=%s | seat=%s | booked_by=%s | version=%d\n",
            ev.BookedAt, ev.ShowingID, ev.SeatNumber, ev.BookedBy, ev.Version), nil
    case PriceChangedQueue:
        var ev PriceChangedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Price changed | showing=%s | price=%d cents | version=%d\n",
            ev.ChangedAt, ev.ShowingID, ev.PriceCents, ev.Version), nil
    }
    return "", fmt.Errorf("unknown queue %q", queue)
}

func appendLine(dir, line string) error {
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, AuditLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
