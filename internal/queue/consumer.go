package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/marketplace-negotiation/internal/logger"
)

// ErrMalformed marks a delivery that can never be processed.  Such
// deliveries are rejected without requeue.
var ErrMalformed = errors.New("malformed notification")

// Consumer reads the negotiation.events queue and appends one line per
// event to a notification log file.
type Consumer struct {
    URL      string
    LogPath  string
    Prefetch int
    Log      *logger.Logger

    mu sync.Mutex // serialises writes to LogPath
}

// NewConsumer returns a Consumer appending to logPath (logs/negotiation.log
// when empty).
func NewConsumer(url, logPath string, log *logger.Logger) *Consumer {
    if logPath == "" {
        logPath = filepath.Join("logs", "negotiation.log")
    }
    if log == nil {
        log = logger.Discard()
    }
    return &Consumer{URL: url, LogPath: logPath, Prefetch: 50, Log: log.Component("notification_consumer")}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes until
// ctx is cancelled.  Dial failures are retried with exponential backoff
// capped at 30s; a broken channel triggers a reconnect.  Run only returns
// once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return nil
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.Warn("dial_failed", "error", err.Error(), "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return nil
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        c.Log.Warn("consume_loop_ended", "error", err.Error())
        if !sleep(ctx, 2*time.Second) {
            return nil
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(c.Prefetch, 0, false); err != nil {
        c.Log.Warn("set_qos_failed", "error", err.Error())
    }
    if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(NotificationQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(d.Body); err != nil {
                c.Log.Error("handle_failed", "error", err.Error())
                // malformed payloads are dropped, write failures go back to the queue
                _ = d.Nack(false, !errors.Is(err, ErrMalformed))
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one delivery body and appends its line to the log file.
func (c *Consumer) Handle(body []byte) error {
    var env Envelope
    if err := json.Unmarshal(body, &env); err != nil {
        return fmt.Errorf("%w: %v", ErrMalformed, err)
    }
    if env.Name == "" || env.NegotiationID == "" {
        return fmt.Errorf("%w: missing name or negotiation_id", ErrMalformed)
    }

    c.mu.Lock()
    defer c.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(FormatLine(env)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders env as a single human-friendly line ending in "\n".
func FormatLine(env Envelope) string {
    var b strings.Builder
    fmt.Fprintf(&b, "[%s] %s | negotiation_id=%s | actor=%s | status=%s",
        env.OccurredAt.UTC().Format(time.RFC3339), env.Name, env.NegotiationID, env.ActorID, env.Status)
    if env.Offer != nil {
        fmt.Fprintf(&b, " | offer=%s", env.Offer.String())
    }
    if env.MessageID != "" {
        fmt.Fprintf(&b, " | message_id=%s", env.MessageID)
    }
    fmt.Fprintf(&b, " | notify=[%s]\n", strings.Join(env.Recipients(), ","))
    return b.String()
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
