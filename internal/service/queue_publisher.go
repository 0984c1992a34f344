// Package service holds the event sinks that carry negotiation events out of
// the engine: the RabbitMQ publisher feeding the notification consumer, the
// Redis pub/sub feed for live clients, and the buffering and fan-out wrappers
// that keep delivery off the request path.
package service

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/marketplace-negotiation/internal/logger"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
    q "github.com/iliyamo/marketplace-negotiation/internal/queue"
)

// AMQPSink publishes every event as a persistent JSON envelope on the
// durable negotiation.events queue.  The connection is opened on first use
// and reopened after any failure, so a broker outage only costs the events
// published while it lasts.  Failures are logged, never returned.
type AMQPSink struct {
    url string
    log *logger.Logger

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

// NewAMQPSink returns a sink publishing to the broker at url.
func NewAMQPSink(url string, log *logger.Logger) *AMQPSink {
    if log == nil {
        log = logger.Discard()
    }
    return &AMQPSink{url: url, log: log.Component("amqp_sink")}
}

var _ negotiation.EventSink = (*AMQPSink)(nil)

// Publish implements negotiation.EventSink.
func (s *AMQPSink) Publish(ctx context.Context, ev negotiation.Event) {
    if err := s.PublishEnvelope(ctx, q.EnvelopeFrom(ev)); err != nil {
        s.log.Error("publish_failed",
            "event", ev.EventName(),
            "negotiation_id", ev.Base().NegotiationID,
            "error", err.Error())
    }
}

// PublishEnvelope marshals env and publishes it, reconnecting when needed.
func (s *AMQPSink) PublishEnvelope(ctx context.Context, env q.Envelope) error {
    body, err := json.Marshal(env)
    if err != nil {
        return fmt.Errorf("marshal envelope: %w", err)
    }

    s.mu.Lock()
    defer s.mu.Unlock()
    ch, err := s.channelLocked()
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Type:         env.Name,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",                  // default exchange
        q.NotificationQueue, // routing key = queue name
        false,               // mandatory
        false,               // immediate
        pub,
    ); err != nil {
        s.resetLocked()
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}

// channelLocked returns an open channel, dialing and declaring the queue
// when the previous one is gone.
func (s *AMQPSink) channelLocked() (*amqp.Channel, error) {
    if s.ch != nil && !s.ch.IsClosed() {
        return s.ch, nil
    }
    s.resetLocked()
    if s.url == "" {
        return nil, errors.New("no broker url configured")
    }
    conn, err := amqp.Dial(s.url)
    if err != nil {
        return nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("channel open: %w", err)
    }
    // Idempotent; durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(q.NotificationQueue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("queue declare: %w", err)
    }
    s.conn, s.ch = conn, ch
    return ch, nil
}

func (s *AMQPSink) resetLocked() {
    if s.ch != nil {
        _ = s.ch.Close()
        s.ch = nil
    }
    if s.conn != nil {
        _ = s.conn.Close()
        s.conn = nil
    }
}

// Close releases the broker connection.
func (s *AMQPSink) Close() error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.resetLocked()
    return nil
}
