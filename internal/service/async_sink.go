package service

import (
    "context"
    "sync/atomic"

    "github.com/iliyamo/marketplace-negotiation/internal/logger"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

type pending struct {
    ctx context.Context
    ev  negotiation.Event
}

// AsyncSink decouples the engine from slow sinks.  Publish only enqueues;
// a single worker started with Run delivers events to the wrapped sink in
// publication order.  When the buffer is full the event is dropped and
// logged so that a stalled broker never blocks a request.
type AsyncSink struct {
    next    negotiation.EventSink
    queue   chan pending
    log     *logger.Logger
    dropped atomic.Int64
}

// NewAsyncSink wraps next with a buffer of the given size (at least 1).
func NewAsyncSink(next negotiation.EventSink, size int, log *logger.Logger) *AsyncSink {
    if size < 1 {
        size = 1
    }
    if log == nil {
        log = logger.Discard()
    }
    return &AsyncSink{next: next, queue: make(chan pending, size), log: log.Component("async_sink")}
}

var _ negotiation.EventSink = (*AsyncSink)(nil)

// Publish enqueues ev without blocking.  The request context is detached
// from its cancellation so delivery outlives the request.
func (s *AsyncSink) Publish(ctx context.Context, ev negotiation.Event) {
    select {
    case s.queue <- pending{ctx: context.WithoutCancel(ctx), ev: ev}:
    default:
        s.dropped.Add(1)
        s.log.Warn("event_dropped",
            "event", ev.EventName(),
            "negotiation_id", ev.Base().NegotiationID,
            "reason", "buffer full")
    }
}

// Dropped returns the number of events discarded because the buffer was full.
func (s *AsyncSink) Dropped() int64 { return s.dropped.Load() }

// Run delivers queued events until ctx is cancelled, then flushes whatever
// is still buffered and returns nil.
func (s *AsyncSink) Run(ctx context.Context) error {
    for {
        select {
        case p := <-s.queue:
            s.next.Publish(p.ctx, p.ev)
        case <-ctx.Done():
            for {
                select {
                case p := <-s.queue:
                    s.next.Publish(p.ctx, p.ev)
                default:
                    return nil
                }
            }
        }
    }
}

// FanoutSink delivers each event to every sink in order.
type FanoutSink []negotiation.EventSink

var _ negotiation.EventSink = FanoutSink(nil)

// Publish implements negotiation.EventSink.
func (f FanoutSink) Publish(ctx context.Context, ev negotiation.Event) {
    for _, s := range f {
        if s != nil {
            s.Publish(ctx, ev)
        }
    }
}
