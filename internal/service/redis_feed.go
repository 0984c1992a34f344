package service

import (
    "context"
    "encoding/json"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/marketplace-negotiation/internal/logger"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
    q "github.com/iliyamo/marketplace-negotiation/internal/queue"
)

// RedisSink publishes each event on Redis pub/sub so that connected UIs can
// refresh without polling.  Every envelope goes to the negotiation channel
// and to the channel of each party.
type RedisSink struct {
    rdb    *redis.Client
    prefix string
    log    *logger.Logger
}

// NewRedisSink returns a sink publishing through rdb.  Channel names start
// with prefix ("feed" when empty).
func NewRedisSink(rdb *redis.Client, prefix string, log *logger.Logger) *RedisSink {
    if prefix == "" {
        prefix = "feed"
    }
    if log == nil {
        log = logger.Discard()
    }
    return &RedisSink{rdb: rdb, prefix: prefix, log: log.Component("redis_feed")}
}

var _ negotiation.EventSink = (*RedisSink)(nil)

// NegotiationChannel is the channel carrying every event of one negotiation.
func (s *RedisSink) NegotiationChannel(id string) string { return s.prefix + ":negotiation:" + id }

// ActorChannel is the channel carrying every event that concerns actorID.
func (s *RedisSink) ActorChannel(actorID string) string { return s.prefix + ":actor:" + actorID }

// Publish implements negotiation.EventSink.
func (s *RedisSink) Publish(ctx context.Context, ev negotiation.Event) {
    env := q.EnvelopeFrom(ev)
    payload, err := json.Marshal(env)
    if err != nil {
        s.log.Error("marshal_failed", "event", env.Name, "error", err.Error())
        return
    }
    channels := []string{s.NegotiationChannel(env.NegotiationID)}
    for _, id := range []string{env.ClientID, env.ProviderID} {
        if id != "" {
            channels = append(channels, s.ActorChannel(id))
        }
    }
    _, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
        for _, ch := range channels {
            p.Publish(ctx, ch, payload)
        }
        return nil
    })
    if err != nil {
        s.log.Warn("publish_failed",
            "event", env.Name,
            "negotiation_id", env.NegotiationID,
            "error", err.Error())
    }
}
