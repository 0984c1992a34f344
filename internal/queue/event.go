// Package queue defines the notification payload exchanged over the message
// broker and the background consumer that turns it into notification lines.
package queue

import (
    "time"

    "github.com/iliyamo/marketplace-negotiation/internal/model"
    "github.com/iliyamo/marketplace-negotiation/internal/money"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

// NotificationQueue is the durable queue every negotiation event is routed to.
const NotificationQueue = "negotiation.events"

// Envelope is the JSON body published for each domain event.  It carries
// enough for downstream consumers to notify both parties without reading the
// primary database.
type Envelope struct {
    Name          string       `json:"name"`
    NegotiationID string       `json:"negotiation_id"`
    MessageID     string       `json:"message_id,omitempty"`
    ClientID      string       `json:"client_id"`
    ProviderID    string       `json:"provider_id"`
    ActorID       string       `json:"actor_id"`
    Status        model.Status `json:"status"`
    Offer         *money.Money `json:"offer,omitempty"`
    OccurredAt    time.Time    `json:"occurred_at"`
}

// EnvelopeFrom flattens ev into its wire form.
func EnvelopeFrom(ev negotiation.Event) Envelope {
    b := ev.Base()
    env := Envelope{
        Name:          ev.EventName(),
        NegotiationID: b.NegotiationID,
        ClientID:      b.ClientID,
        ProviderID:    b.ProviderID,
        ActorID:       b.ActorID,
        Status:        b.Status,
        OccurredAt:    ev.OccurredAt().UTC(),
    }
    if !b.Offer.IsZero() {
        offer := b.Offer
        env.Offer = &offer
    }
    if mp, ok := ev.(negotiation.MessagePosted); ok {
        env.MessageID = mp.MessageID
    }
    return env
}

// Recipients returns the parties to notify, excluding the actor.  The system
// actor is never a party so both parties are returned for its events.
func (e Envelope) Recipients() []string {
    out := make([]string, 0, 2)
    for _, id := range []string{e.ClientID, e.ProviderID} {
        if id != "" && id != e.ActorID {
            out = append(out, id)
        }
    }
    return out
}
