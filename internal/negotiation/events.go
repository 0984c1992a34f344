package negotiation

import (
	"time"

	"github.com/iliyamo/marketplace-negotiation/internal/model"
	"github.com/iliyamo/marketplace-negotiation/internal/money"
)

// Event names, used as routing keys and in the notification envelope.
const (
	EventNegotiationCreated   = "negotiation.created"
	EventNegotiationCountered = "negotiation.countered"
	EventNegotiationAccepted  = "negotiation.accepted"
	EventNegotiationRejected  = "negotiation.rejected"
	EventNegotiationCancelled = "negotiation.cancelled"
	EventNegotiationCompleted = "negotiation.completed"
	EventMessagePosted        = "negotiation.message_posted"
)

// Event is a domain event emitted once per successful mutation.
type Event interface {
	// EventName returns one of the Event* constants.
	EventName() string
	// OccurredAt returns when the mutation happened.
	OccurredAt() time.Time
	// Base returns the fields every event carries.
	Base() BaseEvent
}

// BaseEvent holds the fields shared by all events.  Status and Offer describe
// the negotiation after the mutation.
type BaseEvent struct {
	NegotiationID string       `json:"negotiation_id"`
	ClientID      string       `json:"client_id"`
	ProviderID    string       `json:"provider_id"`
	ActorID       string       `json:"actor_id"`
	Status        model.Status `json:"status"`
	Offer         money.Money  `json:"offer"`
	Timestamp     time.Time    `json:"timestamp"`
}

// OccurredAt returns the event timestamp.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// Base returns e.
func (e BaseEvent) Base() BaseEvent { return e }

func newBaseEvent(n model.Negotiation, actorID string, at time.Time) BaseEvent {
	return BaseEvent{
		NegotiationID: n.ID,
		ClientID:      n.ClientID,
		ProviderID:    n.ProviderID,
		ActorID:       actorID,
		Status:        n.Status,
		Offer:         n.CurrentOffer,
		Timestamp:     at,
	}
}

// NegotiationCreated is published when a client opens a negotiation.
type NegotiationCreated struct {
	BaseEvent
	ServiceID     string      `json:"service_id"`
	OriginalPrice money.Money `json:"original_price"`
}

func (NegotiationCreated) EventName() string { return EventNegotiationCreated }

// NegotiationCountered is published when either party proposes a new price.
type NegotiationCountered struct {
	BaseEvent
	PreviousOffer money.Money `json:"previous_offer"`
}

func (NegotiationCountered) EventName() string { return EventNegotiationCountered }

// NegotiationAccepted is published when the counterpart accepts the current offer.
type NegotiationAccepted struct{ BaseEvent }

func (NegotiationAccepted) EventName() string { return EventNegotiationAccepted }

// NegotiationRejected is published when a party rejects the negotiation.
type NegotiationRejected struct{ BaseEvent }

func (NegotiationRejected) EventName() string { return EventNegotiationRejected }

// NegotiationCancelled is published when a party withdraws.
type NegotiationCancelled struct{ BaseEvent }

func (NegotiationCancelled) EventName() string { return EventNegotiationCancelled }

// NegotiationCompleted is published when the contracted service is marked fulfilled.
type NegotiationCompleted struct{ BaseEvent }

func (NegotiationCompleted) EventName() string { return EventNegotiationCompleted }

// MessagePosted is published for every message added to a thread.
type MessagePosted struct {
	BaseEvent
	MessageID   string `json:"message_id"`
	RecipientID string `json:"recipient_id"`
}

func (MessagePosted) EventName() string { return EventMessagePosted }

// transitionEvent builds the event for a successful transition from prev to next.
func transitionEvent(action model.Action, prev, next model.Negotiation, actorID string) Event {
	base := newBaseEvent(next, actorID, next.UpdatedAt)
	switch action {
	case model.ActionCreate:
		return NegotiationCreated{BaseEvent: base, ServiceID: next.ServiceID, OriginalPrice: next.OriginalPrice}
	case model.ActionCounter:
		return NegotiationCountered{BaseEvent: base, PreviousOffer: prev.CurrentOffer}
	case model.ActionAccept:
		return NegotiationAccepted{BaseEvent: base}
	case model.ActionReject:
		return NegotiationRejected{BaseEvent: base}
	case model.ActionCancel:
		return NegotiationCancelled{BaseEvent: base}
	default:
		return NegotiationCompleted{BaseEvent: base}
	}
}
