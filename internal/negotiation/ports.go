package negotiation

import (
	"context"
	"time"

	"github.com/iliyamo/marketplace-negotiation/internal/model"
)

// Store is the persistence boundary for negotiations.  Implementations must
// return the error kinds documented on each method and wrap connectivity
// failures in ErrStoreUnavailable.
type Store interface {
	// Create persists a new negotiation.  It fails with
	// ErrDuplicateOpenNegotiation when an open negotiation exists for the
	// same (ServiceID, ClientID, ProviderID).
	Create(ctx context.Context, n model.Negotiation) (model.Negotiation, error)
	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (model.Negotiation, error)
	// FindOpen returns the open negotiation for the triple, or nil.
	FindOpen(ctx context.Context, serviceID, clientID, providerID string) (*model.Negotiation, error)
	// ListForParty returns the negotiations where partyID is client or
	// provider, most recently updated first.
	ListForParty(ctx context.Context, partyID string) ([]model.Negotiation, error)
	// Save replaces the stored negotiation if its version still equals
	// expectedVersion and appends History[expectedVersion:].  It fails with
	// ErrStaleNegotiation on a version mismatch and ErrNotFound for unknown ids.
	Save(ctx context.Context, n model.Negotiation, expectedVersion int64) (model.Negotiation, error)
}

// MessageStore persists the message thread of each negotiation.
type MessageStore interface {
	CreateMessage(ctx context.Context, m model.Message) (model.Message, error)
	// MarkRead flags every unread message of the negotiation addressed to
	// recipientID and created at or before the given time.  It returns the
	// number of messages updated.
	MarkRead(ctx context.Context, negotiationID, recipientID string, before time.Time) (int64, error)
	// ListMessages returns the thread oldest first.
	ListMessages(ctx context.Context, negotiationID string) ([]model.Message, error)
	// CountUnread returns the number of unread messages addressed to recipientID.
	CountUnread(ctx context.Context, negotiationID, recipientID string) (int64, error)
}

// EventSink receives domain events.  Publish must not block the caller on
// delivery; reliability is the sink's concern.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, event Event)

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, event Event) { f(ctx, event) }

// NopSink discards events.
type NopSink struct{}

// Publish does nothing.
func (NopSink) Publish(context.Context, Event) {}
