package model

import (
    "time"

    "github.com/iliyamo/marketplace-negotiation/internal/money"
)

// Status is the lifecycle state of a negotiation.  Values are stored as
// upper-case strings in the negotiations.status column.
type Status string

const (
    StatusPending   Status = "PENDING"
    StatusCountered Status = "COUNTERED"
    StatusAccepted  Status = "ACCEPTED"
    StatusRejected  Status = "REJECTED"
    StatusCancelled Status = "CANCELLED"
    StatusCompleted Status = "COMPLETED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusCountered, StatusAccepted, StatusRejected, StatusCancelled, StatusCompleted}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
    for _, v := range Statuses {
        if v == s {
            return true
        }
    }
    return false
}

// IsOpen reports whether offers may still be exchanged (PENDING or COUNTERED).
func (s Status) IsOpen() bool { return s == StatusPending || s == StatusCountered }

// IsTerminal reports whether no transition at all is possible from s.
func (s Status) IsTerminal() bool {
    return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// Action names a transition of the negotiation state machine.  The create
// action only ever appears as the first history entry.
type Action string

const (
    ActionCreate   Action = "CREATE"
    ActionCounter  Action = "COUNTER"
    ActionAccept   Action = "ACCEPT"
    ActionReject   Action = "REJECT"
    ActionCancel   Action = "CANCEL"
    ActionComplete Action = "COMPLETE"
)

// SetsOffer reports whether the action proposes a price.
func (a Action) SetsOffer() bool { return a == ActionCreate || a == ActionCounter }

// Negotiation is a price negotiation between a client and a provider for a
// single service.  It is handled as a value: transitions take a Negotiation
// and return a new one, leaving the input untouched.
//
// Fields:
//  ID            – opaque identifier assigned at creation.
//  ServiceID     – service being negotiated (not validated, passed through).
//  ServiceTitle  – display label of the service.
//  ClientID      – party that opened the negotiation.
//  ProviderID    – party offering the service.
//  OriginalPrice – list price at negotiation start.
//  CurrentOffer  – latest proposed price.
//  Status        – lifecycle state.
//  Version       – optimistic concurrency token; equals len(History).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – timestamp of the latest transition.
//  History       – append-only transition log, oldest first.
type Negotiation struct {
    ID            string         `json:"id"`
    ServiceID     string         `json:"service_id"`
    ServiceTitle  string         `json:"service_title"`
    ClientID      string         `json:"client_id"`
    ProviderID    string         `json:"provider_id"`
    OriginalPrice money.Money    `json:"original_price"`
    CurrentOffer  money.Money    `json:"current_offer"`
    Status        Status         `json:"status"`
    Version       int64          `json:"version"`
    CreatedAt     time.Time      `json:"created_at"`
    UpdatedAt     time.Time      `json:"updated_at"`
    History       []HistoryEntry `json:"history"`
}

// HistoryEntry records one successful transition.
type HistoryEntry struct {
    Seq        int64       `json:"seq"` // 1-based position in the history
    Action     Action      `json:"action"`
    ActorID    string      `json:"actor_id"`
    FromStatus Status      `json:"from_status,omitempty"` // empty for the create entry
    ToStatus   Status      `json:"to_status"`
    Offer      money.Money `json:"offer"`
    OccurredAt time.Time   `json:"occurred_at"`
}

// IsParty reports whether actorID is the client or the provider.
func (n Negotiation) IsParty(actorID string) bool {
    return actorID != "" && (actorID == n.ClientID || actorID == n.ProviderID)
}

// Counterpart returns the other party, or "" when actorID is not a party.
func (n Negotiation) Counterpart(actorID string) string {
    switch actorID {
    case n.ClientID:
        return n.ProviderID
    case n.ProviderID:
        return n.ClientID
    }
    return ""
}

// LastOfferBy returns the party who proposed the current offer.
func (n Negotiation) LastOfferBy() string {
    for i := len(n.History) - 1; i >= 0; i-- {
        if n.History[i].Action.SetsOffer() {
            return n.History[i].ActorID
        }
    }
    return n.ClientID
}

// Clone returns a copy that shares no mutable state with n.
func (n Negotiation) Clone() Negotiation {
    c := n
    if n.History != nil {
        c.History = make([]HistoryEntry, len(n.History))
        copy(c.History, n.History)
    }
    return c
}
