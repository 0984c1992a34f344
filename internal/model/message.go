package model

import "time"

// Message is a free-text note exchanged between the two parties of a
// negotiation.  Messages are a communication log and may be posted whatever
// the negotiation's status.
type Message struct {
    ID            string    `json:"id"`             // negotiation_messages.id (ULID)
    NegotiationID string    `json:"negotiation_id"` // negotiation_messages.negotiation_id
    SenderID      string    `json:"sender_id"`      // negotiation_messages.sender_id
    RecipientID   string    `json:"recipient_id"`   // negotiation_messages.recipient_id
    Content       string    `json:"content"`        // negotiation_messages.content
    CreatedAt     time.Time `json:"created_at"`     // negotiation_messages.created_at
    IsRead        bool      `json:"is_read"`        // negotiation_messages.is_read
}
