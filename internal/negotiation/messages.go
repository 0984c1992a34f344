package negotiation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/marketplace-negotiation/internal/model"
)

// PostMessage appends a message from senderID to recipientID on the
// negotiation's thread.  Both must be the negotiation's parties and differ.
// Once the message is stored, unread messages previously addressed to the
// sender are marked read.
// Messages are accepted whatever the negotiation's status.
func (e *Engine) PostMessage(ctx context.Context, negotiationID, senderID, recipientID, content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, fmt.Errorf("%w: message content is empty", ErrInvalidInput)
	}
	if l := utf8.RuneCountInString(content); l > e.maxMessageLength {
		return model.Message{}, fmt.Errorf("%w: %d characters, limit is %d", ErrContentTooLong, l, e.maxMessageLength)
	}
	n, err := e.store.GetByID(ctx, negotiationID)
	if err != nil {
		return model.Message{}, err
	}
	if !n.IsParty(senderID) || !n.IsParty(recipientID) || senderID == recipientID {
		return model.Message{}, fmt.Errorf("%w: sender %q, recipient %q", ErrInvalidParticipant, senderID, recipientID)
	}

	at := e.timestamp()
	msg, err := e.messages.CreateMessage(ctx, model.Message{
		ID:            e.newMessageID(),
		NegotiationID: n.ID,
		SenderID:      senderID,
		RecipientID:   recipientID,
		Content:       content,
		CreatedAt:     at,
	})
	if err != nil {
		e.log.WithContext(ctx).StoreError("create_message", err)
		return model.Message{}, err
	}
	// The message is stored at this point; a failed read mark is retried by
	// the sender's next post and does not fail this one.
	if _, err := e.messages.MarkRead(ctx, n.ID, senderID, at); err != nil {
		e.log.WithContext(ctx).StoreError("mark_read", err)
	}
	e.sink.Publish(ctx, MessagePosted{
		BaseEvent:   newBaseEvent(n, senderID, at),
		MessageID:   msg.ID,
		RecipientID: recipientID,
	})
	return msg, nil
}

// ListMessages returns the thread oldest first.  Only the two parties may read it.
func (e *Engine) ListMessages(ctx context.Context, negotiationID, actorID string) ([]model.Message, error) {
	if _, err := e.Get(ctx, negotiationID, actorID); err != nil {
		return nil, err
	}
	msgs, err := e.messages.ListMessages(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}
