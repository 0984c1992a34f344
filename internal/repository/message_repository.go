package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/marketplace-negotiation/internal/model"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

// MessageRepo stores negotiation threads in the negotiation_messages table.
type MessageRepo struct {
    db *sql.DB
}

// NewMessageRepo returns a MessageRepo bound to the given database.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

var _ negotiation.MessageStore = (*MessageRepo)(nil)

// CreateMessage inserts m.
func (r *MessageRepo) CreateMessage(ctx context.Context, m model.Message) (model.Message, error) {
    const q = `INSERT INTO negotiation_messages (id, negotiation_id, sender_id, recipient_id, content, is_read, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    if _, err := r.db.ExecContext(ctx, q, m.ID, m.NegotiationID, m.SenderID, m.RecipientID, m.Content, m.IsRead, m.CreatedAt); err != nil {
        return model.Message{}, unavailable("insert message", err)
    }
    return m, nil
}

// MarkRead flags unread messages addressed to recipientID created at or before before.
func (r *MessageRepo) MarkRead(ctx context.Context, negotiationID, recipientID string, before time.Time) (int64, error) {
    const q = `UPDATE negotiation_messages SET is_read = TRUE
               WHERE negotiation_id = ? AND recipient_id = ? AND is_read = FALSE AND created_at <= ?`
    res, err := r.db.ExecContext(ctx, q, negotiationID, recipientID, before)
    if err != nil {
        return 0, unavailable("mark messages read", err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return 0, unavailable("mark messages read", err)
    }
    return n, nil
}

// ListMessages returns the thread ordered by creation time then id.  ULIDs
// sort by creation, so the id breaks ties within the same microsecond.
func (r *MessageRepo) ListMessages(ctx context.Context, negotiationID string) ([]model.Message, error) {
    const q = `SELECT id, negotiation_id, sender_id, recipient_id, content, is_read, created_at
               FROM negotiation_messages
               WHERE negotiation_id = ?
               ORDER BY created_at, id`
    rows, err := r.db.QueryContext(ctx, q, negotiationID)
    if err != nil {
        return nil, unavailable("list messages", err)
    }
    defer rows.Close()
    msgs := make([]model.Message, 0)
    for rows.Next() {
        var m model.Message
        if err := rows.Scan(&m.ID, &m.NegotiationID, &m.SenderID, &m.RecipientID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
            return nil, unavailable("scan message", err)
        }
        m.CreatedAt = m.CreatedAt.UTC()
        msgs = append(msgs, m)
    }
    if err := rows.Err(); err != nil {
        return nil, unavailable("list messages", err)
    }
    return msgs, nil
}

// CountUnread counts unread messages addressed to recipientID.
func (r *MessageRepo) CountUnread(ctx context.Context, negotiationID, recipientID string) (int64, error) {
    const q = `SELECT COUNT(*) FROM negotiation_messages
               WHERE negotiation_id = ? AND recipient_id = ? AND is_read = FALSE`
    var n int64
    if err := r.db.QueryRowContext(ctx, q, negotiationID, recipientID).Scan(&n); err != nil {
        return 0, unavailable("count unread", err)
    }
    return n, nil
}
