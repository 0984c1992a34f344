package repository

import (
    "context"
    "testing"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/marketplace-negotiation/internal/model"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

func newMessageMock(t *testing.T) (*MessageRepo, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() {
        assert.NoError(t, mock.ExpectationsWereMet())
        _ = db.Close()
    })
    return NewMessageRepo(db), mock
}

func TestMessageRepo(t *testing.T) {
    repo, mock := newMessageMock(t)
    ctx := context.Background()
    m := model.Message{
        ID:            "01JNQ8ZK3M5W9X2Y7T4R6V8B0C",
        NegotiationID: "n-1",
        SenderID:      "client-1",
        RecipientID:   "provider-1",
        Content:       "Can you do 100?",
        CreatedAt:     t0,
    }

    mock.ExpectExec("INSERT INTO negotiation_messages").
        WithArgs(m.ID, m.NegotiationID, m.SenderID, m.RecipientID, m.Content, false, t0).
        WillReturnResult(sqlmock.NewResult(0, 1))
    _, err := repo.CreateMessage(ctx, m)
    require.NoError(t, err)

    mock.ExpectExec("UPDATE negotiation_messages SET is_read = TRUE").
        WithArgs("n-1", "provider-1", t1).
        WillReturnResult(sqlmock.NewResult(0, 1))
    n, err := repo.MarkRead(ctx, "n-1", "provider-1", t1)
    require.NoError(t, err)
    assert.Equal(t, int64(1), n)

    mock.ExpectQuery("FROM negotiation_messages").WithArgs("n-1").
        WillReturnRows(sqlmock.NewRows([]string{"id", "negotiation_id", "sender_id", "recipient_id", "content", "is_read", "created_at"}).
            AddRow(m.ID, m.NegotiationID, m.SenderID, m.RecipientID, m.Content, true, t0))
    msgs, err := repo.ListMessages(ctx, "n-1")
    require.NoError(t, err)
    require.Len(t, msgs, 1)
    m.IsRead = true
    assert.Equal(t, m, msgs[0])

    mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM negotiation_messages").WithArgs("n-1", "client-1").
        WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
    unread, err := repo.CountUnread(ctx, "n-1", "client-1")
    require.NoError(t, err)
    assert.Equal(t, int64(2), unread)
}

func TestMessageRepoWrapsErrors(t *testing.T) {
    repo, mock := newMessageMock(t)
    mock.ExpectQuery("FROM negotiation_messages").WillReturnError(assert.AnError)

    _, err := repo.ListMessages(context.Background(), "n-1")
    assert.ErrorIs(t, err, negotiation.ErrStoreUnavailable)
    assert.ErrorIs(t, err, assert.AnError)
}
