package negotiation_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/iliyamo/marketplace-negotiation/internal/model"
	"github.com/iliyamo/marketplace-negotiation/internal/negotiation"
	"github.com/iliyamo/marketplace-negotiation/internal/repository"
)

func TestPostAndListMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.open(t)

	m1, err := f.engine.PostMessage(ctx, n.ID, client, provider, "Can you do 100?")
	require.NoError(t, err)
	assert.Equal(t, n.ID, m1.NegotiationID)
	assert.False(t, m1.IsRead)
	assert.NotEmpty(t, m1.ID)

	m2, err := f.engine.PostMessage(ctx, n.ID, provider, client, "130 is my best price")
	require.NoError(t, err)

	for _, reader := range []string{client, provider} {
		msgs, err := f.engine.ListMessages(ctx, n.ID, reader)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, m1.ID, msgs[0].ID)
		assert.Equal(t, m2.ID, msgs[1].ID)
		// the provider replying marked the client's message as read
		assert.True(t, msgs[0].IsRead)
		assert.False(t, msgs[1].IsRead)
	}

	assert.Equal(t, []string{
		negotiation.EventNegotiationCreated,
		negotiation.EventMessagePosted,
		negotiation.EventMessagePosted,
	}, f.sink.names())
	posted := f.sink.events[2].(negotiation.MessagePosted)
	assert.Equal(t, m2.ID, posted.MessageID)
	assert.Equal(t, client, posted.RecipientID)
	assert.Equal(t, provider, posted.ActorID)
}

func TestPostMessageParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.open(t)

	cases := []struct{ sender, recipient string }{
		{stranger, client},
		{client, stranger},
		{client, client},
		{negotiation.SystemActor, provider},
	}
	for _, c := range cases {
		_, err := f.engine.PostMessage(ctx, n.ID, c.sender, c.recipient, "hi")
		assert.ErrorIs(t, err, negotiation.ErrInvalidParticipant, "%s -> %s", c.sender, c.recipient)
	}
	msgs, err := f.engine.ListMessages(ctx, n.ID, client)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPostMessageContentBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.open(t)

	_, err := f.engine.PostMessage(ctx, n.ID, client, provider, strings.Repeat("a", negotiation.DefaultMaxMessageLength))
	assert.NoError(t, err)
	_, err = f.engine.PostMessage(ctx, n.ID, client, provider, strings.Repeat("a", negotiation.DefaultMaxMessageLength+1))
	assert.ErrorIs(t, err, negotiation.ErrContentTooLong)
	// the bound counts characters, not bytes
	_, err = f.engine.PostMessage(ctx, n.ID, client, provider, strings.Repeat("ã", negotiation.DefaultMaxMessageLength))
	assert.NoError(t, err)
	_, err = f.engine.PostMessage(ctx, n.ID, client, provider, "   ")
	assert.ErrorIs(t, err, negotiation.ErrInvalidInput)
}

func TestPostMessageConfiguredBound(t *testing.T) {
	f := newFixture(t, negotiation.WithMaxMessageLength(5))
	n := f.open(t)
	_, err := f.engine.PostMessage(context.Background(), n.ID, client, provider, "123456")
	assert.ErrorIs(t, err, negotiation.ErrContentTooLong)
}

func TestMessagesAllowedAfterTermination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := stateBuilders["cancelled"](t, f)

	_, err := f.engine.PostMessage(ctx, n.ID, provider, client, "sorry it did not work out")
	assert.NoError(t, err)
}

func TestListMessagesForbiddenForStrangers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.open(t)

	_, err := f.engine.ListMessages(ctx, n.ID, stranger)
	assert.ErrorIs(t, err, negotiation.ErrForbidden)
	_, err = f.engine.ListMessages(ctx, "missing", client)
	assert.ErrorIs(t, err, negotiation.ErrNotFound)
	_, err = f.engine.PostMessage(ctx, "missing", client, provider, "hi")
	assert.ErrorIs(t, err, negotiation.ErrNotFound)
}

func TestSummaryUnreadCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.open(t)

	for _, text := range []string{"one", "two"} {
		_, err := f.engine.PostMessage(ctx, n.ID, client, provider, text)
		require.NoError(t, err)
	}
	s, err := f.engine.Summary(ctx, n.ID, provider, language.English)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Unread)

	_, err = f.engine.PostMessage(ctx, n.ID, provider, client, "reply")
	require.NoError(t, err)
	s, err = f.engine.Summary(ctx, n.ID, provider, language.English)
	require.NoError(t, err)
	assert.Zero(t, s.Unread)

	list, err := f.engine.Summaries(ctx, client, language.English)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].Unread)
}

// flakyMessages fails the selected MessageStore calls.
type flakyMessages struct {
	*repository.MemoryStore
	failCreate, failMarkRead bool
}

func (s *flakyMessages) CreateMessage(ctx context.Context, m model.Message) (model.Message, error) {
	if s.failCreate {
		return model.Message{}, fmt.Errorf("%w: insert refused", negotiation.ErrStoreUnavailable)
	}
	return s.MemoryStore.CreateMessage(ctx, m)
}

func (s *flakyMessages) MarkRead(ctx context.Context, negotiationID, recipientID string, before time.Time) (int64, error) {
	if s.failMarkRead {
		return 0, fmt.Errorf("%w: update refused", negotiation.ErrStoreUnavailable)
	}
	return s.MemoryStore.MarkRead(ctx, negotiationID, recipientID, before)
}

func TestFailedPostLeavesThreadUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.open(t)
	_, err := f.engine.PostMessage(ctx, n.ID, client, provider, "Can you do 100?")
	require.NoError(t, err)

	msgs := &flakyMessages{MemoryStore: f.store, failCreate: true}
	engine := negotiation.NewEngine(f.store, msgs, f.sink)
	_, err = engine.PostMessage(ctx, n.ID, provider, client, "Best is 130")
	assert.ErrorIs(t, err, negotiation.ErrStoreUnavailable)

	unread, err := f.store.CountUnread(ctx, n.ID, provider)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread, "the provider's unread count must survive a failed post")
	thread, err := f.store.ListMessages(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, thread, 1)
	assert.Len(t, f.sink.names(), 2)
}

func TestPostSucceedsWhenReadMarkFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.open(t)
	_, err := f.engine.PostMessage(ctx, n.ID, client, provider, "Can you do 100?")
	require.NoError(t, err)

	msgs := &flakyMessages{MemoryStore: f.store, failMarkRead: true}
	engine := negotiation.NewEngine(f.store, msgs, f.sink)
	reply, err := engine.PostMessage(ctx, n.ID, provider, client, "Best is 130")
	require.NoError(t, err)

	thread, err := f.store.ListMessages(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, reply.ID, thread[1].ID)
	assert.Equal(t, negotiation.EventMessagePosted, f.sink.names()[len(f.sink.names())-1])
}
