package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/marketplace-negotiation/internal/model"
	"github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

// MemoryStore is an in-process implementation of negotiation.Store and
// negotiation.MessageStore.  Values are copied on the way in and out so
// callers never share state with the store.  It is safe for concurrent use.
type MemoryStore struct {
	mu           sync.Mutex
	negotiations map[string]model.Negotiation
	messages     map[string][]model.Message
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		negotiations: make(map[string]model.Negotiation),
		messages:     make(map[string][]model.Message),
	}
}

var (
	_ negotiation.Store        = (*MemoryStore)(nil)
	_ negotiation.MessageStore = (*MemoryStore)(nil)
)

// Create stores n, enforcing one open negotiation per triple.
func (s *MemoryStore) Create(ctx context.Context, n model.Negotiation) (model.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return model.Negotiation{}, fmt.Errorf("%w: %w", negotiation.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.negotiations[n.ID]; ok {
		return model.Negotiation{}, fmt.Errorf("negotiation %s already exists", n.ID)
	}
	if open := s.findOpenLocked(n.ServiceID, n.ClientID, n.ProviderID); open != nil && n.Status.IsOpen() {
		return model.Negotiation{}, fmt.Errorf("%w: %s", negotiation.ErrDuplicateOpenNegotiation, open.ID)
	}
	s.negotiations[n.ID] = n.Clone()
	return n.Clone(), nil
}

// GetByID returns a copy of the stored negotiation.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (model.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return model.Negotiation{}, fmt.Errorf("%w: %w", negotiation.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.negotiations[id]
	if !ok {
		return model.Negotiation{}, fmt.Errorf("%w: %s", negotiation.ErrNotFound, id)
	}
	return n.Clone(), nil
}

// FindOpen returns the open negotiation for the triple, if any.
func (s *MemoryStore) FindOpen(ctx context.Context, serviceID, clientID, providerID string) (*model.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", negotiation.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if open := s.findOpenLocked(serviceID, clientID, providerID); open != nil {
		c := open.Clone()
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryStore) findOpenLocked(serviceID, clientID, providerID string) *model.Negotiation {
	for _, n := range s.negotiations {
		if n.ServiceID == serviceID && n.ClientID == clientID && n.ProviderID == providerID && n.Status.IsOpen() {
			return &n
		}
	}
	return nil
}

// ListForParty returns the party's negotiations, most recently updated first.
func (s *MemoryStore) ListForParty(ctx context.Context, partyID string) ([]model.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", negotiation.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Negotiation, 0)
	for _, n := range s.negotiations {
		if n.IsParty(partyID) {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Save replaces the stored negotiation when the stored version equals
// expectedVersion.
func (s *MemoryStore) Save(ctx context.Context, n model.Negotiation, expectedVersion int64) (model.Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return model.Negotiation{}, fmt.Errorf("%w: %w", negotiation.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.negotiations[n.ID]
	if !ok {
		return model.Negotiation{}, fmt.Errorf("%w: %s", negotiation.ErrNotFound, n.ID)
	}
	if cur.Version != expectedVersion {
		return model.Negotiation{}, fmt.Errorf("%w: expected version %d, stored %d",
			negotiation.ErrStaleNegotiation, expectedVersion, cur.Version)
	}
	s.negotiations[n.ID] = n.Clone()
	return n.Clone(), nil
}

// CreateMessage appends m to its negotiation's thread.
func (s *MemoryStore) CreateMessage(ctx context.Context, m model.Message) (model.Message, error) {
	if err := ctx.Err(); err != nil {
		return model.Message{}, fmt.Errorf("%w: %w", negotiation.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.NegotiationID] = append(s.messages[m.NegotiationID], m)
	return m, nil
}

// MarkRead flags unread messages addressed to recipientID up to before.
func (s *MemoryStore) MarkRead(ctx context.Context, negotiationID, recipientID string, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", negotiation.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	thread := s.messages[negotiationID]
	for i := range thread {
		if thread[i].RecipientID == recipientID && !thread[i].IsRead && !thread[i].CreatedAt.After(before) {
			thread[i].IsRead = true
			n++
		}
	}
	return n, nil
}

// ListMessages returns a copy of the thread in insertion order.
func (s *MemoryStore) ListMessages(ctx context.Context, negotiationID string) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", negotiation.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages[negotiationID]))
	copy(out, s.messages[negotiationID])
	return out, nil
}

// CountUnread counts unread messages addressed to recipientID.
func (s *MemoryStore) CountUnread(ctx context.Context, negotiationID, recipientID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", negotiation.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages[negotiationID] {
		if m.RecipientID == recipientID && !m.IsRead {
			n++
		}
	}
	return n, nil
}
