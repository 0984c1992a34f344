// Package negotiation implements the offer / counter-offer lifecycle between a
// client and a provider: the transition table, the engine that applies it
// against a Store, the message thread attached to each negotiation, the
// events emitted for every mutation and read-only projections for callers.
//
// The engine holds no mutable shared state.  Every transition takes the
// Negotiation value the caller read, validates it, and asks the Store to save
// the result against the version that was read.  A concurrent writer makes
// the save fail with ErrStaleNegotiation; the engine never retries on its own.
package negotiation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/iliyamo/marketplace-negotiation/internal/logger"
	"github.com/iliyamo/marketplace-negotiation/internal/model"
	"github.com/iliyamo/marketplace-negotiation/internal/money"
)

// DefaultMaxMessageLength is the default bound on message content, in characters.
const DefaultMaxMessageLength = 1000

// Engine applies negotiation transitions and message operations.
type Engine struct {
	store            Store
	messages         MessageStore
	sink             EventSink
	log              *logger.Logger
	validate         *validator.Validate
	now              func() time.Time
	newID            func() string
	newMessageID     func() string
	maxMessageLength int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithIDGenerators overrides negotiation and message id generation.
func WithIDGenerators(negotiationID, messageID func() string) Option {
	return func(e *Engine) {
		if negotiationID != nil {
			e.newID = negotiationID
		}
		if messageID != nil {
			e.newMessageID = messageID
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(e *Engine) { e.log = l } }

// WithMaxMessageLength sets the message content bound.  Values < 1 keep the default.
func WithMaxMessageLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxMessageLength = n
		}
	}
}

// NewEngine returns an Engine backed by the given stores and sink.  A nil
// sink discards events.
func NewEngine(store Store, messages MessageStore, sink EventSink, opts ...Option) *Engine {
	if store == nil || messages == nil {
		panic("nil store passed to NewEngine")
	}
	if sink == nil {
		sink = NopSink{}
	}
	e := &Engine{
		store:            store,
		messages:         messages,
		sink:             sink,
		log:              logger.Discard(),
		validate:         validator.New(),
		now:              func() time.Time { return time.Now() },
		newID:            uuid.NewString,
		newMessageID:     newULIDSource(),
		maxMessageLength: DefaultMaxMessageLength,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// newULIDSource returns a goroutine-safe generator of monotonic ULIDs, so
// messages created within the same millisecond still sort in creation order.
func newULIDSource() func() string {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.Reader, 0)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Now(), entropy).String()
	}
}

// timestamp returns the current time in UTC at microsecond precision, the
// resolution of the DATETIME(6) columns.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

// OfferInput is the client's opening offer.
type OfferInput struct {
	ServiceID     string      `validate:"required,max=64"`
	ServiceTitle  string      `validate:"required,max=255"`
	OriginalPrice money.Money `validate:"-"`
	OfferedPrice  money.Money `validate:"-"`
	ClientID      string      `validate:"required,max=64"`
	ProviderID    string      `validate:"required,max=64"`
}

// CreateOffer opens a negotiation in PENDING with the client's offered price.
func (e *Engine) CreateOffer(ctx context.Context, in OfferInput) (model.Negotiation, error) {
	in.ServiceID = strings.TrimSpace(in.ServiceID)
	in.ServiceTitle = strings.TrimSpace(in.ServiceTitle)
	if err := e.validate.Struct(in); err != nil {
		return model.Negotiation{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.ClientID == in.ProviderID || in.ClientID == SystemActor || in.ProviderID == SystemActor {
		return model.Negotiation{}, fmt.Errorf("%w: client and provider must be two distinct parties", ErrInvalidActor)
	}
	if in.OriginalPrice.IsZero() || in.OfferedPrice.IsZero() {
		return model.Negotiation{}, fmt.Errorf("%w: original and offered price are required", ErrInvalidAmount)
	}
	if !in.OfferedPrice.SameCurrency(in.OriginalPrice) {
		return model.Negotiation{}, fmt.Errorf("%w: offer in %s for a service priced in %s",
			ErrCurrencyMismatch, in.OfferedPrice.Currency(), in.OriginalPrice.Currency())
	}

	open, err := e.store.FindOpen(ctx, in.ServiceID, in.ClientID, in.ProviderID)
	if err != nil {
		e.log.WithContext(ctx).StoreError("find_open", err)
		return model.Negotiation{}, err
	}
	if open != nil {
		return model.Negotiation{}, fmt.Errorf("%w: %s", ErrDuplicateOpenNegotiation, open.ID)
	}

	at := e.timestamp()
	n := model.Negotiation{
		ID:            e.newID(),
		ServiceID:     in.ServiceID,
		ServiceTitle:  in.ServiceTitle,
		ClientID:      in.ClientID,
		ProviderID:    in.ProviderID,
		OriginalPrice: in.OriginalPrice,
		CurrentOffer:  in.OfferedPrice,
		Status:        model.StatusPending,
		Version:       1,
		CreatedAt:     at,
		UpdatedAt:     at,
		History: []model.HistoryEntry{{
			Seq:        1,
			Action:     model.ActionCreate,
			ActorID:    in.ClientID,
			ToStatus:   model.StatusPending,
			Offer:      in.OfferedPrice,
			OccurredAt: at,
		}},
	}
	saved, err := e.store.Create(ctx, n)
	if err != nil {
		if !errors.Is(err, ErrDuplicateOpenNegotiation) {
			e.log.WithContext(ctx).StoreError("create", err)
		}
		return model.Negotiation{}, err
	}
	e.log.WithContext(ctx).Transition(saved.ID, string(model.ActionCreate), "", string(saved.Status), saved.Version)
	e.sink.Publish(ctx, transitionEvent(model.ActionCreate, model.Negotiation{}, saved, in.ClientID))
	return saved, nil
}

// Counter proposes newOffer on behalf of actorID and moves n to COUNTERED.
func (e *Engine) Counter(ctx context.Context, n model.Negotiation, actorID string, newOffer money.Money) (model.Negotiation, error) {
	return e.apply(ctx, n, actorID, model.ActionCounter, &newOffer)
}

// Accept accepts the current offer.  Only the party who did not make the
// current offer may accept.
func (e *Engine) Accept(ctx context.Context, n model.Negotiation, actorID string) (model.Negotiation, error) {
	return e.apply(ctx, n, actorID, model.ActionAccept, nil)
}

// Reject ends the negotiation without agreement.
func (e *Engine) Reject(ctx context.Context, n model.Negotiation, actorID string) (model.Negotiation, error) {
	return e.apply(ctx, n, actorID, model.ActionReject, nil)
}

// Cancel withdraws from the negotiation.
func (e *Engine) Cancel(ctx context.Context, n model.Negotiation, actorID string) (model.Negotiation, error) {
	return e.apply(ctx, n, actorID, model.ActionCancel, nil)
}

// Complete marks an accepted negotiation's service as delivered.  Either
// party or SystemActor may complete.
func (e *Engine) Complete(ctx context.Context, n model.Negotiation, actorID string) (model.Negotiation, error) {
	return e.apply(ctx, n, actorID, model.ActionComplete, nil)
}

// CounterAmount is Apply for ActionCounter with the amount given as text and
// read in the negotiation's currency.  Actors outside the negotiation get
// ErrInvalidActor before the amount is looked at.
func (e *Engine) CounterAmount(ctx context.Context, id string, expectedVersion int64, actorID, amount string) (model.Negotiation, error) {
	n, err := e.store.GetByID(ctx, id)
	if err != nil {
		return model.Negotiation{}, err
	}
	if expectedVersion > 0 && expectedVersion != n.Version {
		return model.Negotiation{}, fmt.Errorf("%w: read version %d, stored version %d", ErrStaleNegotiation, expectedVersion, n.Version)
	}
	if !n.IsParty(actorID) {
		return model.Negotiation{}, fmt.Errorf("%w: %q on negotiation %s", ErrInvalidActor, actorID, n.ID)
	}
	offer, err := money.Parse(amount, n.OriginalPrice.Currency())
	if err != nil {
		return model.Negotiation{}, err
	}
	return e.Counter(ctx, n, actorID, offer)
}

// Apply loads the negotiation by id and performs action for actorID.  When
// expectedVersion is positive and differs from the stored version the call
// fails with ErrStaleNegotiation without attempting the transition.  offer is
// required for ActionCounter and ignored otherwise.
func (e *Engine) Apply(ctx context.Context, id string, expectedVersion int64, actorID string, action model.Action, offer *money.Money) (model.Negotiation, error) {
	n, err := e.store.GetByID(ctx, id)
	if err != nil {
		return model.Negotiation{}, err
	}
	if expectedVersion > 0 && expectedVersion != n.Version {
		return model.Negotiation{}, fmt.Errorf("%w: read version %d, stored version %d", ErrStaleNegotiation, expectedVersion, n.Version)
	}
	switch action {
	case model.ActionCounter:
		if offer == nil {
			return model.Negotiation{}, fmt.Errorf("%w: counter requires an offer", ErrInvalidAmount)
		}
		return e.Counter(ctx, n, actorID, *offer)
	case model.ActionAccept, model.ActionReject, model.ActionCancel, model.ActionComplete:
		return e.apply(ctx, n, actorID, action, nil)
	}
	return model.Negotiation{}, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
}

// apply validates and persists one transition.  n is never modified.
func (e *Engine) apply(ctx context.Context, n model.Negotiation, actorID string, action model.Action, offer *money.Money) (model.Negotiation, error) {
	to, err := nextStatus(n, actorID, action)
	if err != nil {
		return model.Negotiation{}, err
	}
	next := n.Clone()
	if offer != nil {
		if offer.IsZero() {
			return model.Negotiation{}, fmt.Errorf("%w: offer is required", ErrInvalidAmount)
		}
		if !offer.SameCurrency(n.OriginalPrice) {
			return model.Negotiation{}, fmt.Errorf("%w: offer in %s for a service priced in %s",
				ErrCurrencyMismatch, offer.Currency(), n.OriginalPrice.Currency())
		}
		next.CurrentOffer = *offer
	}

	at := e.timestamp()
	next.Status = to
	next.UpdatedAt = at
	next.Version = n.Version + 1
	next.History = append(next.History, model.HistoryEntry{
		Seq:        next.Version,
		Action:     action,
		ActorID:    actorID,
		FromStatus: n.Status,
		ToStatus:   to,
		Offer:      next.CurrentOffer,
		OccurredAt: at,
	})

	saved, err := e.store.Save(ctx, next, n.Version)
	if err != nil {
		if !errors.Is(err, ErrStaleNegotiation) && !errors.Is(err, ErrNotFound) {
			e.log.WithContext(ctx).StoreError("save", err)
		}
		return model.Negotiation{}, err
	}
	e.log.WithContext(ctx).Transition(saved.ID, string(action), string(n.Status), string(saved.Status), saved.Version)
	e.sink.Publish(ctx, transitionEvent(action, n, saved, actorID))
	return saved, nil
}

// Get returns the negotiation if actorID is one of its parties.
func (e *Engine) Get(ctx context.Context, id, actorID string) (model.Negotiation, error) {
	n, err := e.store.GetByID(ctx, id)
	if err != nil {
		return model.Negotiation{}, err
	}
	if !n.IsParty(actorID) {
		return model.Negotiation{}, fmt.Errorf("%w: %q is not a party to %s", ErrForbidden, actorID, id)
	}
	return n, nil
}

// List returns the negotiations actorID takes part in, most recent first.
func (e *Engine) List(ctx context.Context, actorID string) ([]model.Negotiation, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, fmt.Errorf("%w: actor id is required", ErrInvalidInput)
	}
	return e.store.ListForParty(ctx, actorID)
}
