package negotiation

import (
	"errors"

	"github.com/iliyamo/marketplace-negotiation/internal/money"
)

// Error kinds returned by the engine and by Store implementations.  Callers
// match them with errors.Is; the returned errors may wrap them with context.
var (
	ErrInvalidAmount    = money.ErrInvalidAmount
	ErrInvalidCurrency  = money.ErrInvalidCurrency
	ErrCurrencyMismatch = money.ErrCurrencyMismatch

	// ErrInvalidActor means the caller is not a party to the negotiation.
	ErrInvalidActor = errors.New("actor is not a party to the negotiation")
	// ErrInvalidTransition means the action is not legal from the current status
	// for this actor.
	ErrInvalidTransition = errors.New("transition not allowed")
	// ErrDuplicateOpenNegotiation means an open negotiation already exists for
	// the same service, client and provider.
	ErrDuplicateOpenNegotiation = errors.New("an open negotiation already exists")
	// ErrStaleNegotiation means the negotiation changed since it was read.
	ErrStaleNegotiation = errors.New("negotiation was modified concurrently")
	// ErrNotFound means the referenced negotiation does not exist.
	ErrNotFound = errors.New("negotiation not found")
	// ErrForbidden means the actor may not read the negotiation's data.
	ErrForbidden = errors.New("forbidden")
	// ErrContentTooLong means a message exceeds the configured length.
	ErrContentTooLong = errors.New("message content too long")
	// ErrInvalidParticipant means a message sender or recipient is not one of
	// the two parties, or both are the same party.
	ErrInvalidParticipant = errors.New("invalid message participant")
	// ErrInvalidInput means a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable wraps persistence connectivity failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
