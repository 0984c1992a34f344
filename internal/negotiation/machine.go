package negotiation

import (
	"fmt"

	"github.com/iliyamo/marketplace-negotiation/internal/model"
)

// SystemActor is the reserved actor id the platform uses to complete an
// accepted negotiation without either party.
const SystemActor = "system"

// party selects which actor a transition rule applies to.
type party int

const (
	partyEither party = iota
	// partyCounterpart is the party who did not make the current offer.
	partyCounterpart
	// partyEitherOrSystem is either party or SystemActor.
	partyEitherOrSystem
)

type rule struct {
	from   model.Status
	action model.Action
	who    party
	to     model.Status
}

// transitions is the complete state machine.  Anything not listed here is
// rejected with ErrInvalidTransition.
var transitions = []rule{
	{model.StatusPending, model.ActionAccept, partyCounterpart, model.StatusAccepted},
	{model.StatusPending, model.ActionReject, partyEither, model.StatusRejected},
	{model.StatusPending, model.ActionCounter, partyEither, model.StatusCountered},
	{model.StatusPending, model.ActionCancel, partyEither, model.StatusCancelled},

	{model.StatusCountered, model.ActionAccept, partyCounterpart, model.StatusAccepted},
	{model.StatusCountered, model.ActionCounter, partyEither, model.StatusCountered},
	{model.StatusCountered, model.ActionReject, partyEither, model.StatusRejected},
	{model.StatusCountered, model.ActionCancel, partyEither, model.StatusCancelled},

	{model.StatusAccepted, model.ActionComplete, partyEitherOrSystem, model.StatusCompleted},
}

// matches reports whether actorID may fire a rule that names who.
func (who party) matches(n model.Negotiation, actorID string) bool {
	switch who {
	case partyEither:
		return n.IsParty(actorID)
	case partyCounterpart:
		return n.IsParty(actorID) && actorID != n.LastOfferBy()
	case partyEitherOrSystem:
		return n.IsParty(actorID) || actorID == SystemActor
	}
	return false
}

// nextStatus returns the status n moves to when actorID performs action, or
// ErrInvalidActor / ErrInvalidTransition.
func nextStatus(n model.Negotiation, actorID string, action model.Action) (model.Status, error) {
	if !n.IsParty(actorID) && !(action == model.ActionComplete && actorID == SystemActor) {
		return "", fmt.Errorf("%w: %q on negotiation %s", ErrInvalidActor, actorID, n.ID)
	}
	// Offering parties never accept their own price.
	if action == model.ActionAccept && actorID == n.LastOfferBy() {
		return "", fmt.Errorf("%w: %s cannot accept their own offer", ErrInvalidTransition, roleName(n, actorID))
	}
	for _, r := range transitions {
		if r.from == n.Status && r.action == action && r.who.matches(n, actorID) {
			return r.to, nil
		}
	}
	return "", fmt.Errorf("%w: %s cannot %s a %s negotiation",
		ErrInvalidTransition, roleName(n, actorID), action, n.Status)
}

func roleName(n model.Negotiation, actorID string) string {
	switch actorID {
	case n.ClientID:
		return "client"
	case n.ProviderID:
		return "provider"
	case SystemActor:
		return SystemActor
	}
	return "unknown actor"
}
