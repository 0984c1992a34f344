package negotiation

import (
	"context"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/iliyamo/marketplace-negotiation/internal/model"
	"github.com/iliyamo/marketplace-negotiation/internal/money"
)

// Actions lists the transitions an actor may perform right now.
type Actions struct {
	CanAccept   bool `json:"can_accept"`
	CanCounter  bool `json:"can_counter"`
	CanReject   bool `json:"can_reject"`
	CanCancel   bool `json:"can_cancel"`
	CanComplete bool `json:"can_complete"`
}

// CanAct evaluates the transition table for actorID against n.
func CanAct(n model.Negotiation, actorID string) Actions {
	ok := func(a model.Action) bool {
		_, err := nextStatus(n, actorID, a)
		return err == nil
	}
	return Actions{
		CanAccept:   ok(model.ActionAccept),
		CanCounter:  ok(model.ActionCounter),
		CanReject:   ok(model.ActionReject),
		CanCancel:   ok(model.ActionCancel),
		CanComplete: ok(model.ActionComplete),
	}
}

// CurrentOfferFor returns the latest proposed price.
func CurrentOfferFor(n model.Negotiation) money.Money { return n.CurrentOffer }

var (
	labelLanguages = []language.Tag{language.English, language.BrazilianPortuguese, language.Spanish}
	labelMatcher   = language.NewMatcher(labelLanguages)
	labelCatalog   = buildLabelCatalog()
)

func buildLabelCatalog() catalog.Catalog {
	labels := map[language.Tag]map[model.Status]string{
		language.English: {
			model.StatusPending:   "Pending",
			model.StatusCountered: "Countered",
			model.StatusAccepted:  "Accepted",
			model.StatusRejected:  "Rejected",
			model.StatusCancelled: "Cancelled",
			model.StatusCompleted: "Completed",
		},
		language.BrazilianPortuguese: {
			model.StatusPending:   "Pendente",
			model.StatusCountered: "Contraproposta",
			model.StatusAccepted:  "Aceita",
			model.StatusRejected:  "Recusada",
			model.StatusCancelled: "Cancelada",
			model.StatusCompleted: "Concluída",
		},
		language.Spanish: {
			model.StatusPending:   "Pendiente",
			model.StatusCountered: "Contraoferta",
			model.StatusAccepted:  "Aceptada",
			model.StatusRejected:  "Rechazada",
			model.StatusCancelled: "Cancelada",
			model.StatusCompleted: "Completada",
		},
	}
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, byStatus := range labels {
		for status, label := range byStatus {
			if err := b.SetString(tag, string(status), label); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// supportedLabelTag maps tag to the closest language with status labels.
func supportedLabelTag(tag language.Tag) language.Tag {
	_, idx, _ := labelMatcher.Match(tag)
	return labelLanguages[idx]
}

// StatusLabel returns the display label of status in the closest supported
// locale, English by default.
func StatusLabel(status model.Status, tag language.Tag) string {
	p := message.NewPrinter(supportedLabelTag(tag), message.Catalog(labelCatalog))
	return p.Sprintf(string(status))
}

// Summary is the caller-facing view of a negotiation for one actor.
type Summary struct {
	ID             string       `json:"id"`
	ServiceID      string       `json:"service_id"`
	ServiceTitle   string       `json:"service_title"`
	ClientID       string       `json:"client_id"`
	ProviderID     string       `json:"provider_id"`
	Status         model.Status `json:"status"`
	StatusLabel    string       `json:"status_label"`
	OriginalPrice  money.Money  `json:"original_price"`
	CurrentOffer   money.Money  `json:"current_offer"`
	CurrentDisplay string       `json:"current_offer_display"`
	LastOfferBy    string       `json:"last_offer_by"`
	Version        int64        `json:"version"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Actions        Actions      `json:"actions"`
	Unread         int64        `json:"unread"`
}

// Summarize projects n for actorID in the given locale.  Unread is left zero.
func Summarize(n model.Negotiation, actorID string, tag language.Tag) Summary {
	return Summary{
		ID:             n.ID,
		ServiceID:      n.ServiceID,
		ServiceTitle:   n.ServiceTitle,
		ClientID:       n.ClientID,
		ProviderID:     n.ProviderID,
		Status:         n.Status,
		StatusLabel:    StatusLabel(n.Status, tag),
		OriginalPrice:  n.OriginalPrice,
		CurrentOffer:   CurrentOfferFor(n),
		CurrentDisplay: n.CurrentOffer.Format(tag),
		LastOfferBy:    n.LastOfferBy(),
		Version:        n.Version,
		UpdatedAt:      n.UpdatedAt,
		Actions:        CanAct(n, actorID),
	}
}

// Summary loads the negotiation for actorID and projects it, including the
// number of unread messages addressed to the actor.
func (e *Engine) Summary(ctx context.Context, id, actorID string, tag language.Tag) (Summary, error) {
	n, err := e.Get(ctx, id, actorID)
	if err != nil {
		return Summary{}, err
	}
	s := Summarize(n, actorID, tag)
	unread, err := e.messages.CountUnread(ctx, n.ID, actorID)
	if err != nil {
		return Summary{}, err
	}
	s.Unread = unread
	return s, nil
}

// Summaries lists every negotiation actorID takes part in, projected for the
// actor with unread counts, most recently updated first.
func (e *Engine) Summaries(ctx context.Context, actorID string, tag language.Tag) ([]Summary, error) {
	list, err := e.List(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(list))
	for _, n := range list {
		s := Summarize(n, actorID, tag)
		if s.Unread, err = e.messages.CountUnread(ctx, n.ID, actorID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
