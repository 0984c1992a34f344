package negotiation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/iliyamo/marketplace-negotiation/internal/model"
	"github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Countered", negotiation.StatusLabel(model.StatusCountered, language.English))
	assert.Equal(t, "Contraproposta", negotiation.StatusLabel(model.StatusCountered, language.BrazilianPortuguese))
	assert.Equal(t, "Rechazada", negotiation.StatusLabel(model.StatusRejected, language.Spanish))
	assert.Equal(t, "Completed", negotiation.StatusLabel(model.StatusCompleted, language.Japanese))

	seen := map[string]bool{}
	for _, s := range model.Statuses {
		label := negotiation.StatusLabel(s, language.BrazilianPortuguese)
		assert.NotEmpty(t, label)
		assert.False(t, seen[label], "duplicate label %q", label)
		seen[label] = true
	}
}

func TestCanActPendingForEachParty(t *testing.T) {
	f := newFixture(t)
	n := f.open(t)

	assert.Equal(t, negotiation.Actions{CanCounter: true, CanReject: true, CanCancel: true}, negotiation.CanAct(n, client))
	assert.Equal(t, negotiation.Actions{CanAccept: true, CanCounter: true, CanReject: true, CanCancel: true}, negotiation.CanAct(n, provider))
	assert.Equal(t, negotiation.Actions{}, negotiation.CanAct(n, stranger))
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	n := stateBuilders["countered_by_provider"](t, f)

	s := negotiation.Summarize(n, client, language.English)
	assert.Equal(t, n.ID, s.ID)
	assert.Equal(t, "Logo design", s.ServiceTitle)
	assert.Equal(t, model.StatusCountered, s.Status)
	assert.Equal(t, "Countered", s.StatusLabel)
	assert.Equal(t, brl("150"), s.OriginalPrice)
	assert.Equal(t, brl("130"), s.CurrentOffer)
	assert.Equal(t, "R$ 130.00", s.CurrentDisplay)
	assert.Equal(t, provider, s.LastOfferBy)
	assert.Equal(t, int64(2), s.Version)
	assert.True(t, s.Actions.CanAccept)
	assert.False(t, s.Actions.CanComplete)
	assert.Equal(t, brl("130"), negotiation.CurrentOfferFor(n))

	assert.False(t, negotiation.Summarize(n, provider, language.English).Actions.CanAccept)
}
