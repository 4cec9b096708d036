package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func academic(t *testing.T) *DomainConfig {
	t.Helper()
	cfg, ok := DomainByCode("academic")
	require.True(t, ok)
	return cfg
}

func TestDomainByCodeUnknown(t *testing.T) {
	_, ok := DomainByCode("immobilier")
	assert.False(t, ok)
}

func TestDomainsAreRegistered(t *testing.T) {
	domains := Domains()
	require.Len(t, domains, 3)
	prefixes := map[string]bool{}
	for _, d := range domains {
		require.NotEmpty(t, d.Progression)
		assert.Equal(t, StatusPending, d.InitialStatus())
		assert.Equal(t, StatusCompleted, d.Progression[len(d.Progression)-1])
		assert.False(t, prefixes[d.ReferencePrefix], "reference prefixes must be distinct")
		prefixes[d.ReferencePrefix] = true
	}
}

func TestCanTransitionForward(t *testing.T) {
	cfg := academic(t)

	assert.True(t, cfg.CanTransition(StatusPending, StatusInfoReceived))
	// Skipping steps forward is a regular transition.
	assert.True(t, cfg.CanTransition(StatusPending, StatusInWriting))
	assert.True(t, cfg.CanTransition(StatusInReview, StatusCompleted))
}

func TestCanTransitionBackwardRequiresOverride(t *testing.T) {
	cfg := academic(t)

	assert.False(t, cfg.CanTransition(StatusInReview, StatusInfoReceived))
	assert.False(t, cfg.CanTransition(StatusInWriting, StatusInWriting))
}

func TestCanTransitionBranches(t *testing.T) {
	cfg := academic(t)

	assert.True(t, cfg.CanTransition(StatusPending, StatusRejected))
	assert.True(t, cfg.CanTransition(StatusInReview, StatusCancelled))
}

func TestTerminalStatesAdmitNoTransitions(t *testing.T) {
	for _, cfg := range Domains() {
		for _, terminal := range []RequestStatus{StatusCompleted, StatusRejected, StatusCancelled} {
			assert.True(t, cfg.IsTerminal(terminal))
			assert.False(t, cfg.CanTransition(terminal, StatusPending), "%s: %s must be closed", cfg.Code, terminal)
			assert.False(t, cfg.CanTransition(terminal, StatusRejected))
		}
	}
}

func TestValidStatusAcceptsBranchStates(t *testing.T) {
	cfg := academic(t)

	assert.True(t, cfg.ValidStatus(StatusRejected))
	assert.True(t, cfg.ValidStatus(StatusCancelled))
	assert.True(t, cfg.ValidStatus(StatusPlanValidated))
	// Travel status is not part of the academic set.
	assert.False(t, cfg.ValidStatus(StatusDocsReceived))
}

func TestPriceForUsesSubcategoryWhenPresent(t *testing.T) {
	cfg := academic(t)

	price, ok := cfg.PriceFor("MASTER", "MEMOIRE_MASTER")
	require.True(t, ok)
	assert.Equal(t, int64(180000), price.Total)
	assert.Equal(t, int64(90000), price.Advance)

	_, ok = cfg.PriceFor("MASTER", "")
	assert.False(t, ok)
}

func TestPriceForFlatCategories(t *testing.T) {
	travel, ok := DomainByCode("travel")
	require.True(t, ok)

	price, ok := travel.PriceFor("VISA_ETUDES", "")
	require.True(t, ok)
	assert.Equal(t, int64(150000), price.Total)

	vap, ok := DomainByCode("vapvae")
	require.True(t, ok)
	price, ok = vap.PriceFor("VAE_TOTALE", "")
	require.True(t, ok)
	assert.Equal(t, int64(400000), price.Total)
}

func TestValidPaymentTypePerDomain(t *testing.T) {
	cfg := academic(t)
	assert.True(t, cfg.ValidPaymentType(PaymentTypeAdvance))
	assert.False(t, cfg.ValidPaymentType(PaymentTypeStage1))

	travel, _ := DomainByCode("travel")
	assert.True(t, travel.ValidPaymentType(PaymentTypeStage2))
	assert.False(t, travel.ValidPaymentType(PaymentTypeBalance))
}

func TestPriceKey(t *testing.T) {
	assert.Equal(t, "BTS", PriceKey("BTS", ""))
	assert.Equal(t, "BTS/RAPPORT_BTS_AVEC_STAGE", PriceKey("BTS", "RAPPORT_BTS_AVEC_STAGE"))
}
