package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"comradarr/internal/domain"
)

func baseRow() domain.SearchRegistry {
	return domain.SearchRegistry{
		ID:           1,
		ConnectorID:  1,
		SearchType:   domain.SearchTypeGap,
		State:        domain.RegistrySearching,
		AttemptCount: 1,
		BacklogTier:  0,
	}
}

func TestDecideOutcome_Success_ResetsTierAndSetsCooldown(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	row := baseRow()
	row.BacklogTier = 3

	update := DecideOutcome(OutcomeParams{Row: row, Now: now, Success: true, CooldownTiers: DefaultCooldownTiers})

	assert.Equal(t, domain.RegistryCooldown, update.State)
	assert.Equal(t, 0, update.BacklogTier)
	assert.Equal(t, domain.FailureNone, update.FailureCategory)
	assert.NotNil(t, update.NextEligible)
	assert.Equal(t, now.Add(DefaultCooldownTiers[0]), *update.NextEligible)
}

func TestDecideOutcome_NoResults_AdvancesTierAndCooldown(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	row := baseRow()
	row.BacklogTier = 1

	update := DecideOutcome(OutcomeParams{
		Row: row, Now: now, Success: false, Category: domain.FailureNoResults,
		CooldownTiers: DefaultCooldownTiers, MaxAttempts: 20,
	})

	assert.Equal(t, domain.RegistryCooldown, update.State)
	assert.Equal(t, 2, update.BacklogTier)
	assert.Equal(t, now.Add(DefaultCooldownTiers[2]), *update.NextEligible)
}

func TestDecideOutcome_NoResults_ExhaustsAtMaxTierAndAttempts(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	row := baseRow()
	row.BacklogTier = domain.MaxBacklogTier
	row.AttemptCount = 20

	update := DecideOutcome(OutcomeParams{
		Row: row, Now: now, Success: false, Category: domain.FailureNoResults,
		CooldownTiers: DefaultCooldownTiers, MaxAttempts: 20,
	})

	assert.Equal(t, domain.RegistryExhausted, update.State)
	assert.Nil(t, update.NextEligible)
	assert.Equal(t, domain.MaxBacklogTier, update.BacklogTier)
}

func TestDecideOutcome_NoResults_SeasonPackSetsFailedFlag(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	row := baseRow()

	update := DecideOutcome(OutcomeParams{
		Row: row, Now: now, Success: false, Category: domain.FailureNoResults,
		IsSeasonPackSearch: true, CooldownTiers: DefaultCooldownTiers, MaxAttempts: 20,
	})

	assert.NotNil(t, update.SeasonPackFailed)
	assert.True(t, *update.SeasonPackFailed)
}

func TestDecideOutcome_RateLimited_ReturnsToPendingWithoutAdvancingAttempts(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	pausedUntil := now.Add(2 * time.Minute)
	row := baseRow()
	row.AttemptCount = 4

	update := DecideOutcome(OutcomeParams{
		Row: row, Now: now, Success: false, Category: domain.FailureRateLimit,
		ConnectorPausedUntil: &pausedUntil,
	})

	assert.Equal(t, domain.RegistryPending, update.State)
	assert.Equal(t, 4, update.AttemptCount)
	assert.Equal(t, &pausedUntil, update.NextEligible)
}

func TestDecideOutcome_Authentication_ExhaustsRegardlessOfAttemptCount(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	row := baseRow()
	row.AttemptCount = 1
	row.BacklogTier = 0

	update := DecideOutcome(OutcomeParams{Row: row, Now: now, Success: false, Category: domain.FailureAuthentication})

	assert.Equal(t, domain.RegistryExhausted, update.State)
	assert.Equal(t, domain.MaxBacklogTier, update.BacklogTier)
	assert.Nil(t, update.NextEligible)
}

func TestDecideOutcome_SSL_ExhaustsRegardlessOfAttemptCount(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	row := baseRow()

	update := DecideOutcome(OutcomeParams{Row: row, Now: now, Success: false, Category: domain.FailureSSL})

	assert.Equal(t, domain.RegistryExhausted, update.State)
}

func TestDecideOutcome_TransientFailure_ShortCooldown(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	row := baseRow()

	for _, cat := range []domain.FailureCategory{domain.FailureNetwork, domain.FailureServer, domain.FailureTimeout} {
		update := DecideOutcome(OutcomeParams{Row: row, Now: now, Success: false, Category: cat, ErrorCooldown: 15 * time.Minute})
		assert.Equal(t, domain.RegistryCooldown, update.State)
		assert.Equal(t, cat, update.FailureCategory)
		assert.Equal(t, now.Add(15*time.Minute), *update.NextEligible)
	}
}
