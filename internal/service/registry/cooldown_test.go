package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"comradarr/internal/domain"
)

func TestCooldownFor_UsesConfiguredTiers(t *testing.T) {
	tiers := []time.Duration{time.Hour, 2 * time.Hour, 3 * time.Hour}
	assert.Equal(t, time.Hour, CooldownFor(0, tiers))
	assert.Equal(t, 2*time.Hour, CooldownFor(1, tiers))
}

func TestCooldownFor_ClampsBeyondConfiguredTiers(t *testing.T) {
	tiers := []time.Duration{time.Hour, 2 * time.Hour}
	assert.Equal(t, 2*time.Hour, CooldownFor(5, tiers))
}

func TestCooldownFor_FallsBackToDefaultWhenEmpty(t *testing.T) {
	assert.Equal(t, DefaultCooldownTiers[0], CooldownFor(0, nil))
}

func TestAdvanceTier_CapsAtMax(t *testing.T) {
	assert.Equal(t, 1, AdvanceTier(0))
	assert.Equal(t, domain.MaxBacklogTier, AdvanceTier(domain.MaxBacklogTier))
	assert.Equal(t, domain.MaxBacklogTier, AdvanceTier(domain.MaxBacklogTier-1))
}
