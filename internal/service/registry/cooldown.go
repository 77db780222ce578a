package registry

import (
	"time"

	"comradarr/internal/domain"
)

// DefaultCooldownTiers is the zero-config ladder (tier 0 = 6h ... tier
// 5 = 30d); production deployments tune these via COOLDOWN_TIERS.
var DefaultCooldownTiers = []time.Duration{
	6 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
	72 * time.Hour,
	168 * time.Hour,
	720 * time.Hour,
}

// CooldownFor returns the cooldown duration for the given backlog tier,
// clamping to the last configured tier if tier exceeds the configured
// slice length.
func CooldownFor(tier int, tiers []time.Duration) time.Duration {
	if len(tiers) == 0 {
		tiers = DefaultCooldownTiers
	}
	if tier < 0 {
		tier = 0
	}
	if tier >= len(tiers) {
		tier = len(tiers) - 1
	}
	return tiers[tier]
}

// AdvanceTier increments a backlog tier by one, capped at
// domain.MaxBacklogTier. Each consecutive no_results advances the tier by
// one until the cap.
func AdvanceTier(tier int) int {
	next := tier + 1
	if next > domain.MaxBacklogTier {
		return domain.MaxBacklogTier
	}
	return next
}
