package throttle

import "comradarr/internal/domain"

// ModerateFallback is the process-level profile used when a connector has
// no explicit throttle profile and the store has no default row.
var ModerateFallback = domain.ThrottleProfile{
	Name:                  "Moderate",
	RequestsPerMinute:     5,
	DailyBudget:           intPtr(500),
	BatchSize:             10,
	BatchCooldownSeconds:  60,
	RateLimitPauseSeconds: 300,
	IsDefault:             true,
}

func intPtr(v int) *int { return &v }

// ResolveProfile returns the effective throttle profile for connectorID:
// the connector's explicit profile, else the store's default profile,
// else ModerateFallback.
func ResolveProfile(ctx domain.Context, repo domain.ThrottleRepository, connectorID int64) (domain.ThrottleProfile, error) {
	p, err := repo.GetProfile(ctx, connectorID)
	if err != nil {
		return domain.ThrottleProfile{}, err
	}
	if p != nil {
		return *p, nil
	}
	return ModerateFallback, nil
}
