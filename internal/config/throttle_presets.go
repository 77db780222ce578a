package config

import "time"

// ThrottleProfilePreset mirrors domain.ThrottleProfile without importing the
// domain package, so that config stays free of domain dependencies; callers
// convert this into a domain.ThrottleProfile when seeding the store.
type ThrottleProfilePreset struct {
	Name                  string
	RequestsPerMinute     int
	DailyBudget           *int
	BatchSize             int
	BatchCooldownSeconds  int
	RateLimitPauseSeconds int
	IsDefault             bool
}

func intPtr(v int) *int { return &v }

// BuiltinThrottlePresets returns the three seed throttle profiles:
// Conservative, Moderate (the process-level fallback, marked default), and
// Aggressive.
func BuiltinThrottlePresets() []ThrottleProfilePreset {
	return []ThrottleProfilePreset{
		{
			Name:                  "Conservative",
			RequestsPerMinute:     2,
			DailyBudget:           intPtr(200),
			BatchSize:             5,
			BatchCooldownSeconds:  120,
			RateLimitPauseSeconds: 600,
		},
		{
			Name:                  "Moderate",
			RequestsPerMinute:     5,
			DailyBudget:           intPtr(500),
			BatchSize:             10,
			BatchCooldownSeconds:  60,
			RateLimitPauseSeconds: 300,
			IsDefault:             true,
		},
		{
			Name:                  "Aggressive",
			RequestsPerMinute:     20,
			DailyBudget:           nil,
			BatchSize:             25,
			BatchCooldownSeconds:  15,
			RateLimitPauseSeconds: 120,
		},
	}
}

// GetSyncRetryConfig returns the retry shape for a single sync attempt.
func (c Config) GetSyncRetryConfig() SyncRetryConfig {
	return SyncRetryConfig{
		MaxRetries: c.SyncMaxRetries,
		BaseDelay:  c.SyncRetryBaseDelay,
		MaxDelay:   c.SyncRetryMaxDelay,
		Multiplier: c.SyncRetryMultiplier,
	}
}

// SyncRetryConfig holds the per-sync-attempt retry shape.
type SyncRetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}
