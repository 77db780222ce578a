package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comradarr/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("SECRET_KEY", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5, cfg.SyncUnhealthyThreshold)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("MAX_EPISODES_PER_SEARCH", "25")
	t.Setenv("COOLDOWN_TIERS", "1h,2h,3h")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, 25, cfg.MaxEpisodesPerSearch)
	require.Len(t, cfg.CooldownTiers, 3)
}

func TestBuiltinThrottlePresets_HasExactlyOneDefault(t *testing.T) {
	presets := config.BuiltinThrottlePresets()
	defaults := 0
	for _, p := range presets {
		if p.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
	assert.Len(t, presets, 3)
}

func TestGetSyncRetryConfig_MapsFields(t *testing.T) {
	cfg := config.Config{
		SyncMaxRetries:      5,
		SyncRetryBaseDelay:  0,
		SyncRetryMaxDelay:   0,
		SyncRetryMultiplier: 3,
	}
	rc := cfg.GetSyncRetryConfig()
	assert.Equal(t, 5, rc.MaxRetries)
	assert.Equal(t, 3.0, rc.Multiplier)
}
