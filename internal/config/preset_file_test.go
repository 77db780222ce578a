package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comradarr/internal/config"
)

func writePresetFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadThrottlePresetFile_Valid(t *testing.T) {
	path := writePresetFile(t, `
profiles:
  - name: Slow
    requestsPerMinute: 1
    dailyBudget: 50
    batchSize: 2
    batchCooldownSeconds: 300
    rateLimitPauseSeconds: 900
    isDefault: true
  - name: Fast
    requestsPerMinute: 30
    batchSize: 20
`)

	presets, err := config.LoadThrottlePresetFile(path)
	require.NoError(t, err)
	require.Len(t, presets, 2)

	assert.Equal(t, "Slow", presets[0].Name)
	assert.True(t, presets[0].IsDefault)
	require.NotNil(t, presets[0].DailyBudget)
	assert.Equal(t, 50, *presets[0].DailyBudget)

	assert.Equal(t, "Fast", presets[1].Name)
	assert.Nil(t, presets[1].DailyBudget)
}

func TestLoadThrottlePresetFile_RejectsTwoDefaults(t *testing.T) {
	path := writePresetFile(t, `
profiles:
  - name: A
    requestsPerMinute: 1
    isDefault: true
  - name: B
    requestsPerMinute: 2
    isDefault: true
`)

	_, err := config.LoadThrottlePresetFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default")
}

func TestLoadThrottlePresetFile_RejectsZeroBudget(t *testing.T) {
	path := writePresetFile(t, `
profiles:
  - name: Broken
    requestsPerMinute: 0
`)

	_, err := config.LoadThrottlePresetFile(path)
	require.Error(t, err)
}

func TestLoadThrottlePresetFile_MissingFile(t *testing.T) {
	_, err := config.LoadThrottlePresetFile("/nonexistent/presets.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestConfig_ThrottlePresets_FallsBackToBuiltins(t *testing.T) {
	presets, err := config.Config{}.ThrottlePresets()
	require.NoError(t, err)
	require.Len(t, presets, 3)
	assert.Equal(t, "Moderate", presets[1].Name)
	assert.True(t, presets[1].IsDefault)
}
