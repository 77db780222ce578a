package observability_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comradarr/internal/adapter/observability"
	"comradarr/internal/config"
)

func TestSetupLogger_DevEnablesDebug(t *testing.T) {
	t.Parallel()

	lg := observability.SetupLogger(config.Config{AppEnv: "dev", OTELServiceName: "comradarr"})
	require.NotNil(t, lg)
	assert.True(t, lg.Enabled(t.Context(), slog.LevelDebug))
}

func TestSetupLogger_ProdDefaultsToInfo(t *testing.T) {
	t.Parallel()

	lg := observability.SetupLogger(config.Config{AppEnv: "prod", OTELServiceName: "comradarr"})
	require.NotNil(t, lg)
	assert.False(t, lg.Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, lg.Enabled(t.Context(), slog.LevelInfo))
}

func TestSetupLogger_TestEnvQuietsToWarn(t *testing.T) {
	t.Parallel()

	lg := observability.SetupLogger(config.Config{AppEnv: "test", OTELServiceName: "comradarr"})
	require.NotNil(t, lg)
	assert.False(t, lg.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, lg.Enabled(t.Context(), slog.LevelWarn))
}
