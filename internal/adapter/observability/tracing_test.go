package observability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comradarr/internal/adapter/observability"
	"comradarr/internal/config"
)

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := observability.SetupTracing(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, shutdown)
}

func TestSetupTracing_WithEndpoint(t *testing.T) {
	cfg := config.Config{
		OTLPEndpoint:    "localhost:4317",
		OTELServiceName: "comradarr-test",
	}

	// The gRPC exporter connects lazily, so setup succeeds even with no
	// collector listening.
	shutdown, err := observability.SetupTracing(cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	_ = shutdown(t.Context())
}
