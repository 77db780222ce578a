package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"comradarr/internal/domain"
)

func TestSyncHealthThresholds_NextHealth(t *testing.T) {
	th := domain.SyncHealthThresholds{DegradedAt: 2, UnhealthyAt: 5}

	assert.Equal(t, domain.HealthHealthy, th.NextHealth(0, false))
	assert.Equal(t, domain.HealthHealthy, th.NextHealth(1, false))
	assert.Equal(t, domain.HealthDegraded, th.NextHealth(2, false))
	assert.Equal(t, domain.HealthDegraded, th.NextHealth(4, false))
	assert.Equal(t, domain.HealthUnhealthy, th.NextHealth(5, false))
	assert.Equal(t, domain.HealthUnhealthy, th.NextHealth(100, false))
}

func TestSyncHealthThresholds_AuthFailureIsImmediatelyUnhealthy(t *testing.T) {
	th := domain.SyncHealthThresholds{DegradedAt: 2, UnhealthyAt: 5}

	assert.Equal(t, domain.HealthUnhealthy, th.NextHealth(0, true))
}
