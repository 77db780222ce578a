package domain

import "time"

// ReconnectOutcomeKind is the closed set of outcomes a single
// attemptReconnect call can produce.
type ReconnectOutcomeKind string

// Reconnect outcome kinds.
const (
	ReconnectSuccess        ReconnectOutcomeKind = "success"
	ReconnectPingFailed     ReconnectOutcomeKind = "ping_failed"
	ReconnectAuthentication ReconnectOutcomeKind = "authentication"
	ReconnectNetwork        ReconnectOutcomeKind = "network"
)

// ReconnectResult is the structured, never-thrown result of one
// attemptReconnect call.
type ReconnectResult struct {
	ConnectorID     int64
	Outcome         ReconnectOutcomeKind
	AttemptNumber   int
	NewHealth       ConnectorHealth
	NextReconnectAt *time.Time
	Err             string
}

// ReconnectTickSummary aggregates the outcomes of one processReconnections
// tick, returned to the scheduler for logging/metrics.
type ReconnectTickSummary struct {
	Attempted int
	Succeeded int
	StillDown int
	Skipped   int
}

// SyncHealthThresholds are the consecutive-failure thresholds that drive
// healthy -> degraded -> unhealthy transitions on sync failure.
type SyncHealthThresholds struct {
	DegradedAt  int
	UnhealthyAt int
}

// NextHealth computes the post-sync-failure health for a connector given
// its consecutive failure count and an optional authentication fault,
// which is immediately unhealthy regardless of count.
func (t SyncHealthThresholds) NextHealth(consecutiveFailures int, isAuthFailure bool) ConnectorHealth {
	if isAuthFailure {
		return HealthUnhealthy
	}
	switch {
	case consecutiveFailures >= t.UnhealthyAt:
		return HealthUnhealthy
	case consecutiveFailures >= t.DegradedAt:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}
