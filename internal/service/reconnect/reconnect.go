// Package reconnect implements exponential-backoff health
// restoration for offline or unhealthy connectors, plus the sync-failure
// tier that feeds it.
package reconnect

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"comradarr/internal/adapter/observability"
	"comradarr/internal/domain"
	"comradarr/pkg/clock"
)

// ConnectorClientFactory resolves a domain.ConnectorClient for a managed
// connector, decrypting its credentials. Satisfied by
// internal/adapter/connector.Factory; declared here so this package stays
// free of an adapter import.
type ConnectorClientFactory interface {
	Build(ctx domain.Context, conn domain.Connector) (domain.ConnectorClient, error)
}

// Service restores offline or unhealthy connectors on a persisted
// exponential-backoff schedule.
type Service struct {
	sync       domain.SyncRepository
	connectors domain.ConnectorRepository
	clients    ConnectorClientFactory
	backoff    clock.BackoffShape
	thresholds domain.SyncHealthThresholds
	now        func() time.Time
	randFn     func() float64
}

// NewService constructs a reconnect Service.
func NewService(
	sync domain.SyncRepository,
	connectors domain.ConnectorRepository,
	clients ConnectorClientFactory,
	backoff clock.BackoffShape,
	thresholds domain.SyncHealthThresholds,
) *Service {
	return &Service{
		sync: sync, connectors: connectors, clients: clients,
		backoff: backoff, thresholds: thresholds,
		now: time.Now, randFn: rand.Float64,
	}
}

// WithClock overrides the service's now function, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithRand overrides the jitter draw, for deterministic tests.
func (s *Service) WithRand(randFn func() float64) *Service {
	s.randFn = randFn
	return s
}

// InitializeReconnectForOfflineConnector idempotently starts the reconnect
// clock for a connector: a no-op if reconnectStartedAt is already set.
func (s *Service) InitializeReconnectForOfflineConnector(ctx domain.Context, connectorID int64) error {
	state, err := s.sync.Get(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("op=reconnect.initialize.get: %w", err)
	}
	if state.ReconnectStartedAt != nil {
		return nil
	}

	now := s.now()
	next := now.Add(clock.Backoff(s.backoff, 0, s.randFn))
	state.ReconnectAttempts = 0
	state.ReconnectStartedAt = &now
	state.NextReconnectAt = &next

	if err := s.sync.Update(ctx, state); err != nil {
		return fmt.Errorf("op=reconnect.initialize.update: %w", err)
	}
	return nil
}

// AttemptReconnect pings the connector (ping + health) and applies one of
// the four reconnect outcomes, persisting the resulting
// health and reconnect bookkeeping. It never returns a domain-level error:
// upstream faults become a structured ReconnectResult. The returned error
// is reserved for repository failures; reconnect never throws past its
// tick.
func (s *Service) AttemptReconnect(ctx domain.Context, conn domain.Connector, currentAttemptCount int) (domain.ReconnectResult, error) {
	now := s.now()
	attemptNumber := currentAttemptCount + 1

	client, err := s.clients.Build(ctx, conn)
	if err != nil {
		return s.applyFailure(ctx, conn.ID, attemptNumber, domain.HealthOffline, domain.ReconnectNetwork, err.Error())
	}

	ok, pingErr := client.Ping(ctx)
	if pingErr != nil {
		if upErr, isUp := domain.AsUpstreamError(pingErr); isUp && upErr.Category == domain.CategoryAuthentication {
			return s.applyFailure(ctx, conn.ID, attemptNumber, domain.HealthUnhealthy, domain.ReconnectAuthentication, pingErr.Error())
		}
		return s.applyFailure(ctx, conn.ID, attemptNumber, domain.HealthOffline, domain.ReconnectNetwork, pingErr.Error())
	}
	if !ok {
		return s.applyFailure(ctx, conn.ID, attemptNumber, domain.HealthOffline, domain.ReconnectPingFailed, "ping returned false")
	}

	entries, healthErr := client.Health(ctx)
	if healthErr != nil {
		return s.applyFailure(ctx, conn.ID, attemptNumber, domain.HealthOffline, domain.ReconnectNetwork, healthErr.Error())
	}
	if hasErrorEntry(entries) {
		return s.applyFailure(ctx, conn.ID, attemptNumber, domain.HealthOffline, domain.ReconnectPingFailed, "health check reported an error entry")
	}

	return s.applySuccess(ctx, conn.ID, attemptNumber, now)
}

// healthGauge maps a health enum onto the connector_health gauge scale.
var healthGauge = map[domain.ConnectorHealth]int{
	domain.HealthHealthy:   0,
	domain.HealthDegraded:  1,
	domain.HealthUnhealthy: 2,
	domain.HealthOffline:   3,
	domain.HealthUnknown:   4,
}

func recordHealthMetrics(connectorID int64, outcome domain.ReconnectOutcomeKind, health domain.ConnectorHealth) {
	label := strconv.FormatInt(connectorID, 10)
	observability.RecordReconnectAttempt(label, string(outcome))
	observability.SetConnectorHealth(label, healthGauge[health])
}

func hasErrorEntry(entries []domain.HealthCheckEntry) bool {
	for _, e := range entries {
		if strings.EqualFold(e.Type, "error") {
			return true
		}
	}
	return false
}

func (s *Service) applySuccess(ctx domain.Context, connectorID int64, attemptNumber int, now time.Time) (domain.ReconnectResult, error) {
	state, err := s.sync.Get(ctx, connectorID)
	if err != nil {
		return domain.ReconnectResult{}, fmt.Errorf("op=reconnect.attempt.success.get: %w", err)
	}
	state.ReconnectAttempts = 0
	state.ReconnectStartedAt = nil
	state.NextReconnectAt = nil
	state.LastReconnectError = ""
	if err := s.sync.Update(ctx, state); err != nil {
		return domain.ReconnectResult{}, fmt.Errorf("op=reconnect.attempt.success.update: %w", err)
	}
	if err := s.connectors.UpdateHealth(ctx, connectorID, domain.HealthHealthy); err != nil {
		return domain.ReconnectResult{}, fmt.Errorf("op=reconnect.attempt.success.updateHealth: %w", err)
	}
	recordHealthMetrics(connectorID, domain.ReconnectSuccess, domain.HealthHealthy)

	return domain.ReconnectResult{
		ConnectorID:   connectorID,
		Outcome:       domain.ReconnectSuccess,
		AttemptNumber: attemptNumber,
		NewHealth:     domain.HealthHealthy,
	}, nil
}

func (s *Service) applyFailure(ctx domain.Context, connectorID int64, attemptNumber int, newHealth domain.ConnectorHealth, outcome domain.ReconnectOutcomeKind, errString string) (domain.ReconnectResult, error) {
	now := s.now()
	state, err := s.sync.Get(ctx, connectorID)
	if err != nil {
		return domain.ReconnectResult{}, fmt.Errorf("op=reconnect.attempt.failure.get: %w", err)
	}

	next := now.Add(clock.Backoff(s.backoff, attemptNumber, s.randFn))
	state.ReconnectAttempts = attemptNumber
	if state.ReconnectStartedAt == nil {
		state.ReconnectStartedAt = &now
	}
	state.NextReconnectAt = &next
	state.LastReconnectError = errString

	if err := s.sync.Update(ctx, state); err != nil {
		return domain.ReconnectResult{}, fmt.Errorf("op=reconnect.attempt.failure.update: %w", err)
	}
	if err := s.connectors.UpdateHealth(ctx, connectorID, newHealth); err != nil {
		return domain.ReconnectResult{}, fmt.Errorf("op=reconnect.attempt.failure.updateHealth: %w", err)
	}
	recordHealthMetrics(connectorID, outcome, newHealth)

	return domain.ReconnectResult{
		ConnectorID:     connectorID,
		Outcome:         outcome,
		AttemptNumber:   attemptNumber,
		NewHealth:       newHealth,
		NextReconnectAt: &next,
		Err:             errString,
	}, nil
}

// TriggerManualReconnect resets the backoff counter and immediately runs
// one reconnect attempt (operator action). The returned result's
// AttemptNumber is previousAttempts+1, counted before the reset.
func (s *Service) TriggerManualReconnect(ctx domain.Context, connectorID int64) (domain.ReconnectResult, error) {
	conn, err := s.connectors.Get(ctx, connectorID)
	if err != nil {
		return domain.ReconnectResult{}, fmt.Errorf("op=reconnect.manual.getConnector: %w", err)
	}
	state, err := s.sync.Get(ctx, connectorID)
	if err != nil {
		return domain.ReconnectResult{}, fmt.Errorf("op=reconnect.manual.getState: %w", err)
	}

	previousAttempts := state.ReconnectAttempts
	state.ReconnectAttempts = 0
	state.NextReconnectAt = nil
	if err := s.sync.Update(ctx, state); err != nil {
		return domain.ReconnectResult{}, fmt.Errorf("op=reconnect.manual.reset: %w", err)
	}

	return s.AttemptReconnect(ctx, conn, previousAttempts)
}

// PauseConnectorReconnect suspends the reconnect tick for connectorID.
func (s *Service) PauseConnectorReconnect(ctx domain.Context, connectorID int64) error {
	state, err := s.sync.Get(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("op=reconnect.pause.get: %w", err)
	}
	state.ReconnectPaused = true
	if err := s.sync.Update(ctx, state); err != nil {
		return fmt.Errorf("op=reconnect.pause.update: %w", err)
	}
	return nil
}

// ResumeConnectorReconnect re-enables the reconnect tick, recomputing
// nextReconnectAt from the connector's current attempt count (0 if
// absent).
func (s *Service) ResumeConnectorReconnect(ctx domain.Context, connectorID int64) error {
	state, err := s.sync.Get(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("op=reconnect.resume.get: %w", err)
	}
	next := s.now().Add(clock.Backoff(s.backoff, state.ReconnectAttempts, s.randFn))
	state.ReconnectPaused = false
	state.NextReconnectAt = &next
	if err := s.sync.Update(ctx, state); err != nil {
		return fmt.Errorf("op=reconnect.resume.update: %w", err)
	}
	return nil
}

// ProcessReconnections runs the periodic reconnect tick: attempts
// every connector whose reconnect is due, never letting a single
// connector's failure abort the sweep.
func (s *Service) ProcessReconnections(ctx domain.Context) (domain.ReconnectTickSummary, error) {
	due, err := s.sync.SelectReconnectDue(ctx, s.now())
	if err != nil {
		return domain.ReconnectTickSummary{}, fmt.Errorf("op=reconnect.tick.selectDue: %w", err)
	}

	var summary domain.ReconnectTickSummary
	for _, state := range due {
		summary.Attempted++

		conn, err := s.connectors.Get(ctx, state.ConnectorID)
		if err != nil {
			summary.Skipped++
			continue
		}

		result, err := s.AttemptReconnect(ctx, conn, state.ReconnectAttempts)
		if err != nil {
			summary.Skipped++
			continue
		}
		if result.Outcome == domain.ReconnectSuccess {
			summary.Succeeded++
		} else {
			summary.StillDown++
		}
	}

	return summary, nil
}

// RecordSyncOutcome applies a sync collaborator's success/failure to a
// connector's health tier and, on a transition to
// offline/unhealthy, starts the reconnect clock.
func (s *Service) RecordSyncOutcome(ctx domain.Context, connectorID int64, success bool, isAuthFailure bool) (domain.ConnectorHealth, error) {
	state, err := s.sync.Get(ctx, connectorID)
	if err != nil {
		return "", fmt.Errorf("op=reconnect.recordSync.get: %w", err)
	}

	now := s.now()
	var newHealth domain.ConnectorHealth
	if success {
		state.ConsecutiveFailures = 0
		state.LastSync = &now
		newHealth = domain.HealthHealthy
	} else {
		state.ConsecutiveFailures++
		newHealth = s.thresholds.NextHealth(state.ConsecutiveFailures, isAuthFailure)
	}

	if err := s.sync.Update(ctx, state); err != nil {
		return "", fmt.Errorf("op=reconnect.recordSync.update: %w", err)
	}
	if err := s.connectors.UpdateHealth(ctx, connectorID, newHealth); err != nil {
		return "", fmt.Errorf("op=reconnect.recordSync.updateHealth: %w", err)
	}

	if newHealth == domain.HealthUnhealthy || newHealth == domain.HealthOffline {
		if err := s.InitializeReconnectForOfflineConnector(ctx, connectorID); err != nil {
			return "", fmt.Errorf("op=reconnect.recordSync.initialize: %w", err)
		}
	}

	return newHealth, nil
}
