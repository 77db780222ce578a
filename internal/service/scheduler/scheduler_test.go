package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"comradarr/internal/domain"
	"comradarr/internal/domain/mocks"
	"comradarr/internal/service/dispatcher"
	"comradarr/internal/service/reconnect"
	"comradarr/internal/service/registry"
	"comradarr/internal/service/scheduler"
	"comradarr/internal/service/selector"
	"comradarr/internal/service/throttle"
	"comradarr/pkg/clock"
)

type fakeClientFactory struct{}

func (fakeClientFactory) Build(_ domain.Context, _ domain.Connector) (domain.ConnectorClient, error) {
	return new(mocks.ConnectorClient), nil
}

func newScheduler(t *testing.T, connectors *mocks.ConnectorRepository, throttleRepo *mocks.ThrottleRepository, syncRepo *mocks.SyncRepository, registryRepo *mocks.RegistryRepository, content *mocks.ContentRepository) *scheduler.Scheduler {
	t.Helper()
	history := new(mocks.HistoryRepository)
	history.On("Append", mock.Anything, mock.Anything).Return(nil).Maybe()

	enforcer := throttle.NewEnforcer(throttleRepo, nil)
	reconnectSvc := reconnect.NewService(syncRepo, connectors, fakeClientFactory{},
		clock.BackoffShape{Base: 30 * time.Second, Max: 600 * time.Second, Multiplier: 2, Jitter: 0.25},
		domain.SyncHealthThresholds{DegradedAt: 2, UnhealthyAt: 5})
	registrySvc := registry.NewService(registryRepo, history, []time.Duration{6 * time.Hour}, 20, 15*time.Minute)
	disp := dispatcher.New(registryRepo, content, enforcer, registrySvc, nil, dispatcher.BatchingLimits{MaxEpisodesPerSearch: 10, MaxMoviesPerSearch: 10, MinMissingCount: 3, MinMissingPercent: 50}, 500)
	selectorSvc := selector.New(content, registryRepo, registrySvc, 500)

	queue := new(mocks.QueueRepository)
	queue.On("DepthByConnector", mock.Anything).Return(map[int64]int{}, nil).Maybe()

	return scheduler.New(connectors, enforcer, reconnectSvc, selectorSvc, disp, queue, fakeClientFactory{},
		scheduler.Intervals{Throttle: 10 * time.Millisecond, Reconnect: 10 * time.Millisecond, Dispatch: 10 * time.Millisecond}, nil)
}

func TestScheduler_RunStopsOnContextCancel(t *testing.T) {
	connectors := new(mocks.ConnectorRepository)
	throttleRepo := new(mocks.ThrottleRepository)
	syncRepo := new(mocks.SyncRepository)
	registryRepo := new(mocks.RegistryRepository)
	content := new(mocks.ContentRepository)

	throttleRepo.On("ResetExpiredWindows", mock.Anything, mock.Anything).Return(0, 0, 0, nil).Maybe()
	syncRepo.On("SelectReconnectDue", mock.Anything, mock.Anything).Return([]domain.SyncState{}, nil).Maybe()
	connectors.On("ListDispatchable", mock.Anything).Return([]domain.Connector{}, nil).Maybe()

	s := newScheduler(t, connectors, throttleRepo, syncRepo, registryRepo, content)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.NoError(t, err)
}

func TestScheduler_DispatchTickIsolatesConnectorFailures(t *testing.T) {
	connectors := new(mocks.ConnectorRepository)
	throttleRepo := new(mocks.ThrottleRepository)
	syncRepo := new(mocks.SyncRepository)
	registryRepo := new(mocks.RegistryRepository)
	content := new(mocks.ContentRepository)

	throttleRepo.On("ResetExpiredWindows", mock.Anything, mock.Anything).Return(0, 0, 0, nil).Maybe()
	syncRepo.On("SelectReconnectDue", mock.Anything, mock.Anything).Return([]domain.SyncState{}, nil).Maybe()
	connectors.On("ListDispatchable", mock.Anything).Return([]domain.Connector{
		{ID: 1, Kind: domain.KindA},
		{ID: 2, Kind: domain.KindB},
	}, nil).Maybe()
	// Connector 1's dispatch pass fails at selection; connector 2's does not.
	registryRepo.On("SelectEligible", mock.Anything, int64(1), mock.Anything, mock.Anything).
		Return(nil, domain.ErrStorage).Maybe()
	registryRepo.On("SelectEligible", mock.Anything, int64(2), mock.Anything, mock.Anything).
		Return([]domain.SearchRegistry{}, nil).Maybe()
	content.On("ListSearchCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.SearchCandidate{}, nil).Maybe()

	s := newScheduler(t, connectors, throttleRepo, syncRepo, registryRepo, content)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.NoError(t, err)
}
