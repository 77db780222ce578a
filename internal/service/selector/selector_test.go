package selector_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"comradarr/internal/domain"
	"comradarr/internal/domain/mocks"
	"comradarr/internal/service/registry"
	"comradarr/internal/service/selector"
)

func TestService_Run_EnqueuesFreshPendingCandidates(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	content := new(mocks.ContentRepository)
	registryRepo := new(mocks.RegistryRepository)
	history := new(mocks.HistoryRepository)

	content.On("ListSearchCandidates", mock.Anything, int64(1), mock.Anything).
		Return([]domain.SearchCandidate{
			{ContentType: domain.ContentEpisode, ContentID: 10, SearchType: domain.SearchTypeGap, CurrentlyAiring: true},
			{ContentType: domain.ContentMovie, ContentID: 20, SearchType: domain.SearchTypeUpgrade},
		}, nil)

	registryRepo.On("GetOrCreate", mock.Anything, int64(1), domain.ContentEpisode, int64(10), domain.SearchTypeGap, mock.Anything).
		Return(domain.SearchRegistry{ID: 100, ConnectorID: 1, ContentType: domain.ContentEpisode, ContentID: 10, SearchType: domain.SearchTypeGap, State: domain.RegistryPending, FirstDiscovered: now}, nil)
	registryRepo.On("GetOrCreate", mock.Anything, int64(1), domain.ContentMovie, int64(20), domain.SearchTypeUpgrade, mock.Anything).
		Return(domain.SearchRegistry{ID: 101, ConnectorID: 1, ContentType: domain.ContentMovie, ContentID: 20, SearchType: domain.SearchTypeUpgrade, State: domain.RegistryPending, FirstDiscovered: now}, nil)

	registryRepo.On("Enqueue", mock.Anything, int64(100), mock.Anything, mock.Anything, mock.Anything).Return(nil)
	registryRepo.On("Enqueue", mock.Anything, int64(101), mock.Anything, mock.Anything, mock.Anything).Return(nil)

	registrySvc := registry.NewService(registryRepo, history, []time.Duration{6 * time.Hour}, 20, 15*time.Minute).WithClock(func() time.Time { return now })
	sel := selector.New(content, registryRepo, registrySvc, 500).WithClock(func() time.Time { return now })

	result, err := sel.Run(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, result.Scanned)
	require.Equal(t, 2, result.Enqueued)
	registryRepo.AssertExpectations(t)
}

func TestService_Run_SkipsRowsAlreadyInFlightOrCoolingDown(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	content := new(mocks.ContentRepository)
	registryRepo := new(mocks.RegistryRepository)
	history := new(mocks.HistoryRepository)

	content.On("ListSearchCandidates", mock.Anything, int64(1), mock.Anything).
		Return([]domain.SearchCandidate{
			{ContentType: domain.ContentEpisode, ContentID: 10, SearchType: domain.SearchTypeGap},
			{ContentType: domain.ContentEpisode, ContentID: 11, SearchType: domain.SearchTypeGap},
		}, nil)

	registryRepo.On("GetOrCreate", mock.Anything, int64(1), domain.ContentEpisode, int64(10), domain.SearchTypeGap, mock.Anything).
		Return(domain.SearchRegistry{ID: 200, State: domain.RegistryCooldown, NextEligible: &future}, nil)
	registryRepo.On("GetOrCreate", mock.Anything, int64(1), domain.ContentEpisode, int64(11), domain.SearchTypeGap, mock.Anything).
		Return(domain.SearchRegistry{ID: 201, State: domain.RegistrySearching}, nil)

	registrySvc := registry.NewService(registryRepo, history, []time.Duration{6 * time.Hour}, 20, 15*time.Minute).WithClock(func() time.Time { return now })
	sel := selector.New(content, registryRepo, registrySvc, 500).WithClock(func() time.Time { return now })

	result, err := sel.Run(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, result.Scanned)
	require.Equal(t, 0, result.Enqueued)
	registryRepo.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
