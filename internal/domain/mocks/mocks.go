// Package mocks provides hand-authored testify mocks for the domain ports,
// following the mock.Mock embedding pattern used throughout this codebase's
// own test doubles.
package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"comradarr/internal/domain"
)

// ThrottleRepository mock.

type ThrottleRepository struct{ mock.Mock }

func (m *ThrottleRepository) GetOrCreate(ctx domain.Context, connectorID int64) (domain.ThrottleState, error) {
	args := m.Called(ctx, connectorID)
	return args.Get(0).(domain.ThrottleState), args.Error(1)
}

func (m *ThrottleRepository) TryAcquireMinuteSlot(ctx domain.Context, connectorID int64, requestsPerMinute int, now time.Time) (bool, bool, error) {
	args := m.Called(ctx, connectorID, requestsPerMinute, now)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func (m *ThrottleRepository) ResetDayWindowIfExpired(ctx domain.Context, connectorID int64, now time.Time) (domain.ThrottleState, error) {
	args := m.Called(ctx, connectorID, now)
	return args.Get(0).(domain.ThrottleState), args.Error(1)
}

func (m *ThrottleRepository) RecordRequest(ctx domain.Context, connectorID int64, now time.Time) error {
	args := m.Called(ctx, connectorID, now)
	return args.Error(0)
}

func (m *ThrottleRepository) SetPause(ctx domain.Context, connectorID int64, until time.Time, reason domain.PauseReason) error {
	args := m.Called(ctx, connectorID, until, reason)
	return args.Error(0)
}

func (m *ThrottleRepository) ClearPause(ctx domain.Context, connectorID int64) error {
	args := m.Called(ctx, connectorID)
	return args.Error(0)
}

func (m *ThrottleRepository) ResetExpiredWindows(ctx domain.Context, now time.Time) (int, int, int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Int(1), args.Int(2), args.Error(3)
}

func (m *ThrottleRepository) GetProfile(ctx domain.Context, connectorID int64) (*domain.ThrottleProfile, error) {
	args := m.Called(ctx, connectorID)
	profile, _ := args.Get(0).(*domain.ThrottleProfile)
	return profile, args.Error(1)
}

var _ domain.ThrottleRepository = (*ThrottleRepository)(nil)

// RegistryRepository mock.

type RegistryRepository struct{ mock.Mock }

func (m *RegistryRepository) Get(ctx domain.Context, id int64) (domain.SearchRegistry, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.SearchRegistry), args.Error(1)
}

func (m *RegistryRepository) GetByContent(ctx domain.Context, connectorID int64, contentType domain.ContentType, contentID int64) (*domain.SearchRegistry, error) {
	args := m.Called(ctx, connectorID, contentType, contentID)
	row, _ := args.Get(0).(*domain.SearchRegistry)
	return row, args.Error(1)
}

func (m *RegistryRepository) Enqueue(ctx domain.Context, registryID int64, priority int, now time.Time, batchID string) error {
	args := m.Called(ctx, registryID, priority, now, batchID)
	return args.Error(0)
}

func (m *RegistryRepository) SelectEligible(ctx domain.Context, connectorID int64, now time.Time, limit int) ([]domain.SearchRegistry, error) {
	args := m.Called(ctx, connectorID, now, limit)
	rows, _ := args.Get(0).([]domain.SearchRegistry)
	return rows, args.Error(1)
}

func (m *RegistryRepository) PickNext(ctx domain.Context, connectorID int64, now time.Time) (domain.SearchRegistry, bool, error) {
	args := m.Called(ctx, connectorID, now)
	return args.Get(0).(domain.SearchRegistry), args.Bool(1), args.Error(2)
}

func (m *RegistryRepository) ClaimSearching(ctx domain.Context, registryIDs []int64, now time.Time) ([]domain.SearchRegistry, error) {
	args := m.Called(ctx, registryIDs, now)
	rows, _ := args.Get(0).([]domain.SearchRegistry)
	return rows, args.Error(1)
}

func (m *RegistryRepository) ApplyOutcome(ctx domain.Context, registryID int64, update domain.RegistryOutcomeUpdate) error {
	args := m.Called(ctx, registryID, update)
	return args.Error(0)
}

func (m *RegistryRepository) ManualReset(ctx domain.Context, registryID int64) error {
	args := m.Called(ctx, registryID)
	return args.Error(0)
}

func (m *RegistryRepository) GetOrCreate(ctx domain.Context, connectorID int64, contentType domain.ContentType, contentID int64, searchType domain.SearchType, now time.Time) (domain.SearchRegistry, error) {
	args := m.Called(ctx, connectorID, contentType, contentID, searchType, now)
	return args.Get(0).(domain.SearchRegistry), args.Error(1)
}

var _ domain.RegistryRepository = (*RegistryRepository)(nil)

// QueueRepository mock.

type QueueRepository struct{ mock.Mock }

func (m *QueueRepository) DepthByConnector(ctx domain.Context) (map[int64]int, error) {
	args := m.Called(ctx)
	depths, _ := args.Get(0).(map[int64]int)
	return depths, args.Error(1)
}

var _ domain.QueueRepository = (*QueueRepository)(nil)

// HistoryRepository mock.

type HistoryRepository struct{ mock.Mock }

func (m *HistoryRepository) Append(ctx domain.Context, row domain.SearchHistory) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

var _ domain.HistoryRepository = (*HistoryRepository)(nil)

// SyncRepository mock.

type SyncRepository struct{ mock.Mock }

func (m *SyncRepository) Get(ctx domain.Context, connectorID int64) (domain.SyncState, error) {
	args := m.Called(ctx, connectorID)
	return args.Get(0).(domain.SyncState), args.Error(1)
}

func (m *SyncRepository) Update(ctx domain.Context, state domain.SyncState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *SyncRepository) SelectReconnectDue(ctx domain.Context, now time.Time) ([]domain.SyncState, error) {
	args := m.Called(ctx, now)
	rows, _ := args.Get(0).([]domain.SyncState)
	return rows, args.Error(1)
}

var _ domain.SyncRepository = (*SyncRepository)(nil)

// ConnectorRepository mock.

type ConnectorRepository struct{ mock.Mock }

func (m *ConnectorRepository) Get(ctx domain.Context, id int64) (domain.Connector, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Connector), args.Error(1)
}

func (m *ConnectorRepository) List(ctx domain.Context) ([]domain.Connector, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]domain.Connector)
	return rows, args.Error(1)
}

func (m *ConnectorRepository) ListDispatchable(ctx domain.Context) ([]domain.Connector, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]domain.Connector)
	return rows, args.Error(1)
}

func (m *ConnectorRepository) UpdateHealth(ctx domain.Context, connectorID int64, health domain.ConnectorHealth) error {
	args := m.Called(ctx, connectorID, health)
	return args.Error(0)
}

func (m *ConnectorRepository) SetQueuePaused(ctx domain.Context, connectorID int64, paused bool) error {
	args := m.Called(ctx, connectorID, paused)
	return args.Error(0)
}

var _ domain.ConnectorRepository = (*ConnectorRepository)(nil)

// ContentRepository mock.

type ContentRepository struct{ mock.Mock }

func (m *ContentRepository) GetEpisode(ctx domain.Context, id int64) (domain.Episode, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Episode), args.Error(1)
}

func (m *ContentRepository) GetMovie(ctx domain.Context, id int64) (domain.Movie, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Movie), args.Error(1)
}

func (m *ContentRepository) GetSeason(ctx domain.Context, seriesID int64, seasonNumber int) (domain.Season, error) {
	args := m.Called(ctx, seriesID, seasonNumber)
	return args.Get(0).(domain.Season), args.Error(1)
}

func (m *ContentRepository) ListSearchCandidates(ctx domain.Context, connectorID int64, limit int) ([]domain.SearchCandidate, error) {
	args := m.Called(ctx, connectorID, limit)
	rows, _ := args.Get(0).([]domain.SearchCandidate)
	return rows, args.Error(1)
}

var _ domain.ContentRepository = (*ContentRepository)(nil)

// ConnectorClient mock.

type ConnectorClient struct{ mock.Mock }

func (m *ConnectorClient) Ping(ctx domain.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *ConnectorClient) SystemStatus(ctx domain.Context) (domain.SystemStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.SystemStatus), args.Error(1)
}

func (m *ConnectorClient) Health(ctx domain.Context) ([]domain.HealthCheckEntry, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]domain.HealthCheckEntry)
	return rows, args.Error(1)
}

func (m *ConnectorClient) ListWantedMissing(ctx domain.Context, page, pageSize int) (domain.PaginatedEnvelope[domain.Episode], error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).(domain.PaginatedEnvelope[domain.Episode]), args.Error(1)
}

func (m *ConnectorClient) ListWantedCutoff(ctx domain.Context, page, pageSize int) (domain.PaginatedEnvelope[domain.Episode], error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).(domain.PaginatedEnvelope[domain.Episode]), args.Error(1)
}

func (m *ConnectorClient) SendSearch(ctx domain.Context, cmd domain.Command) (domain.CommandResponse, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(domain.CommandResponse), args.Error(1)
}

func (m *ConnectorClient) GetCommand(ctx domain.Context, id int64) (domain.CommandResponse, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.CommandResponse), args.Error(1)
}

var _ domain.ConnectorClient = (*ConnectorClient)(nil)

// CredentialProvider mock.

type CredentialProvider struct{ mock.Mock }

func (m *CredentialProvider) Decrypt(ctx domain.Context, encryptedAPIKey string) (string, error) {
	args := m.Called(ctx, encryptedAPIKey)
	return args.String(0), args.Error(1)
}

var _ domain.CredentialProvider = (*CredentialProvider)(nil)

// IndexerHealthProvider mock.

type IndexerHealthProvider struct{ mock.Mock }

func (m *IndexerHealthProvider) Snapshot(ctx domain.Context) (domain.IndexerSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.IndexerSnapshot), args.Error(1)
}

var _ domain.IndexerHealthProvider = (*IndexerHealthProvider)(nil)
