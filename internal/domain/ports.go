package domain

import "time"

// ThrottleRepository is the persistence port for the throttle enforcer.
// All counter reads/writes go through here; no in-process cache is
// permitted.
//
//go:generate mockery --name=ThrottleRepository --with-expecter --filename=throttle_repository_mock.go
type ThrottleRepository interface {
	// GetOrCreate returns the ThrottleState for connectorId, inserting a
	// zero-value row if absent.
	GetOrCreate(ctx Context, connectorID int64) (ThrottleState, error)
	// TryAcquireMinuteSlot atomically resets an expired minute window or
	// increments the counter if capacity remains, returning whether a slot
	// was acquired and whether the window had expired.
	TryAcquireMinuteSlot(ctx Context, connectorID int64, requestsPerMinute int, now time.Time) (acquired bool, windowExpired bool, err error)
	// ResetDayWindowIfExpired atomically resets requestsToday/dayWindowStart
	// for a single connector if its day window has expired as of now,
	// returning the up-to-date state either way.
	ResetDayWindowIfExpired(ctx Context, connectorID int64, now time.Time) (ThrottleState, error)
	// RecordRequest bumps RequestsToday and LastRequestAt.
	RecordRequest(ctx Context, connectorID int64, now time.Time) error
	// SetPause sets PausedUntil/PauseReason for connectorID.
	SetPause(ctx Context, connectorID int64, until time.Time, reason PauseReason) error
	// ClearPause clears PausedUntil/PauseReason.
	ClearPause(ctx Context, connectorID int64) error
	// ResetExpiredWindows bulk-resets expired minute/day windows and clears
	// expired pauses, returning counts of each category reset.
	ResetExpiredWindows(ctx Context, now time.Time) (minuteReset int, dayReset int, pausesCleared int, err error)
	// GetProfile resolves the effective profile for a connector:
	// connector's explicit profile, else the store default, else nil
	// (caller falls back to the process-level Moderate preset).
	GetProfile(ctx Context, connectorID int64) (*ThrottleProfile, error)
}

// RegistryRepository is the persistence port for the search registry.
//
//go:generate mockery --name=RegistryRepository --with-expecter --filename=registry_repository_mock.go
type RegistryRepository interface {
	// Get returns a registry row by id.
	Get(ctx Context, id int64) (SearchRegistry, error)
	// GetByContent returns the registry row for (connectorID, contentType, contentID), if any.
	GetByContent(ctx Context, connectorID int64, contentType ContentType, contentID int64) (*SearchRegistry, error)
	// Enqueue transitions a pending-eligible row to queued and inserts the
	// matching RequestQueue row, atomically.
	Enqueue(ctx Context, registryID int64, priority int, now time.Time, batchID string) error
	// SelectEligible returns pending/queued rows for connectorID where
	// nextEligible <= now, ordered priority DESC, scheduledAt ASC,
	// registry id ASC, capped at limit.
	SelectEligible(ctx Context, connectorID int64, now time.Time, limit int) ([]SearchRegistry, error)
	// PickNext claims the next queued RequestQueue row for connectorID
	// (SELECT ... FOR UPDATE SKIP LOCKED semantics), transitioning the
	// registry row to searching, incrementing attemptCount and setting
	// lastSearched. Returns ok=false if nothing is claimable.
	PickNext(ctx Context, connectorID int64, now time.Time) (row SearchRegistry, ok bool, err error)
	// ClaimSearching transitions the given pending/queued rows to searching
	// via a state-CAS, incrementing attemptCount and setting lastSearched,
	// and consumes their RequestQueue rows in the same transaction. Rows
	// already claimed by a concurrent pass are silently skipped; only the
	// rows actually claimed are returned.
	ClaimSearching(ctx Context, registryIDs []int64, now time.Time) ([]SearchRegistry, error)
	// ApplyOutcome records the side effects of a dispatch outcome on the
	// registry row: new state, nextEligible, backlogTier, failureCategory,
	// seasonPackFailed.
	ApplyOutcome(ctx Context, registryID int64, update RegistryOutcomeUpdate) error
	// ManualReset transitions an exhausted row back to pending.
	ManualReset(ctx Context, registryID int64) error
	// GetOrCreate returns the registry row for (connectorID, contentType,
	// contentID), inserting a fresh pending row with firstDiscovered=now if
	// none exists yet (exactly one registry row per content item). Used by
	// the discovery/selector pass.
	GetOrCreate(ctx Context, connectorID int64, contentType ContentType, contentID int64, searchType SearchType, now time.Time) (SearchRegistry, error)
}

// RegistryOutcomeUpdate is the full set of fields ApplyOutcome may mutate
// after a dispatch outcome.
type RegistryOutcomeUpdate struct {
	State            RegistryState
	AttemptCount     int
	LastSearched     *time.Time
	NextEligible     *time.Time
	FailureCategory  FailureCategory
	SeasonPackFailed *bool
	BacklogTier      int
}

// QueueRepository is the read-side port over RequestQueue rows. Writes
// happen transactionally inside RegistryRepository (insert on Enqueue,
// delete on claim); this port only observes the queue for operators and
// metrics.
//
//go:generate mockery --name=QueueRepository --with-expecter --filename=queue_repository_mock.go
type QueueRepository interface {
	// DepthByConnector returns the number of queued rows per connector.
	DepthByConnector(ctx Context) (map[int64]int, error)
}

// HistoryRepository is the append-only persistence port for SearchHistory.
//
//go:generate mockery --name=HistoryRepository --with-expecter --filename=history_repository_mock.go
type HistoryRepository interface {
	// Append writes one history row. Never silently dropped: every
	// non-success dispatch outcome writes exactly one row.
	Append(ctx Context, row SearchHistory) error
}

// SyncRepository is the persistence port for per-connector sync/reconnect
// state.
//
//go:generate mockery --name=SyncRepository --with-expecter --filename=sync_repository_mock.go
type SyncRepository interface {
	// Get returns the SyncState for connectorID, creating a zero-value row
	// if absent.
	Get(ctx Context, connectorID int64) (SyncState, error)
	// Update persists the full SyncState row.
	Update(ctx Context, state SyncState) error
	// SelectReconnectDue returns connectors with reconnectPaused=false,
	// nextReconnectAt set and <= now.
	SelectReconnectDue(ctx Context, now time.Time) ([]SyncState, error)
}

// ConnectorRepository is the persistence port for Connector rows.
//
//go:generate mockery --name=ConnectorRepository --with-expecter --filename=connector_repository_mock.go
type ConnectorRepository interface {
	Get(ctx Context, id int64) (Connector, error)
	List(ctx Context) ([]Connector, error)
	// ListDispatchable returns enabled, non-queue-paused, non-offline
	// connectors eligible for a dispatch pass.
	ListDispatchable(ctx Context) ([]Connector, error)
	UpdateHealth(ctx Context, connectorID int64, health ConnectorHealth) error
	SetQueuePaused(ctx Context, connectorID int64, paused bool) error
}

// ContentRepository is the persistence port for the Episode/Movie/Season
// content mirror. Population of these tables is an external
// collaborator's responsibility; the core only reads from it.
//
//go:generate mockery --name=ContentRepository --with-expecter --filename=content_repository_mock.go
type ContentRepository interface {
	GetEpisode(ctx Context, id int64) (Episode, error)
	GetMovie(ctx Context, id int64) (Movie, error)
	GetSeason(ctx Context, seriesID int64, seasonNumber int) (Season, error)
	// ListSearchCandidates returns monitored episode/movie rows for
	// connectorID that currently meet gap or upgrade criteria:
	// monitored && !hasFile (gap), or monitored && hasFile &&
	// qualityCutoffNotMet (upgrade). Population of the underlying mirror
	// tables is an external collaborator's job; this only reads them.
	ListSearchCandidates(ctx Context, connectorID int64, limit int) ([]SearchCandidate, error)
}

// SearchCandidate is one content row eligible for a gap/upgrade search, as
// surfaced by the discovery/selector pass.
type SearchCandidate struct {
	ContentType     ContentType
	ContentID       int64
	SearchType      SearchType
	CurrentlyAiring bool
}

// Command is the tagged union of outbound upstream search commands: a
// closed variant set instead of per-kind polymorphism.
type Command struct {
	EpisodeSearch *EpisodeSearchCommand
	SeasonSearch  *SeasonSearchCommand
	MoviesSearch  *MoviesSearchCommand
}

// EpisodeSearchCommand requests a search for specific episodes of a series.
type EpisodeSearchCommand struct {
	SeriesID   int64
	EpisodeIDs []int64
}

// SeasonSearchCommand requests a season-pack search.
type SeasonSearchCommand struct {
	SeriesID     int64
	SeasonNumber int
}

// MoviesSearchCommand requests a search for specific movies.
type MoviesSearchCommand struct {
	MovieIDs []int64
}

// HealthCheckEntry is one row of the upstream /api/v3/health response.
type HealthCheckEntry struct {
	Source  string
	Type    string // ok, notice, warning, error
	Message string
}

// SystemStatus is the parsed response of /api/v3/system/status.
type SystemStatus struct {
	AppName string
	Version string
}

// PaginatedEnvelope is the generic wanted/missing/cutoff response shape.
type PaginatedEnvelope[T any] struct {
	Page          int
	PageSize      int
	SortKey       string
	SortDirection string
	TotalRecords  int
	Records       []T
}

// CommandResponse is the parsed POST /api/v3/command acknowledgement.
type CommandResponse struct {
	ID     int64
	Name   string
	Status string
}

// ConnectorClient is the per-kind connector abstraction. Three
// implementations are selected by a factory over ConnectorKind.
//
//go:generate mockery --name=ConnectorClient --with-expecter --filename=connector_client_mock.go
type ConnectorClient interface {
	Ping(ctx Context) (bool, error)
	SystemStatus(ctx Context) (SystemStatus, error)
	Health(ctx Context) ([]HealthCheckEntry, error)
	ListWantedMissing(ctx Context, page, pageSize int) (PaginatedEnvelope[Episode], error)
	ListWantedCutoff(ctx Context, page, pageSize int) (PaginatedEnvelope[Episode], error)
	SendSearch(ctx Context, cmd Command) (CommandResponse, error)
	GetCommand(ctx Context, id int64) (CommandResponse, error)
}

// CredentialProvider decrypts a connector's opaque API key using the
// process secret key. Encrypted storage itself is an external
// collaborator.
//
//go:generate mockery --name=CredentialProvider --with-expecter --filename=credential_provider_mock.go
type CredentialProvider interface {
	Decrypt(ctx Context, encryptedAPIKey string) (string, error)
}

// IndexerSnapshot is the advisory, cached indexer-health view consumed by
// the dispatcher. It is never allowed to block or fail a
// dispatch pass.
type IndexerSnapshot struct {
	AnyRateLimited bool
	FetchedAt      time.Time
}

// IndexerHealthProvider is the Prowlarr-advisory collaborator.
//
//go:generate mockery --name=IndexerHealthProvider --with-expecter --filename=indexer_health_provider_mock.go
type IndexerHealthProvider interface {
	Snapshot(ctx Context) (IndexerSnapshot, error)
}
