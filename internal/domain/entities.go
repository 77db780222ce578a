// Package domain defines core entities, ports, and domain-specific errors
// for the search control plane: connectors, throttle state, the search
// registry, and the history of dispatched commands.
package domain

import (
	"context"
	"time"
)

// ConnectorKind identifies which upstream API shape a connector speaks.
type ConnectorKind string

// Supported connector kinds.
const (
	KindA ConnectorKind = "kindA"
	KindB ConnectorKind = "kindB"
	KindC ConnectorKind = "kindC"
)

// ConnectorHealth is the operator-visible health enum for a connector.
type ConnectorHealth string

// Connector health states.
const (
	HealthHealthy   ConnectorHealth = "healthy"
	HealthDegraded  ConnectorHealth = "degraded"
	HealthUnhealthy ConnectorHealth = "unhealthy"
	HealthOffline   ConnectorHealth = "offline"
	HealthUnknown   ConnectorHealth = "unknown"
)

// Connector is a managed upstream media-automation service instance.
type Connector struct {
	ID               int64
	Kind             ConnectorKind
	Name             string
	BaseURL          string
	EncryptedAPIKey  string
	Enabled          bool
	Health           ConnectorHealth
	QueuePaused      bool
	ThrottleProfileID *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ThrottleProfile is a named preset of rate parameters. At most one row
// may have IsDefault = true.
type ThrottleProfile struct {
	ID                    int64
	Name                  string
	RequestsPerMinute     int
	DailyBudget           *int
	BatchSize             int
	BatchCooldownSeconds  int
	RateLimitPauseSeconds int
	IsDefault             bool
}

// PauseReason explains why a connector's ThrottleState is currently paused.
type PauseReason string

// Pause reasons.
const (
	PauseReasonRateLimit      PauseReason = "rate_limit"
	PauseReasonDailyExhausted PauseReason = "daily_budget_exhausted"
	PauseReasonManual         PauseReason = "manual"
)

// ThrottleState is the one-per-connector durable counter row the enforcer
// reads and mutates. It never lives purely in process memory.
type ThrottleState struct {
	ConnectorID        int64
	RequestsThisMinute int
	RequestsToday      int
	MinuteWindowStart  *time.Time
	DayWindowStart     *time.Time
	PausedUntil        *time.Time
	PauseReason        *PauseReason
	LastRequestAt      *time.Time
}

// Season carries the aggregate stats the batcher needs to decide between a
// season-pack command and episode-granular search.
type Season struct {
	ID                 int64
	SeriesID           int64
	SeasonNumber       int
	TotalEpisodes      int
	DownloadedEpisodes int
	NextAiring         *time.Time
}

// SeasonStatistics is the batcher's view of a Season, decoupled from
// storage so the decision function stays pure.
type SeasonStatistics struct {
	TotalEpisodes      int
	DownloadedEpisodes int
	NextAiring         *time.Time
}

// Stats projects a Season down to the fields determineBatchingDecision needs.
func (s Season) Stats() SeasonStatistics {
	return SeasonStatistics{
		TotalEpisodes:      s.TotalEpisodes,
		DownloadedEpisodes: s.DownloadedEpisodes,
		NextAiring:         s.NextAiring,
	}
}

// Episode mirrors an upstream episode row.
type Episode struct {
	ID                  int64
	ConnectorID         int64
	UpstreamID          int64
	SeriesID            int64
	SeasonNumber        int
	EpisodeNumber       int
	HasFile             bool
	QualityCutoffNotMet *bool
	Monitored           bool
}

// Movie mirrors an upstream movie row.
type Movie struct {
	ID                  int64
	ConnectorID         int64
	UpstreamID          int64
	HasFile             bool
	QualityCutoffNotMet *bool
	Monitored           bool
}

// Quality identifies the upstream quality definition a file was grabbed at
// (e.g. "Bluray-1080p" at resolution 1080).
type Quality struct {
	ID         int
	Name       string
	Source     string
	Resolution int
}

// QualityRevision distinguishes proper/repack re-releases of the same
// quality level from the original release.
type QualityRevision struct {
	Version  int
	Real     bool
	IsRepack bool
}

// QualityModel is the upstream API's quality envelope attached to a
// file. The content mirror keeps only the derived QualityCutoffNotMet flag; QualityModel is
// parsed where the full envelope is needed, e.g. for operator-visible
// history metadata.
type QualityModel struct {
	Quality  Quality
	Revision QualityRevision
}

// ContentType discriminates which mirror table a SearchRegistry row refers to.
type ContentType string

// Content types.
const (
	ContentEpisode ContentType = "episode"
	ContentMovie   ContentType = "movie"
)

// SearchType is the kind of search a registry row represents.
type SearchType string

// Search types.
const (
	SearchTypeGap     SearchType = "gap"
	SearchTypeUpgrade SearchType = "upgrade"
)

// RegistryState is the search-lifecycle state machine's current state.
type RegistryState string

// Registry states.
const (
	RegistryPending   RegistryState = "pending"
	RegistryQueued    RegistryState = "queued"
	RegistrySearching RegistryState = "searching"
	RegistryCooldown  RegistryState = "cooldown"
	RegistryExhausted RegistryState = "exhausted"
)

// FailureCategory records why a search attempt did not succeed, when
// applicable. It mirrors the upstream error taxonomy plus no_results.
type FailureCategory string

// Failure categories recorded on a registry row.
const (
	FailureNone           FailureCategory = ""
	FailureNoResults      FailureCategory = "no_results"
	FailureNetwork        FailureCategory = "network"
	FailureAuthentication FailureCategory = "authentication"
	FailureServer         FailureCategory = "server"
	FailureTimeout        FailureCategory = "timeout"
	FailureSSL            FailureCategory = "ssl"
	FailureRateLimit      FailureCategory = "rate_limit"
)

// SearchRegistry is one row per (connector, contentType, contentId): the
// durable state machine driving every search attempt.
type SearchRegistry struct {
	ID               int64
	ConnectorID      int64
	ContentType      ContentType
	ContentID        int64
	SearchType       SearchType
	State            RegistryState
	AttemptCount     int
	LastSearched     *time.Time
	NextEligible     *time.Time
	FailureCategory  FailureCategory
	SeasonPackFailed bool
	BacklogTier      int
	Priority         int
	FirstDiscovered  time.Time
}

// MaxBacklogTier is the highest cooldown tier a registry row can reach
// (tiers run 0..5).
const MaxBacklogTier = 5

// RequestQueue is the ephemeral-but-durable dispatch intent created when a
// registry row transitions pending -> queued.
type RequestQueue struct {
	ID           int64
	RegistryID   int64
	ConnectorID  int64
	Priority     int
	ScheduledAt  time.Time
	BatchID      string
}

// HistoryOutcome is the closed set of outcomes recorded in SearchHistory.
type HistoryOutcome string

// History outcomes.
const (
	OutcomeSuccess   HistoryOutcome = "success"
	OutcomeNoResults HistoryOutcome = "no_results"
	OutcomeError     HistoryOutcome = "error"
	OutcomeTimeout   HistoryOutcome = "timeout"
)

// SearchHistory is an append-only log entry of a dispatch outcome.
type SearchHistory struct {
	ID          int64
	RegistryID  int64
	ConnectorID int64
	Outcome     HistoryOutcome
	Category    FailureCategory
	Metadata    map[string]any
	CreatedAt   time.Time
}

// SyncState tracks per-connector sync health and reconnect progress.
type SyncState struct {
	ConnectorID         int64
	LastSync            *time.Time
	ConsecutiveFailures int
	ReconnectAttempts   int
	NextReconnectAt     *time.Time
	ReconnectStartedAt  *time.Time
	LastReconnectError  string
	ReconnectPaused     bool
}

// Context is a type alias to stdlib context.Context so domain-level port
// signatures don't need to import "context" by name in call sites.
type Context = context.Context
