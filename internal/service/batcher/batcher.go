// Package batcher implements the pure functions that group
// pending registry rows into connector-valid outbound command batches.
package batcher

import (
	"time"

	"comradarr/internal/domain"
)

// BatchingDecision is the result of determineBatchingDecision: which
// command shape to use and why. Reason strings are part of the
// externally-observed contract, emitted in history metadata.
type BatchingDecision struct {
	UseSeasonPack bool
	Reason        string
}

// Reason strings, in the order their predicates are evaluated; the first
// matching rule wins.
const (
	ReasonSeasonPackFallback       = "season_pack_fallback"
	ReasonSeasonCurrentlyAiring    = "season_currently_airing"
	ReasonNoMissingEpisodes        = "no_missing_episodes"
	ReasonBelowMissingThreshold    = "below_missing_threshold"
	ReasonSeasonFullyAiredHighMiss = "season_fully_aired_high_missing"
)

// BatchingConfig is the configured thresholds that gate season-pack
// eligibility.
type BatchingConfig struct {
	MinMissingCount   int
	MinMissingPercent int
}

// CalculateMissingCount returns max(0, total-downloaded).
func CalculateMissingCount(total, downloaded int) int {
	missing := total - downloaded
	if missing < 0 {
		return 0
	}
	return missing
}

// CalculateMissingPercent returns floor((total-downloaded)*100/total), or
// 0 when total is 0.
func CalculateMissingPercent(total, downloaded int) int {
	if total == 0 {
		return 0
	}
	missing := CalculateMissingCount(total, downloaded)
	return missing * 100 / total
}

// IsSeasonFullyAired reports whether a season has finished airing (no
// nextAiring date).
func IsSeasonFullyAired(nextAiring *time.Time) bool {
	return nextAiring == nil
}

// DetermineBatchingDecision evaluates the season-pack predicates in order and
// returns the first matching rule. seasonPackFailed reflects whether any
// included registry row already has SeasonPackFailed set.
func DetermineBatchingDecision(stats domain.SeasonStatistics, cfg BatchingConfig, seasonPackFailed bool) BatchingDecision {
	if seasonPackFailed {
		return BatchingDecision{UseSeasonPack: false, Reason: ReasonSeasonPackFallback}
	}
	if stats.NextAiring != nil {
		return BatchingDecision{UseSeasonPack: false, Reason: ReasonSeasonCurrentlyAiring}
	}

	missingCount := CalculateMissingCount(stats.TotalEpisodes, stats.DownloadedEpisodes)
	missingPercent := CalculateMissingPercent(stats.TotalEpisodes, stats.DownloadedEpisodes)

	if missingCount == 0 {
		return BatchingDecision{UseSeasonPack: false, Reason: ReasonNoMissingEpisodes}
	}
	if missingCount < cfg.MinMissingCount || missingPercent < cfg.MinMissingPercent {
		return BatchingDecision{UseSeasonPack: false, Reason: ReasonBelowMissingThreshold}
	}

	return BatchingDecision{UseSeasonPack: true, Reason: ReasonSeasonFullyAiredHighMiss}
}
