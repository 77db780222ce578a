// Package dispatcher orchestrates a single
// connector's dispatch pass — selecting eligible registry rows, batching
// them, and executing the resulting commands against the throttle
// enforcer and connector client.
package dispatcher

import (
	"fmt"
	"sort"

	"comradarr/internal/domain"
	"comradarr/internal/service/batcher"
)

// PreparedBatch is one outbound command plus the registry rows it covers,
// so outcomes can be fanned back out after the call returns.
type PreparedBatch struct {
	Command            domain.Command
	RegistryIDs        []int64
	IsSeasonPackSearch bool
	// Reason carries the batching decision's reason string for episode
	// batches; it is emitted in history metadata.
	Reason string
}

// BatchingLimits are the configured caps batching must respect.
type BatchingLimits struct {
	MaxEpisodesPerSearch int
	MaxMoviesPerSearch   int
	MinMissingCount      int
	MinMissingPercent    int
}

// seasonKey groups episode registry rows by the series+season they belong to.
type seasonKey struct {
	seriesID     int64
	seasonNumber int
}

// Prepare batches a connector's eligible registry rows into outbound
// commands. episodesByRegistry/moviesByRegistry/seasonsByKey are
// pre-fetched content lookups (the content mirror tables) so this
// function stays pure and testable without a live repository.
func Prepare(
	rows []domain.SearchRegistry,
	episodesByRegistry map[int64]domain.Episode,
	moviesByRegistry map[int64]domain.Movie,
	seasonsByKey map[seasonKey]domain.Season,
	profileBatchSize int,
	limits BatchingLimits,
) ([]PreparedBatch, error) {
	var movieIDs []int64
	movieRegistryByMovie := map[int64][]int64{}

	type seasonGroup struct {
		key              seasonKey
		registryIDs      []int64
		episodeIDs       []int64
		seasonPackFailed bool
	}
	seasonGroups := map[seasonKey]*seasonGroup{}
	var seasonOrder []seasonKey

	for _, row := range rows {
		switch row.ContentType {
		case domain.ContentMovie:
			m, ok := moviesByRegistry[row.ID]
			if !ok {
				return nil, fmt.Errorf("op=dispatcher.prepare: movie content missing for registry id %d", row.ID)
			}
			movieIDs = append(movieIDs, m.UpstreamID)
			movieRegistryByMovie[m.UpstreamID] = append(movieRegistryByMovie[m.UpstreamID], row.ID)
		case domain.ContentEpisode:
			ep, ok := episodesByRegistry[row.ID]
			if !ok {
				return nil, fmt.Errorf("op=dispatcher.prepare: episode content missing for registry id %d", row.ID)
			}
			key := seasonKey{seriesID: ep.SeriesID, seasonNumber: ep.SeasonNumber}
			g, ok := seasonGroups[key]
			if !ok {
				g = &seasonGroup{key: key}
				seasonGroups[key] = g
				seasonOrder = append(seasonOrder, key)
			}
			g.registryIDs = append(g.registryIDs, row.ID)
			g.episodeIDs = append(g.episodeIDs, ep.UpstreamID)
			if row.SeasonPackFailed {
				g.seasonPackFailed = true
			}
		}
	}

	var batches []PreparedBatch

	for _, key := range seasonOrder {
		g := seasonGroups[key]
		season := seasonsByKey[key]
		cfg := batcher.BatchingConfig{MinMissingCount: limits.MinMissingCount, MinMissingPercent: limits.MinMissingPercent}
		decision := batcher.DetermineBatchingDecision(season.Stats(), cfg, g.seasonPackFailed)

		if decision.UseSeasonPack {
			batches = append(batches, PreparedBatch{
				Command:            batcher.BuildSeasonPackCommand(key.seriesID, key.seasonNumber),
				RegistryIDs:        append([]int64{}, g.registryIDs...),
				IsSeasonPackSearch: true,
				Reason:             decision.Reason,
			})
			continue
		}

		commands := batcher.BuildEpisodeCommands(key.seriesID, g.episodeIDs, limits.MaxEpisodesPerSearch, profileBatchSize)
		episodeToRegistry := map[int64]int64{}
		for i, eid := range g.episodeIDs {
			episodeToRegistry[eid] = g.registryIDs[i]
		}
		for _, cmd := range commands {
			var ids []int64
			for _, eid := range cmd.EpisodeSearch.EpisodeIDs {
				ids = append(ids, episodeToRegistry[eid])
			}
			batches = append(batches, PreparedBatch{Command: cmd, RegistryIDs: ids, Reason: decision.Reason})
		}
	}

	if len(movieIDs) > 0 {
		sort.Slice(movieIDs, func(i, j int) bool { return movieIDs[i] < movieIDs[j] })
		commands := batcher.BuildMovieCommands(movieIDs, limits.MaxMoviesPerSearch, profileBatchSize)
		for _, cmd := range commands {
			var ids []int64
			for _, mid := range cmd.MoviesSearch.MovieIDs {
				regIDs := movieRegistryByMovie[mid]
				ids = append(ids, regIDs...)
			}
			batches = append(batches, PreparedBatch{Command: cmd, RegistryIDs: ids})
		}
	}

	return batches, nil
}
