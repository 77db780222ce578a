package batcher

import "comradarr/internal/domain"

// effectiveBatchSize is the smaller of the global per-kind cap and the
// connector's profile batch size.
func effectiveBatchSize(maxPerSearch, profileBatchSize int) int {
	if profileBatchSize > 0 && profileBatchSize < maxPerSearch {
		return profileBatchSize
	}
	if maxPerSearch > 0 {
		return maxPerSearch
	}
	return profileBatchSize
}

// chunkInt64 splits ids into batches of at most size, preserving order and
// total count.
func chunkInt64(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = 1
	}
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// BuildEpisodeCommands splits a single series' missing episode ids into
// EpisodeSearch commands, respecting both the global per-search cap and
// the connector's profile batch size. No command mixes series
// since it only ever receives one seriesId.
func BuildEpisodeCommands(seriesID int64, episodeIDs []int64, maxEpisodesPerSearch, profileBatchSize int) []domain.Command {
	size := effectiveBatchSize(maxEpisodesPerSearch, profileBatchSize)
	var commands []domain.Command
	for _, batch := range chunkInt64(episodeIDs, size) {
		commands = append(commands, domain.Command{
			EpisodeSearch: &domain.EpisodeSearchCommand{SeriesID: seriesID, EpisodeIDs: batch},
		})
	}
	return commands
}

// BuildMovieCommands splits movie ids into MoviesSearch commands,
// respecting both the global per-search cap and the connector's profile
// batch size.
func BuildMovieCommands(movieIDs []int64, maxMoviesPerSearch, profileBatchSize int) []domain.Command {
	size := effectiveBatchSize(maxMoviesPerSearch, profileBatchSize)
	var commands []domain.Command
	for _, batch := range chunkInt64(movieIDs, size) {
		commands = append(commands, domain.Command{MoviesSearch: &domain.MoviesSearchCommand{MovieIDs: batch}})
	}
	return commands
}

// BuildSeasonPackCommand returns the single season-pack command for a
// series/season pair.
func BuildSeasonPackCommand(seriesID int64, seasonNumber int) domain.Command {
	return domain.Command{SeasonSearch: &domain.SeasonSearchCommand{SeriesID: seriesID, SeasonNumber: seasonNumber}}
}
