package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"comradarr/internal/domain"
)

// ContentRepo is a read-only mirror of upstream Episode/Movie/Season
// rows. Population of these tables is an external collaborator's
// responsibility; this repo only reads.
type ContentRepo struct{ Pool PgxPool }

// NewContentRepo constructs a ContentRepo with the given pool.
func NewContentRepo(p PgxPool) *ContentRepo { return &ContentRepo{Pool: p} }

func (r *ContentRepo) span(ctx domain.Context, op, table string) (domain.Context, func()) {
	tracer := otel.Tracer("repo.content")
	ctx, span := tracer.Start(ctx, "content."+op)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", table),
	)
	return ctx, func() { span.End() }
}

// GetEpisode returns an episode by id.
func (r *ContentRepo) GetEpisode(ctx domain.Context, id int64) (domain.Episode, error) {
	ctx, end := r.span(ctx, "GetEpisode", "episodes")
	defer end()

	const q = `
		SELECT id, connector_id, upstream_id, series_id, season_number, episode_number,
		       has_file, quality_cutoff_not_met, monitored
		FROM episodes WHERE id = $1
	`
	var e domain.Episode
	err := r.Pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.ConnectorID, &e.UpstreamID, &e.SeriesID,
		&e.SeasonNumber, &e.EpisodeNumber, &e.HasFile, &e.QualityCutoffNotMet, &e.Monitored)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Episode{}, fmt.Errorf("op=content.getEpisode: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Episode{}, fmt.Errorf("op=content.getEpisode: %w", err)
	}
	return e, nil
}

// GetMovie returns a movie by id.
func (r *ContentRepo) GetMovie(ctx domain.Context, id int64) (domain.Movie, error) {
	ctx, end := r.span(ctx, "GetMovie", "movies")
	defer end()

	const q = `
		SELECT id, connector_id, upstream_id, has_file, quality_cutoff_not_met, monitored
		FROM movies WHERE id = $1
	`
	var m domain.Movie
	err := r.Pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.ConnectorID, &m.UpstreamID, &m.HasFile,
		&m.QualityCutoffNotMet, &m.Monitored)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Movie{}, fmt.Errorf("op=content.getMovie: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Movie{}, fmt.Errorf("op=content.getMovie: %w", err)
	}
	return m, nil
}

// GetSeason returns a season's aggregate stats by (seriesID, seasonNumber).
func (r *ContentRepo) GetSeason(ctx domain.Context, seriesID int64, seasonNumber int) (domain.Season, error) {
	ctx, end := r.span(ctx, "GetSeason", "seasons")
	defer end()

	const q = `
		SELECT id, series_id, season_number, total_episodes, downloaded_episodes, next_airing
		FROM seasons WHERE series_id = $1 AND season_number = $2
	`
	var s domain.Season
	err := r.Pool.QueryRow(ctx, q, seriesID, seasonNumber).Scan(&s.ID, &s.SeriesID, &s.SeasonNumber,
		&s.TotalEpisodes, &s.DownloadedEpisodes, &s.NextAiring)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Season{}, fmt.Errorf("op=content.getSeason: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Season{}, fmt.Errorf("op=content.getSeason: %w", err)
	}
	return s, nil
}

// ListSearchCandidates returns episode and movie rows for connectorID that
// currently meet gap or upgrade criteria. Episodes are
// joined against their season to surface whether the season is currently
// airing, for the priority scorer's airing bonus.
func (r *ContentRepo) ListSearchCandidates(ctx domain.Context, connectorID int64, limit int) ([]domain.SearchCandidate, error) {
	ctx, end := r.span(ctx, "ListSearchCandidates", "episodes+movies")
	defer end()

	const episodeQ = `
		SELECT e.id,
		       CASE WHEN e.has_file THEN 'upgrade' ELSE 'gap' END AS search_type,
		       s.next_airing IS NOT NULL AS currently_airing
		FROM episodes e
		LEFT JOIN seasons s ON s.series_id = e.series_id AND s.season_number = e.season_number
		WHERE e.connector_id = $1
		  AND e.monitored
		  AND (NOT e.has_file OR COALESCE(e.quality_cutoff_not_met, false))
		ORDER BY e.id
		LIMIT $2
	`
	rows, err := r.Pool.Query(ctx, episodeQ, connectorID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=content.listSearchCandidates.episodes: %w", err)
	}
	var candidates []domain.SearchCandidate
	for rows.Next() {
		var c domain.SearchCandidate
		var searchType string
		if err := rows.Scan(&c.ContentID, &searchType, &c.CurrentlyAiring); err != nil {
			rows.Close()
			return nil, fmt.Errorf("op=content.listSearchCandidates.episodes.scan: %w", err)
		}
		c.ContentType = domain.ContentEpisode
		c.SearchType = domain.SearchType(searchType)
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=content.listSearchCandidates.episodes.rows: %w", err)
	}

	remaining := limit - len(candidates)
	if remaining <= 0 {
		return candidates, nil
	}

	const movieQ = `
		SELECT id, CASE WHEN has_file THEN 'upgrade' ELSE 'gap' END AS search_type
		FROM movies
		WHERE connector_id = $1
		  AND monitored
		  AND (NOT has_file OR COALESCE(quality_cutoff_not_met, false))
		ORDER BY id
		LIMIT $2
	`
	movieRows, err := r.Pool.Query(ctx, movieQ, connectorID, remaining)
	if err != nil {
		return nil, fmt.Errorf("op=content.listSearchCandidates.movies: %w", err)
	}
	defer movieRows.Close()
	for movieRows.Next() {
		var c domain.SearchCandidate
		var searchType string
		if err := movieRows.Scan(&c.ContentID, &searchType); err != nil {
			return nil, fmt.Errorf("op=content.listSearchCandidates.movies.scan: %w", err)
		}
		c.ContentType = domain.ContentMovie
		c.SearchType = domain.SearchType(searchType)
		candidates = append(candidates, c)
	}
	if err := movieRows.Err(); err != nil {
		return nil, fmt.Errorf("op=content.listSearchCandidates.movies.rows: %w", err)
	}

	return candidates, nil
}
