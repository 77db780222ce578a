package connector

import (
	"fmt"
	"strings"

	"comradarr/internal/domain"
)

// rawSystemStatus is the on-the-wire shape of GET /api/v3/system/status.
// Unknown fields are ignored by json.Decode by default.
type rawSystemStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}

// ParseSystemStatus never throws; malformed input yields a structured error.
func ParseSystemStatus(raw map[string]any) (domain.SystemStatus, error) {
	appName, _ := raw["appName"].(string)
	version, _ := raw["version"].(string)
	if appName == "" {
		return domain.SystemStatus{}, fmt.Errorf("%w: missing appName", domain.ErrSchemaMismatch)
	}
	return domain.SystemStatus{AppName: appName, Version: version}, nil
}

// rawHealthEntry is one row of GET /api/v3/health.
type rawHealthEntry struct {
	Source  string `json:"source"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ParseHealth validates each entry's Type against the closed enum
// {ok, notice, warning, error}, never throwing on malformed input.
func ParseHealth(raw []rawHealthEntry) ([]domain.HealthCheckEntry, int) {
	var (
		out     []domain.HealthCheckEntry
		skipped int
	)
	for _, r := range raw {
		switch strings.ToLower(r.Type) {
		case "ok", "notice", "warning", "error":
			out = append(out, domain.HealthCheckEntry{Source: r.Source, Type: strings.ToLower(r.Type), Message: r.Message})
		default:
			skipped++
		}
	}
	return out, skipped
}

// rawCommandResponse is the on-the-wire shape of the command acknowledgement
// and of GET /api/v3/command/{id}.
type rawCommandResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ParseCommandResponse never throws; a missing id is a schema mismatch.
func ParseCommandResponse(raw rawCommandResponse) (domain.CommandResponse, error) {
	if raw.ID == 0 {
		return domain.CommandResponse{}, fmt.Errorf("%w: missing command id", domain.ErrSchemaMismatch)
	}
	return domain.CommandResponse{ID: raw.ID, Name: raw.Name, Status: raw.Status}, nil
}

// commandBody maps the domain.Command tagged union onto the upstream
// POST /api/v3/command body shape, built from the tagged command variant.
func commandBody(cmd domain.Command) (map[string]any, error) {
	switch {
	case cmd.EpisodeSearch != nil:
		return map[string]any{
			"name":       "EpisodeSearch",
			"seriesId":   cmd.EpisodeSearch.SeriesID,
			"episodeIds": cmd.EpisodeSearch.EpisodeIDs,
		}, nil
	case cmd.SeasonSearch != nil:
		return map[string]any{
			"name":         "SeasonSearch",
			"seriesId":     cmd.SeasonSearch.SeriesID,
			"seasonNumber": cmd.SeasonSearch.SeasonNumber,
		}, nil
	case cmd.MoviesSearch != nil:
		return map[string]any{
			"name":     "MoviesSearch",
			"movieIds": cmd.MoviesSearch.MovieIDs,
		}, nil
	default:
		return nil, fmt.Errorf("%w: empty command union", domain.ErrInvalidArgument)
	}
}

// rawEpisode is the on-the-wire shape of an episode record. Both the
// boolean and nullable-boolean shapes of qualityCutoffNotMet are tolerated
// and normalised to *bool; upstream emits both shapes.
type rawEpisode struct {
	ID                  int64 `json:"id"`
	SeriesID            int64 `json:"seriesId"`
	SeasonNumber        int   `json:"seasonNumber"`
	EpisodeNumber       int   `json:"episodeNumber"`
	HasFile             bool  `json:"hasFile"`
	Monitored           bool  `json:"monitored"`
	QualityCutoffNotMet *bool `json:"qualityCutoffNotMet"`
}

func (r rawEpisode) toDomain(connectorID int64) domain.Episode {
	return domain.Episode{
		ConnectorID:         connectorID,
		UpstreamID:          r.ID,
		SeriesID:            r.SeriesID,
		SeasonNumber:        r.SeasonNumber,
		EpisodeNumber:       r.EpisodeNumber,
		HasFile:             r.HasFile,
		Monitored:           r.Monitored,
		QualityCutoffNotMet: r.QualityCutoffNotMet,
	}
}

func validateRawEpisode(r rawEpisode) error {
	if r.ID == 0 || r.SeriesID == 0 {
		return fmt.Errorf("%w: episode missing id/seriesId", domain.ErrSchemaMismatch)
	}
	return nil
}

// rawQualityModel is the on-the-wire shape of the quality envelope attached
// to episode/movie file records. Unknown fields are ignored by
// json.Decode; quality.id/name are required, everything
// else defaults to its zero value rather than failing.
type rawQualityModel struct {
	Quality struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		Source     string `json:"source"`
		Resolution int    `json:"resolution"`
	} `json:"quality"`
	Revision struct {
		Version  int  `json:"version"`
		Real     bool `json:"real"`
		IsRepack bool `json:"isRepack"`
	} `json:"revision"`
}

// ParseQualityModel never throws; a missing quality.id/name is a schema
// mismatch.
func ParseQualityModel(raw rawQualityModel) (domain.QualityModel, error) {
	if raw.Quality.ID == 0 || raw.Quality.Name == "" {
		return domain.QualityModel{}, fmt.Errorf("%w: quality missing id/name", domain.ErrSchemaMismatch)
	}
	return domain.QualityModel{
		Quality: domain.Quality{
			ID:         raw.Quality.ID,
			Name:       raw.Quality.Name,
			Source:     raw.Quality.Source,
			Resolution: raw.Quality.Resolution,
		},
		Revision: domain.QualityRevision{
			Version:  raw.Revision.Version,
			Real:     raw.Revision.Real,
			IsRepack: raw.Revision.IsRepack,
		},
	}, nil
}

// SerializeQualityModel is the inverse of ParseQualityModel (via
// rawQualityModel), used to round-trip a QualityModel for storage in
// history metadata.
func SerializeQualityModel(q domain.QualityModel) rawQualityModel {
	var raw rawQualityModel
	raw.Quality.ID = q.Quality.ID
	raw.Quality.Name = q.Quality.Name
	raw.Quality.Source = q.Quality.Source
	raw.Quality.Resolution = q.Quality.Resolution
	raw.Revision.Version = q.Revision.Version
	raw.Revision.Real = q.Revision.Real
	raw.Revision.IsRepack = q.Revision.IsRepack
	return raw
}
