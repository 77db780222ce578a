package connector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"comradarr/internal/domain"
)

func TestParseQualityModel_RoundTrip(t *testing.T) {
	q := domain.QualityModel{
		Quality: domain.Quality{ID: 7, Name: "Bluray-1080p", Source: "bluray", Resolution: 1080},
		Revision: domain.QualityRevision{Version: 2, Real: true, IsRepack: false},
	}

	encoded, err := json.Marshal(SerializeQualityModel(q))
	require.NoError(t, err)

	var raw rawQualityModel
	require.NoError(t, json.Unmarshal(encoded, &raw))

	got, err := ParseQualityModel(raw)
	require.NoError(t, err)
	require.Equal(t, q, got)
}

func TestParseQualityModel_IgnoresUnknownFields(t *testing.T) {
	var raw rawQualityModel
	err := json.Unmarshal([]byte(`{
		"quality": {"id": 3, "name": "WEBDL-720p", "source": "webdl", "resolution": 720, "extraField": "x"},
		"revision": {"version": 1, "real": false, "isRepack": true},
		"customFormats": ["x264"]
	}`), &raw)
	require.NoError(t, err)

	got, err := ParseQualityModel(raw)
	require.NoError(t, err)
	require.Equal(t, "WEBDL-720p", got.Quality.Name)
	require.Equal(t, 720, got.Quality.Resolution)
	require.True(t, got.Revision.IsRepack)
}

func TestParseQualityModel_MissingIDIsSchemaMismatch(t *testing.T) {
	var raw rawQualityModel
	require.NoError(t, json.Unmarshal([]byte(`{"quality": {"name": "Unknown"}}`), &raw))

	_, err := ParseQualityModel(raw)
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestParseQualityModel_NeverPanicsOnEmptyInput(t *testing.T) {
	require.NotPanics(t, func() {
		_, _ = ParseQualityModel(rawQualityModel{})
	})
}
