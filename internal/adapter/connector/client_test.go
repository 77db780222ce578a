package connector_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"comradarr/internal/adapter/connector"
	"comradarr/internal/domain"
)

func TestConnectorClient_SendSearch_EpisodeCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 42, "name": "EpisodeSearch", "status": "queued"}`))
	}))
	defer srv.Close()

	client := connector.NewConnectorClient(domain.KindA, connector.Config{
		BaseURL: srv.URL, APIKey: "secret", Timeout: 2 * time.Second,
	})

	resp, err := client.SendSearch(t.Context(), domain.Command{
		EpisodeSearch: &domain.EpisodeSearchCommand{SeriesID: 1, EpisodeIDs: []int64{2, 3}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), resp.ID)
	require.Equal(t, "queued", resp.Status)
}

func TestConnectorClient_SendSearch_AuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := connector.NewConnectorClient(domain.KindA, connector.Config{
		BaseURL: srv.URL, APIKey: "bad", Timeout: 2 * time.Second,
	})

	_, err := client.SendSearch(t.Context(), domain.Command{MoviesSearch: &domain.MoviesSearchCommand{MovieIDs: []int64{1}}})
	require.Error(t, err)
	upErr, ok := domain.AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, domain.CategoryAuthentication, upErr.Category)
	require.False(t, upErr.Retryable())
}

func TestConnectorClient_SendSearch_RateLimitSurfacesImmediately(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := connector.NewConnectorClient(domain.KindA, connector.Config{
		BaseURL: srv.URL, APIKey: "k", Timeout: 2 * time.Second,
		RetryBase: time.Millisecond, RetryMax: 5 * time.Millisecond,
	})

	// A 429 must come back after exactly one attempt so the dispatcher can
	// pause the connector; SendSearch never retries within a pass.
	_, err := client.SendSearch(t.Context(), domain.Command{MoviesSearch: &domain.MoviesSearchCommand{MovieIDs: []int64{1}}})
	require.Error(t, err)
	require.Equal(t, 1, attempts)

	upErr, ok := domain.AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, domain.CategoryRateLimit, upErr.Category)
	require.Equal(t, 120, upErr.RetryAfterSeconds)
}

func TestConnectorClient_SystemStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"appName": "KindA-App", "version": "1.2.3", "extraField": true}`))
	}))
	defer srv.Close()

	client := connector.NewConnectorClient(domain.KindA, connector.Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	status, err := client.SystemStatus(t.Context())
	require.NoError(t, err)
	require.Equal(t, "KindA-App", status.AppName)
	require.Equal(t, "1.2.3", status.Version)
}

func TestDetectKind_UnknownAppNameRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"appName": "SomeOtherApp"}`))
	}))
	defer srv.Close()

	_, err := connector.DetectKind(t.Context(), connector.New(connector.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}))
	require.ErrorIs(t, err, domain.ErrUnknownConnectorKind)
}

func TestConnectorClient_CircuitBreakerTripsAfterRepeatedServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := connector.NewConnectorClient(domain.KindA, connector.Config{
		BaseURL: srv.URL, APIKey: "k", Timeout: 2 * time.Second,
		CircuitBreakerMaxFailures:  2,
		CircuitBreakerResetTimeout: time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, err := client.Ping(t.Context())
		require.Error(t, err)
		upErr, ok := domain.AsUpstreamError(err)
		require.True(t, ok)
		require.Equal(t, domain.CategoryServer, upErr.Category)
	}
	require.Equal(t, int32(2), atomic.LoadInt32(&hits))

	// The breaker is now open: the next call fails fast without reaching
	// the server, surfaced as a retryable network error.
	_, err := client.Ping(t.Context())
	require.Error(t, err)
	upErr, ok := domain.AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, domain.CategoryNetwork, upErr.Category)
	require.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
