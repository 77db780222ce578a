package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrigins(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty defaults to wildcard", "", []string{"*"}},
		{"explicit wildcard", "*", []string{"*"}},
		{"single origin", "https://a.example.com", []string{"https://a.example.com"}},
		{"multiple origins trimmed", "https://a.example.com, https://b.example.com", []string{"https://a.example.com", "https://b.example.com"}},
		{"blank entries collapse to wildcard", "  ,  ,", []string{"*"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, parseOrigins(c.in))
		})
	}
}

func TestHealthzHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	healthzHandler()(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyzHandler_AllChecksPass(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	pass := func(*http.Request) error { return nil }

	readyzHandler(pass, nil, pass)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestReadyzHandler_FailingCheckReportsUnready(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	fail := func(*http.Request) error { return errNoPool }

	readyzHandler(nil, fail)(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_ready")
	assert.Contains(t, rec.Body.String(), errNoPool.Error())
}

func TestReadyzHandler_NilChecksAreSkipped(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	readyzHandler(nil, nil)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
