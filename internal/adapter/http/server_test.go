package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/ceilometer-etl/internal/adapter/http"
	"github.com/couchcryptid/ceilometer-etl/internal/pipeline"
)

type mockReporter struct {
	err   error
	stats pipeline.Stats
}

func (m *mockReporter) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockReporter) Stats() pipeline.Stats { return m.stats }

func newTestServer(r *mockReporter) *httpadapter.Server {
	return httpadapter.NewServer(":0", r, slog.Default())
}

func get(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(&mockReporter{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(&mockReporter{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(&mockReporter{err: errors.New("first pass pending")}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusReportsTotals(t *testing.T) {
	srv := newTestServer(&mockReporter{stats: pipeline.Stats{
		Files:   3,
		Failed:  1,
		Records: 120,
		Dropped: 2,
	}})
	rec := get(srv, "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body pipeline.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Files)
	assert.Equal(t, 1, body.Failed)
	assert.Equal(t, 120, body.Records)
	assert.Equal(t, 2, body.Dropped)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(&mockReporter{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
