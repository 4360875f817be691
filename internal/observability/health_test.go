package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/annoscan/internal/observability"
)

func TestHealthHandler_ReturnsOK(t *testing.T) {
	t.Parallel()

	handler := observability.HealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string

	err := json.Unmarshal(rec.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthHandler_ContentTypeJSON(t *testing.T) {
	t.Parallel()

	handler := observability.HealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func readyCheck(name string, err error) observability.ReadyCheck {
	return observability.ReadyCheck{Name: name, Check: func(context.Context) error { return err }}
}

func serveReady(t *testing.T, checks ...observability.ReadyCheck) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	rec := httptest.NewRecorder()

	observability.ReadyHandler(checks...).ServeHTTP(rec, req)

	var body map[string]any

	err := json.Unmarshal(rec.Body.Bytes(), &body)
	require.NoError(t, err)

	return rec.Code, body
}

func TestReadyHandler_AllChecksPass(t *testing.T) {
	t.Parallel()

	code, body := serveReady(t, readyCheck("index", nil), readyCheck("exporter", nil))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"index": "ok", "exporter": "ok"}, body["checks"])
}

func TestReadyHandler_NoChecks(t *testing.T) {
	t.Parallel()

	code, body := serveReady(t)

	assert.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "checks")
}

var errTestIndexMissing = errors.New("index not loaded")

func TestReadyHandler_CheckFails(t *testing.T) {
	t.Parallel()

	code, body := serveReady(t, readyCheck("exporter", nil), readyCheck("index", errTestIndexMissing))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, map[string]any{"index": "index not loaded", "exporter": "ok"}, body["checks"])
}
