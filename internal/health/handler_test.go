package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pablotheshekpeking/payroll-system/internal/health"
	"github.com/pablotheshekpeking/payroll-system/internal/logger"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, checks map[string]health.Check, path string) (int, health.Response) {
	t.Helper()

	router := chi.NewRouter()
	health.NewHandler(checks, metrics.NewMock(), logger.Discard()).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var resp health.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestHealth(t *testing.T) {
	code, resp := serve(t, nil, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
}

func TestReady(t *testing.T) {
	up := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	t.Run("AllUp", func(t *testing.T) {
		code, resp := serve(t, map[string]health.Check{"postgres": up, "nats": up}, "/ready")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, map[string]string{"postgres": "up", "nats": "up"}, resp.Dependencies)
	})

	t.Run("OneDown", func(t *testing.T) {
		code, resp := serve(t, map[string]health.Check{"postgres": up, "redis": down}, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not ready", resp.Status)
		assert.Equal(t, "down", resp.Dependencies["redis"])
	})
}
