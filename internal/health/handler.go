package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/httputil"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/go-chi/chi/v5"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Handler struct {
	checks  map[string]Check
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHandler(checks map[string]Check, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		checks:  checks,
		timeout: 2 * time.Second,
		metrics: m,
		logger:  logger,
	}
}

// Dependencies returns the checked dependency names in order.
func (h *Handler) Dependencies() []string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
}

type Response struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, Response{Status: "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	deps, ready := h.Check(r.Context())
	if !ready {
		httputil.RespondWithJSON(w, http.StatusServiceUnavailable, Response{Status: "not ready", Dependencies: deps})
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, Response{Status: "ready", Dependencies: deps})
}

// Check runs every dependency check and records its outcome.
func (h *Handler) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	ready := true
	deps := make(map[string]string, len(h.checks))
	for _, name := range h.Dependencies() {
		start := time.Now()
		err := h.checks[name](ctx)
		h.metrics.Health.RecordDependencyCheck(ctx, name, time.Since(start), err)

		if err != nil {
			ready = false
			deps[name] = "down"
			h.logger.WarnContext(ctx, "dependency check failed", "dependency", name, "error", err)
			continue
		}
		deps[name] = "up"
	}
	return deps, ready
}
