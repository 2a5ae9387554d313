package bank

import (
	"log/slog"
	"net/http"

	"github.com/pablotheshekpeking/payroll-system/internal/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/banks", h.ListBanks)
	r.Get("/balance", h.GetBalance)
}

func (h *Handler) ListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.service.ListBanks(r.Context())
	if err != nil {
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch banks")
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, banks)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context())
	if err != nil {
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch balance")
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, balance)
}
