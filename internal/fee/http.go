package fee

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pablotheshekpeking/payroll-system/internal/auth"
	"github.com/pablotheshekpeking/payroll-system/internal/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/fees", h.ListFees)
	r.Get("/students/{id}/fees", h.ListStudentFees)
	r.Get("/me/fees", h.MyFees)
	r.Post("/me/fees/checkout", h.Checkout)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/fees", h.CreateFee)
	r.Post("/students/{id}/fees", h.AssignFee)
}

func (h *Handler) ListFees(w http.ResponseWriter, r *http.Request) {
	fees, err := h.service.ListFees(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if fees == nil {
		fees = []Fee{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, fees)
}

func (h *Handler) CreateFee(w http.ResponseWriter, r *http.Request) {
	var fee Fee
	if err := json.NewDecoder(r.Body).Decode(&fee); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&fee); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	created, err := h.service.CreateFee(r.Context(), &fee)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) AssignFee(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	studentFee, err := h.service.Assign(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, studentFee)
}

// ListStudentFees lets admins read any student; students only their own record.
func (h *Handler) ListStudentFees(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Role == auth.RoleStudent {
		payer, err := h.service.PayerForUser(r.Context(), claims.UserID)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		if payer.StudentID != id {
			httputil.RespondWithError(w, http.StatusForbidden, "Forbidden")
			return
		}
	}

	fees, err := h.service.ListStudentFees(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if fees == nil {
		fees = []StudentFee{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, fees)
}

func (h *Handler) MyFees(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	items, err := h.service.Statement(r.Context(), claims.UserID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, items)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	resp, err := h.service.Checkout(r.Context(), claims.UserID, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrStudentNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Student not found")
	case errors.Is(err, ErrFeeNotFound), errors.Is(err, ErrStudentFeeNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Fee not found")
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrFeeNotAssigned):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCheckoutFailed):
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to initialize payment")
	default:
		h.logger.ErrorContext(r.Context(), "fee request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
