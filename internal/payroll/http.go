package payroll

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/httputil"
	"github.com/pablotheshekpeking/payroll-system/internal/payment"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

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

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/payroll", h.ListPayrolls)
	r.Get("/payroll/{id}", h.GetPayroll)
	r.Get("/payroll/{id}/export", h.ExportPayroll)
	r.Post("/payroll", h.CreatePayroll)
	r.Post("/payroll/{id}/process", h.ProcessPayroll)
}

func (h *Handler) CreatePayroll(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "creating payroll",
		"name", req.Name,
		"employees", len(req.EmployeeIDs),
		"process_immediately", req.ProcessImmediately,
	)

	payroll, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, payroll)
}

func (h *Handler) ListPayrolls(w http.ResponseWriter, r *http.Request) {
	payrolls, err := h.service.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if payrolls == nil {
		payrolls = []Payroll{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, payrolls)
}

func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid payroll ID")
		return
	}

	payroll, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, payroll)
}

func (h *Handler) ProcessPayroll(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid payroll ID")
		return
	}

	payroll, err := h.service.Process(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, payroll)
}

func (h *Handler) ExportPayroll(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid payroll ID")
		return
	}

	workbook, err := h.service.Export(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+workbook.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(workbook.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(workbook.Data)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrPayrollNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Payroll not found")
	case errors.Is(err, employee.ErrEmployeeNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyCompleted):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, payment.ErrInsufficientBalance):
		httputil.RespondWithError(w, http.StatusBadRequest, "Insufficient balance")
	case errors.Is(err, payment.ErrBalanceUnavailable):
		httputil.RespondWithError(w, http.StatusInternalServerError, "Unable to verify available balance")
	default:
		h.logger.ErrorContext(r.Context(), "payroll request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to process payroll request")
	}
}
