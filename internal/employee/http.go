package employee

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

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

// RegisterAdminRoutes mounts every employee endpoint. Salaries and bank
// details are staff data, so callers wrap all of them in an admin check.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/employees", h.ListEmployees)
	r.Get("/employees/{id}", h.GetEmployee)
	r.Get("/employees/{id}/bank-account", h.GetBankAccount)
	r.Post("/employees", h.CreateEmployee)
	r.Put("/employees/{id}", h.UpdateEmployee)
	r.Delete("/employees/{id}", h.DeleteEmployee)
	r.Post("/employees/{id}/bank-account", h.AddBankAccount)
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, employees)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid employee ID")
		return
	}

	employee, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, employee)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var employee Employee
	if err := json.NewDecoder(r.Body).Decode(&employee); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&employee); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "creating employee", "email", employee.Email)
	created, err := h.service.Create(r.Context(), &employee)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid employee ID")
		return
	}

	var employee Employee
	if err := json.NewDecoder(r.Body).Decode(&employee); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&employee); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	employee.ID = id

	updated, err := h.service.Update(r.Context(), &employee)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid employee ID")
		return
	}

	h.logger.InfoContext(r.Context(), "deleting employee", "employee_id", id)
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Employee deleted successfully"})
}

func (h *Handler) GetBankAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid employee ID")
		return
	}

	account, err := h.service.GetBankAccount(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	// null when the employee has no account yet
	httputil.RespondWithJSON(w, http.StatusOK, account)
}

func (h *Handler) AddBankAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid employee ID")
		return
	}

	var req CreateBankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	account, err := h.service.AddBankAccount(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, account)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrEmployeeNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Employee not found")
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAccountVerification):
		httputil.RespondWithError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrAccountVerification.Error()+": "))
	case errors.Is(err, ErrBankAccountExists), errors.Is(err, ErrEmailExists), errors.Is(err, ErrEmployeeHasPayments):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "employee request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
