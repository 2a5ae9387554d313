package student

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

// RegisterPublicRoutes mounts the enrollment application form.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/enrollment/apply", h.Apply)
}

// RegisterRoutes mounts what a student may call; GetStudent checks ownership.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/students/{id}", h.GetStudent)
	r.Get("/me/documents", h.MyDocuments)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/students", h.ListStudents)
	r.Post("/students", h.CreateStudent)
	r.Patch("/students/{id}", h.UpdateStudent)
	r.Delete("/students/{id}", h.DeleteStudent)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := ListParams{
		Search:  query.Get("search"),
		Grade:   query.Get("grade"),
		HasDebt: query.Get("hasDebt") == "true",
	}
	params.Page, _ = strconv.Atoi(query.Get("page"))
	params.Limit, _ = strconv.Atoi(query.Get("limit"))

	result, err := h.service.List(r.Context(), params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, result)
}

// GetStudent serves any student to admins; students see only their own record.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Role == auth.RoleStudent && claims.UserID != detail.UserID {
		httputil.RespondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, detail)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	detail, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, detail)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	var approverID int
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		approverID = claims.UserID
	}

	detail, err := h.service.Update(r.Context(), id, req, approverID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, detail)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	resp, err := h.service.Apply(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) MyDocuments(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	documents, err := h.service.MyDocuments(r.Context(), claims.UserID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, documents)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrStudentNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Student not found")
	case errors.Is(err, ErrEnrollmentNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmailExists):
		httputil.RespondWithError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, ErrInvalidGrade), errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "student request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
