package payment

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/httputil"
	"github.com/pablotheshekpeking/payroll-system/internal/paystack"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxWebhookBody = 1 << 20

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

// RegisterRoutes mounts the checkout verification students call after paying.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/payments/verify", h.VerifyPayment)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/payments", h.ListPayments)
	r.Get("/payments/{id}", h.GetPayment)
	r.Get("/employees/{id}/payments", h.ListEmployeePayments)
	r.Post("/payments", h.InitiatePayment)
	r.Post("/payments/{id}/reconcile", h.ReconcilePayment)
}

// RegisterWebhookRoutes mounts the unauthenticated provider callbacks.
func (h *Handler) RegisterWebhookRoutes(r chi.Router) {
	r.Post("/webhooks/paystack", h.Webhook)
	r.Post("/payments/webhook", h.Webhook)
}

func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid payment details")
		return
	}

	h.logger.InfoContext(r.Context(), "initiating payment",
		"employee_id", req.EmployeeID,
		"payroll_id", req.PayrollID,
		"dry_run", req.DryRun,
	)

	payment, err := h.service.Initiate(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	message := "Payment initiated successfully"
	if req.DryRun {
		message = "Dry run completed successfully"
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"payment": payment,
	})
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	var (
		payments []Payment
		err      error
	)

	if raw := r.URL.Query().Get("payrollId"); raw != "" {
		payrollID, convErr := strconv.Atoi(raw)
		if convErr != nil || payrollID <= 0 {
			httputil.RespondWithError(w, http.StatusBadRequest, "Invalid payroll ID")
			return
		}
		payments, err = h.service.ListByPayroll(r.Context(), payrollID)
	} else {
		payments, err = h.service.ListRecent(r.Context())
	}
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, payment)
}

func (h *Handler) ListEmployeePayments(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(r, "id")
	if !ok {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid employee ID")
		return
	}

	payments, err := h.service.ListByEmployee(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httputil.RespondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.VerifyCharge(r.Context(), r.URL.Query().Get("reference"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"payments": payments,
	})
}

func (h *Handler) ReconcilePayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, payment)
}

// Webhook reads the raw body so the signature is checked over the exact bytes sent.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err = h.service.HandleWebhook(r.Context(), body, r.Header.Get(paystack.SignatureHeader))
	switch {
	case err == nil:
		httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
	case errors.Is(err, ErrInvalidSignature):
		h.logger.WarnContext(r.Context(), "webhook rejected", "remote_addr", r.RemoteAddr)
		httputil.RespondWithError(w, http.StatusUnauthorized, "Invalid signature")
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "webhook processing failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Webhook processing failed")
	}
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, employee.ErrEmployeeNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Employee not found")
	case errors.Is(err, ErrBankAccountNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Employee bank details not found")
	case errors.Is(err, ErrPayrollNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Payroll not found")
	case errors.Is(err, ErrPaymentNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Payment not found")
	case errors.Is(err, ErrInsufficientBalance):
		httputil.RespondWithError(w, http.StatusBadRequest, "Insufficient balance")
	case errors.Is(err, ErrTransferUnavailable):
		httputil.RespondWithError(w, http.StatusBadRequest, "Payment transfers are not available. Please upgrade your Paystack account.")
	case errors.Is(err, ErrChargeNotSuccessful):
		httputil.RespondWithError(w, http.StatusBadRequest, "Payment verification failed")
	case errors.Is(err, ErrCurrencyMismatch):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrNotReconcilable),
		errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStaleStatus):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrBalanceUnavailable):
		h.logger.ErrorContext(r.Context(), "balance check failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Unable to verify available balance")
	case errors.Is(err, ErrTransferFailed):
		h.logger.ErrorContext(r.Context(), "transfer failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to process payment")
	case errors.Is(err, ErrProvider):
		h.logger.ErrorContext(r.Context(), "provider request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Failed to verify payment")
	default:
		h.logger.ErrorContext(r.Context(), "payment request failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
