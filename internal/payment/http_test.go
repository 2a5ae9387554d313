package payment

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pablotheshekpeking/payroll-system/internal/logger"
	"github.com/pablotheshekpeking/payroll-system/internal/paystack"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(f *fixture) chi.Router {
	h := NewHandler(f.svc, logger.Discard())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	h.RegisterAdminRoutes(r)
	h.RegisterWebhookRoutes(r)
	return r
}

func TestPaymentHandler(t *testing.T) {
	send := func(r chi.Router, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range header {
			req.Header[k] = v
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	errorOf := func(t *testing.T, w *httptest.ResponseRecorder) string {
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		return body["error"]
	}

	t.Run("Initiate_Success", func(t *testing.T) {
		f := newFixture(t)
		w := send(newRouter(f), http.MethodPost, "/payments",
			[]byte(`{"employeeId":1,"payrollId":1,"amount":2500,"description":"Bonus"}`), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool    `json:"success"`
			Message string  `json:"message"`
			Payment Payment `json:"payment"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "Payment initiated successfully", resp.Message)
		assert.Equal(t, StatusProcessing, resp.Payment.Status)
	})

	t.Run("Initiate_MissingFields", func(t *testing.T) {
		f := newFixture(t)
		w := send(newRouter(f), http.MethodPost, "/payments", []byte(`{"amount":2500}`), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid payment details", errorOf(t, w))
	})

	t.Run("Initiate_InsufficientBalance", func(t *testing.T) {
		f := newFixture(t)
		f.provider.balance = 0
		w := send(newRouter(f), http.MethodPost, "/payments",
			[]byte(`{"employeeId":1,"payrollId":1,"amount":2500}`), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Insufficient balance", errorOf(t, w))
	})

	t.Run("Initiate_TransferUnavailable", func(t *testing.T) {
		f := newFixture(t)
		f.provider.transferErr = &paystack.Error{StatusCode: 400, Code: paystack.CodeTransferUnavailable, Message: "starter business"}
		w := send(newRouter(f), http.MethodPost, "/payments",
			[]byte(`{"employeeId":1,"payrollId":1,"amount":2500}`), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Initiate_UnknownEmployee", func(t *testing.T) {
		f := newFixture(t)
		w := send(newRouter(f), http.MethodPost, "/payments",
			[]byte(`{"employeeId":7,"payrollId":1,"amount":2500}`), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Employee not found", errorOf(t, w))
	})

	t.Run("List_InvalidPayrollID", func(t *testing.T) {
		f := newFixture(t)
		w := send(newRouter(f), http.MethodGet, "/payments?payrollId=abc", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("List_ByPayroll", func(t *testing.T) {
		f := newFixture(t)
		pendingSalary(f, "p-1")
		w := send(newRouter(f), http.MethodGet, "/payments?payrollId=1", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var payments []Payment
		require.NoError(t, json.NewDecoder(w.Body).Decode(&payments))
		assert.Len(t, payments, 1)
	})

	t.Run("Verify_MissingReference", func(t *testing.T) {
		f := newFixture(t)
		w := send(newRouter(f), http.MethodGet, "/payments/verify", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Webhook_InvalidSignature", func(t *testing.T) {
		f := newFixture(t)
		body := []byte(`{"event":"transfer.success","data":{"reference":"x"}}`)
		header := http.Header{}
		header.Set(paystack.SignatureHeader, "bogus")

		w := send(newRouter(f), http.MethodPost, "/webhooks/paystack", body, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid signature", errorOf(t, w))
	})

	t.Run("Webhook_Alias", func(t *testing.T) {
		f := newFixture(t)
		pendingSalary(f, "p-1")
		f.repo.payments["p-1"].Status = StatusProcessing
		f.repo.payments["p-1"].TransferRef = "PAY_p-1_1"

		body := []byte(`{"event":"transfer.success","data":{"reference":"PAY_p-1_1"}}`)
		header := http.Header{}
		header.Set(paystack.SignatureHeader, paystack.Sign(webhookSecret, body))

		w := send(newRouter(f), http.MethodPost, "/payments/webhook", body, header)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, StatusCompleted, f.repo.payments["p-1"].Status)
	})
}
