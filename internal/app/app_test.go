package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/auth"
	"github.com/pablotheshekpeking/payroll-system/internal/bank"
	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/fee"
	"github.com/pablotheshekpeking/payroll-system/internal/logger"
	"github.com/pablotheshekpeking/payroll-system/internal/payment"
	"github.com/pablotheshekpeking/payroll-system/internal/payroll"
	"github.com/pablotheshekpeking/payroll-system/internal/paystack"
	"github.com/pablotheshekpeking/payroll-system/internal/student"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBanks struct{}

func (stubBanks) ListBanks(ctx context.Context) ([]paystack.Bank, error) {
	return []paystack.Bank{{Name: "Access Bank", Code: "044"}}, nil
}

func (stubBanks) Balance(ctx context.Context) (*bank.Balance, error) {
	return &bank.Balance{Amount: decimal.NewFromInt(1000), Currency: "NGN"}, nil
}

func TestMountAPI_RoleSeparation(t *testing.T) {
	log := logger.Discard()
	tokens := auth.NewTokenManager("test-secret", 15*time.Minute, time.Hour)

	router := chi.NewRouter()
	mountAPI(router, auth.Authenticate(tokens, log), apiHandlers{
		auth:     auth.NewHandler(nil, tokens, log),
		employee: employee.NewHandler(nil, log),
		payroll:  payroll.NewHandler(nil, log),
		payment:  payment.NewHandler(nil, log),
		fee:      fee.NewHandler(nil, log),
		student:  student.NewHandler(nil, log),
		bank:     bank.NewHandler(stubBanks{}, log),
	})

	token := func(role auth.Role) string {
		signed, err := tokens.GenerateAccessToken(&auth.User{ID: 7, Email: "user@school.test", Role: role})
		require.NoError(t, err)
		return signed
	}
	studentToken, adminToken := token(auth.RoleStudent), token(auth.RoleAdmin)

	do := func(method, path, bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("StudentDeniedStaffData", func(t *testing.T) {
		for _, path := range []string{
			"/api/employees",
			"/api/employees/1",
			"/api/employees/1/bank-account",
			"/api/employees/1/payments",
			"/api/payroll",
			"/api/payroll/1",
			"/api/payroll/1/export",
			"/api/payments",
			"/api/payments/6f1c2b1e-5d0a-4a53-9d47-0f4b1f0c9a11",
			"/api/students",
			"/api/banks",
			"/api/balance",
		} {
			w := do(http.MethodGet, path, studentToken)
			assert.Equal(t, http.StatusForbidden, w.Code, path)
		}
	})

	t.Run("StudentReachesOwnRoutes", func(t *testing.T) {
		w := do(http.MethodGet, "/api/students/abc", studentToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("AdminAllowed", func(t *testing.T) {
		w := do(http.MethodGet, "/api/balance", adminToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "1000")
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		w := do(http.MethodGet, "/api/employees", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
