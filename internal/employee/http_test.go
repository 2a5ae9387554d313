package employee_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/logger"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"
	"github.com/pablotheshekpeking/payroll-system/internal/paystack"
	"github.com/pablotheshekpeking/payroll-system/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okVerifier struct{}

func (okVerifier) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error) {
	return &paystack.ResolvedAccount{AccountNumber: accountNumber, AccountName: "ADA OBI"}, nil
}

func (okVerifier) CreateTransferRecipient(ctx context.Context, req paystack.RecipientRequest) (*paystack.Recipient, error) {
	return &paystack.Recipient{RecipientCode: "RCP_" + req.AccountNumber}, nil
}

func TestEmployeeHandler_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	repo := employee.NewRepository(pgContainer.DB, metrics.NewMock())
	service := employee.NewService(repo, okVerifier{}, "NGN", logger.Discard())
	handler := employee.NewHandler(service, logger.Discard())

	router := chi.NewRouter()
	handler.RegisterAdminRoutes(router)

	ctx := context.Background()

	do := func(method, path string, payload any) *httptest.ResponseRecorder {
		var body bytes.Buffer
		if payload != nil {
			json.NewEncoder(&body).Encode(payload)
		}
		req := httptest.NewRequest(method, path, &body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	newEmployee := map[string]any{
		"name":       "Ada Obi",
		"email":      "ada@co.test",
		"position":   "Instructor",
		"department": "Sciences",
		"salary":     2400000,
	}

	t.Run("Create_Success", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB)

		w := do(http.MethodPost, "/employees", newEmployee)
		require.Equal(t, http.StatusCreated, w.Code)

		var created employee.Employee
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Equal(t, 1, created.ID)
		assert.Equal(t, employee.StatusActive, created.Status)
		assert.True(t, created.Salary.Equal(decimal.NewFromInt(2400000)))
	})

	t.Run("Create_DuplicateEmail", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB)

		require.Equal(t, http.StatusCreated, do(http.MethodPost, "/employees", newEmployee).Code)
		w := do(http.MethodPost, "/employees", newEmployee)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Create_ValidationError", func(t *testing.T) {
		w := do(http.MethodPost, "/employees", map[string]any{"name": "x", "email": "not-email"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("List_OrderedByName", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB)

		for _, name := range []string{"Zainab", "Bola", "Musa"} {
			require.NoError(t, repo.Create(ctx, &employee.Employee{
				Name: name, Email: name + "@co.test", Position: "Staff", Department: "Admin",
				Salary: decimal.NewFromInt(100000), Status: employee.StatusActive,
			}))
		}

		w := do(http.MethodGet, "/employees", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var list []employee.Employee
		require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
		require.Len(t, list, 3)
		assert.Equal(t, "Bola", list[0].Name)
		assert.Equal(t, "Zainab", list[2].Name)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB)

		w := do(http.MethodGet, "/employees/999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Employee not found"}`, w.Body.String())
	})

	t.Run("Update", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB)
		require.Equal(t, http.StatusCreated, do(http.MethodPost, "/employees", newEmployee).Code)

		updated := map[string]any{}
		for k, v := range newEmployee {
			updated[k] = v
		}
		updated["position"] = "Senior Instructor"
		updated["status"] = "ON_LEAVE"

		w := do(http.MethodPut, "/employees/1", updated)
		require.Equal(t, http.StatusOK, w.Code)

		e, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Senior Instructor", e.Position)
		assert.Equal(t, employee.StatusOnLeave, e.Status)
	})

	t.Run("BankAccount_Lifecycle", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB)
		require.Equal(t, http.StatusCreated, do(http.MethodPost, "/employees", newEmployee).Code)

		w := do(http.MethodGet, "/employees/1/bank-account", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "null", w.Body.String())

		account := map[string]any{"accountNumber": "0123456789", "bankCode": "044", "bankName": "Access Bank"}
		w = do(http.MethodPost, "/employees/1/bank-account", account)
		require.Equal(t, http.StatusCreated, w.Code)

		var created employee.BankAccount
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Equal(t, "ADA OBI", created.AccountName)
		assert.Equal(t, "RCP_0123456789", created.RecipientCode)

		w = do(http.MethodPost, "/employees/1/bank-account", account)
		assert.Equal(t, http.StatusConflict, w.Code)

		e, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, e.BankAccount)
		assert.Equal(t, "0123456789", e.BankAccount.AccountNumber)
	})

	t.Run("BankAccount_InvalidNumber", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB)
		require.Equal(t, http.StatusCreated, do(http.MethodPost, "/employees", newEmployee).Code)

		w := do(http.MethodPost, "/employees/1/bank-account", map[string]any{"accountNumber": "12", "bankCode": "044", "bankName": "Access"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB)
		require.Equal(t, http.StatusCreated, do(http.MethodPost, "/employees", newEmployee).Code)

		w := do(http.MethodDelete, "/employees/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/employees/1", nil).Code)
	})

	t.Run("Delete_WithPayments", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB)
		require.Equal(t, http.StatusCreated, do(http.MethodPost, "/employees", newEmployee).Code)

		_, err := pgContainer.DB.ExecContext(ctx,
			`INSERT INTO payments (id, amount, status, employee_id) VALUES (?, 100, 'PAID', 1)`, uuid.NewString())
		require.NoError(t, err)

		w := do(http.MethodDelete, "/employees/1", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
