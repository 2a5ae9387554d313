package paystack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "sk_test_123", 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeEnvelope(w http.ResponseWriter, status int, ok bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  ok,
		"message": message,
		"data":    data,
	})
}

func TestClient_Balance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/balance", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, true, "Balances retrieved", []map[string]any{
			{"currency": "NGN", "balance": 150000000},
		})
	})

	balances, err := client.Balance(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "NGN", balances[0].Currency)
	assert.Equal(t, int64(150000000), balances[0].Balance)
}

func TestClient_ListBanks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bank", r.URL.Path)
		assert.Equal(t, "nigeria", r.URL.Query().Get("country"))
		writeEnvelope(w, http.StatusOK, true, "Banks retrieved", []map[string]any{
			{"id": 1, "name": "Access Bank", "code": "044", "country": "Nigeria", "currency": "NGN"},
			{"id": 2, "name": "Absa Bank Ghana", "code": "030100", "country": "Ghana", "currency": "GHS"},
		})
	})

	banks, err := client.ListBanks(context.Background(), "Nigeria")
	require.NoError(t, err)
	require.Len(t, banks, 1)
	assert.Equal(t, "044", banks[0].Code)
}

func TestClient_ResolveAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bank/resolve", r.URL.Path)
		assert.Equal(t, "0123456789", r.URL.Query().Get("account_number"))
		assert.Equal(t, "044", r.URL.Query().Get("bank_code"))
		writeEnvelope(w, http.StatusOK, true, "Account number resolved", map[string]any{
			"account_number": "0123456789",
			"account_name":   "ADA OBI",
		})
	})

	acct, err := client.ResolveAccount(context.Background(), "0123456789", "044")
	require.NoError(t, err)
	assert.Equal(t, "ADA OBI", acct.AccountName)
}

func TestClient_CreateTransferRecipient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transferrecipient", r.URL.Path)

		var body RecipientRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nuban", body.Type)
		assert.Equal(t, "NGN", body.Currency)

		writeEnvelope(w, http.StatusCreated, true, "Transfer recipient created", map[string]any{
			"recipient_code": "RCP_abc",
		})
	})

	rcp, err := client.CreateTransferRecipient(context.Background(), RecipientRequest{
		Name:          "Ada Obi",
		AccountNumber: "0123456789",
		BankCode:      "044",
		Currency:      "NGN",
	})
	require.NoError(t, err)
	assert.Equal(t, "RCP_abc", rcp.RecipientCode)
}

func TestClient_InitiateTransfer(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var body TransferRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "balance", body.Source)
			assert.Equal(t, int64(5000000), body.Amount)
			assert.Equal(t, "PAY_1_1700000000000", body.Reference)

			writeEnvelope(w, http.StatusOK, true, "Transfer has been queued", map[string]any{
				"transfer_code": "TRF_1",
				"reference":     body.Reference,
				"status":        "pending",
			})
		})

		tr, err := client.InitiateTransfer(context.Background(), TransferRequest{
			Amount:    5000000,
			Recipient: "RCP_abc",
			Reference: "PAY_1_1700000000000",
		})
		require.NoError(t, err)
		assert.Equal(t, "TRF_1", tr.TransferCode)
		assert.Equal(t, "pending", tr.Status)
	})

	t.Run("TransferUnavailable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"status":  false,
				"message": "You cannot initiate third party payouts as a starter business",
				"code":    "transfer_unavailable",
			})
		})

		_, err := client.InitiateTransfer(context.Background(), TransferRequest{Amount: 100, Recipient: "RCP", Reference: "x"})
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeTransferUnavailable))

		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	})

	t.Run("StatusFalseOn200", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusOK, false, "Invalid key", nil)
		})

		_, err := client.InitiateTransfer(context.Background(), TransferRequest{Amount: 100, Recipient: "RCP", Reference: "x"})
		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "Invalid key", pe.Message)
	})

	t.Run("NonJSONError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html>bad gateway</html>"))
		})

		_, err := client.InitiateTransfer(context.Background(), TransferRequest{Amount: 100, Recipient: "RCP", Reference: "x"})
		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusBadGateway, pe.StatusCode)
	})
}

func TestClient_Transactions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transaction/initialize":
			var body TransactionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ada@school.test", body.Email)
			assert.Equal(t, int64(2500050), body.Amount)
			writeEnvelope(w, http.StatusOK, true, "Authorization URL created", map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc",
				"access_code":       "abc",
				"reference":         "ref_123",
			})
		case "/transaction/verify/ref_123":
			writeEnvelope(w, http.StatusOK, true, "Verification successful", map[string]any{
				"status":    "success",
				"reference": "ref_123",
				"amount":    2500050,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	checkout, err := client.InitializeTransaction(context.Background(), TransactionRequest{
		Email:  "ada@school.test",
		Amount: Subunits(decimal.RequireFromString("25000.50")),
	})
	require.NoError(t, err)
	assert.Equal(t, "ref_123", checkout.Reference)

	tx, err := client.VerifyTransaction(context.Background(), checkout.Reference)
	require.NoError(t, err)
	assert.Equal(t, "success", tx.Status)
}

func TestSubunits(t *testing.T) {
	assert.Equal(t, int64(5000000), Subunits(decimal.NewFromInt(50000)))
	assert.Equal(t, int64(12346), Subunits(decimal.RequireFromString("123.455")))
	assert.Equal(t, int64(1), Subunits(decimal.RequireFromString("0.005")))
	assert.True(t, FromSubunits(150050).Equal(decimal.RequireFromString("1500.50")))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"transfer.success","data":{"reference":"PAY_1_1"}}`)
	sig := Sign("whsec", body)

	assert.Len(t, sig, 128)
	assert.True(t, VerifySignature("whsec", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("whsec", append(body, ' '), sig))
	assert.False(t, VerifySignature("whsec", body, ""))
	assert.False(t, VerifySignature("", body, sig))
}
