package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ksenkov/walletcore/internal/domain"
)

type stubService struct {
	transferResult *domain.TransferResult
	withdrawResult *domain.WithdrawResult
	replay         *domain.IdempotencyRecord
	err            error

	gotCaller  int64
	gotIdemKey string
}

func (s *stubService) Transfer(_ context.Context, callerID int64, _ domain.TransferRequest, idemKey, _ string) (*domain.TransferResult, *domain.IdempotencyRecord, error) {
	s.gotCaller = callerID
	s.gotIdemKey = idemKey
	return s.transferResult, s.replay, s.err
}

func (s *stubService) Withdraw(_ context.Context, callerID int64, _ domain.WithdrawRequest, idemKey, _ string) (*domain.WithdrawResult, *domain.IdempotencyRecord, error) {
	s.gotCaller = callerID
	s.gotIdemKey = idemKey
	return s.withdrawResult, s.replay, s.err
}

type stubDirectory struct {
	accounts  []domain.Account
	histories []domain.AccountHistory
	err       error
}

func (d *stubDirectory) AccountsForUser(_ context.Context, _ int64) ([]domain.Account, error) {
	return d.accounts, d.err
}

func (d *stubDirectory) TransactionsForUser(_ context.Context, _ int64) ([]domain.AccountHistory, error) {
	return d.histories, d.err
}

type stubAuth struct {
	token    string
	loginErr error
	callerID int64
}

func (a *stubAuth) Login(_ context.Context, _, _ string) (string, error) {
	return a.token, a.loginErr
}

func (a *stubAuth) Verify(token string) (int64, error) {
	if token != "good-token" {
		return 0, domain.ErrInvalidCredentials
	}
	return a.callerID, nil
}

func newTestServer(svc LedgerService, dir Directory, auth Authenticator) *httptest.Server {
	h := NewHandler(svc, dir, auth, nil)
	return httptest.NewServer(NewRouter(h))
}

func doJSON(t *testing.T, method, url string, payload any, headers map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func authed() map[string]string {
	return map[string]string{"Authorization": "Bearer good-token"}
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := newTestServer(&stubService{}, &stubDirectory{}, &stubAuth{token: "tok-123"})
		defer srv.Close()

		resp := doJSON(t, "POST", srv.URL+"/login", map[string]string{"username": "user1", "password": "pw"}, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.Equal(t, "tok-123", out["token"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		srv := newTestServer(&stubService{}, &stubDirectory{}, &stubAuth{loginErr: domain.ErrInvalidCredentials})
		defer srv.Close()

		resp := doJSON(t, "POST", srv.URL+"/login", map[string]string{"username": "user1", "password": "nope"}, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(&stubService{}, &stubDirectory{}, &stubAuth{callerID: 7})
	defer srv.Close()

	t.Run("missing token", func(t *testing.T) {
		resp := doJSON(t, "POST", srv.URL+"/api/v1/send", map[string]any{}, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		resp := doJSON(t, "POST", srv.URL+"/api/v1/send", map[string]any{},
			map[string]string{"Authorization": "Bearer bogus"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestSendErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrAccountNotFound, http.StatusBadRequest},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusBadRequest},
		{domain.ErrConcurrencyConflict, http.StatusConflict},
		{domain.ErrIdempotencyConflict, http.StatusConflict},
		{domain.ErrIdempotencyMismatch, http.StatusUnprocessableEntity},
		{errors.New("datastore exploded"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%v", tc.err), func(t *testing.T) {
			srv := newTestServer(&stubService{err: tc.err}, &stubDirectory{}, &stubAuth{callerID: 7})
			defer srv.Close()

			resp := doJSON(t, "POST", srv.URL+"/api/v1/send",
				map[string]any{"sender_id": 1, "receiver_id": 2, "amount": "10", "currency": "USD"},
				authed())
			defer resp.Body.Close()
			require.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestSendSuccess(t *testing.T) {
	svc := &stubService{
		transferResult: &domain.TransferResult{
			SenderBalance:   domain.Balance{AccountID: 1, Currency: "USD", Amount: decimal.NewFromInt(900)},
			ReceiverBalance: domain.Balance{AccountID: 2, Currency: "USD", Amount: decimal.NewFromInt(1600)},
		},
	}
	svc.transferResult.Transaction.Status = domain.StatusCompleted

	srv := newTestServer(svc, &stubDirectory{}, &stubAuth{callerID: 7})
	defer srv.Close()

	resp := doJSON(t, "POST", srv.URL+"/api/v1/send",
		map[string]any{"sender_id": 1, "receiver_id": 2, "amount": "100", "currency": "USD"},
		authed())
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(7), svc.gotCaller)

	var out domain.TransferResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, domain.StatusCompleted, out.Transaction.Status)
	require.True(t, out.SenderBalance.Amount.Equal(decimal.NewFromInt(900)))
	require.True(t, out.ReceiverBalance.Amount.Equal(decimal.NewFromInt(1600)))
}

func TestSendIdempotentReplay(t *testing.T) {
	stored := []byte(`{"transaction":{"status":"completed"}}`)
	svc := &stubService{replay: &domain.IdempotencyRecord{ResponseStatus: http.StatusOK, ResponseBody: stored}}

	srv := newTestServer(svc, &stubDirectory{}, &stubAuth{callerID: 7})
	defer srv.Close()

	headers := authed()
	headers["Idempotency-Key"] = "retry-1"
	resp := doJSON(t, "POST", srv.URL+"/api/v1/send",
		map[string]any{"sender_id": 1, "receiver_id": 2, "amount": "100", "currency": "USD"},
		headers)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "retry-1", svc.gotIdemKey)

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, string(stored), buf.String())
}

func TestWithdrawSuccess(t *testing.T) {
	svc := &stubService{
		withdrawResult: &domain.WithdrawResult{
			Balance: domain.Balance{AccountID: 1, Currency: "USD", Amount: decimal.NewFromInt(400)},
		},
	}
	svc.withdrawResult.Transaction.Status = domain.StatusCompleted

	srv := newTestServer(svc, &stubDirectory{}, &stubAuth{callerID: 7})
	defer srv.Close()

	resp := doJSON(t, "POST", srv.URL+"/api/v1/withdraw",
		map[string]any{"account_id": 1, "amount": "600", "currency": "USD"},
		authed())
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out domain.WithdrawResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(t, out.Balance.Amount.Equal(decimal.NewFromInt(400)))
}

func TestGetAccounts(t *testing.T) {
	dir := &stubDirectory{accounts: []domain.Account{{ID: 1, UserID: 7, Type: "Debit"}}}
	srv := newTestServer(&stubService{}, dir, &stubAuth{callerID: 7})
	defer srv.Close()

	t.Run("own accounts", func(t *testing.T) {
		resp := doJSON(t, "GET", srv.URL+"/api/v1/accounts/7", nil, authed())
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out []domain.Account
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.Len(t, out, 1)
		require.Equal(t, int64(7), out[0].UserID)
	})

	t.Run("someone else's accounts", func(t *testing.T) {
		resp := doJSON(t, "GET", srv.URL+"/api/v1/accounts/8", nil, authed())
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("malformed user id", func(t *testing.T) {
		resp := doJSON(t, "GET", srv.URL+"/api/v1/accounts/abc", nil, authed())
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetTransactions(t *testing.T) {
	dir := &stubDirectory{histories: []domain.AccountHistory{{AccountID: 1}}}
	srv := newTestServer(&stubService{}, dir, &stubAuth{callerID: 7})
	defer srv.Close()

	resp := doJSON(t, "GET", srv.URL+"/api/v1/transactions/7", nil, authed())
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []domain.AccountHistory
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubService{}, &stubDirectory{}, &stubAuth{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
