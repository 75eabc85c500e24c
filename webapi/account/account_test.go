package account_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/p2pwallet/wallet/infra/ledger/memory"
	"github.com/p2pwallet/wallet/infra/repository"
	"github.com/p2pwallet/wallet/pkg/config"
	"github.com/p2pwallet/wallet/pkg/currency"
	"github.com/p2pwallet/wallet/pkg/domain/transfer"
	"github.com/p2pwallet/wallet/pkg/ledger"
	transfersvc "github.com/p2pwallet/wallet/pkg/service/transfer"
	"github.com/p2pwallet/wallet/webapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fixture struct {
	app   *fiber.App
	store *memory.Store
	repo  *repository.TransferRepository
	svc   *transfersvc.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	repo := repository.New(store, slog.Default())
	svc := transfersvc.New(repo, nil, time.Hour, slog.Default())
	cfg := &config.AppConfig{Jwt: config.Jwt{Secret: testSecret}}
	return &fixture{app: webapi.New(svc, cfg), store: store, repo: repo, svc: svc}
}

func (f *fixture) seedAccount(t *testing.T, id string, balance int64) {
	t.Helper()
	err := f.store.AtomicCommit(context.Background(), []ledger.ConditionalWrite{{
		Key:  repository.AccountKey(id),
		Kind: ledger.WritePut,
		Item: ledger.Item{ledger.AttrBalance: balance, ledger.AttrCurrency: "USD"},
	}})
	require.NoError(t, err)
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f *fixture) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestGetBalance_Unauthorized(t *testing.T) {
	f := newFixture(t)
	resp := f.get(t, "/account/balance", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetBalance_Success(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "alice", 1234)

	resp := f.get(t, "/account/balance", signToken(t, "alice"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var envelope struct {
		Data struct {
			AccountID string `json:"account_id"`
			Balance   int64  `json:"balance"`
			Currency  string `json:"currency"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "alice", envelope.Data.AccountID)
	assert.Equal(t, int64(1234), envelope.Data.Balance)
	assert.Equal(t, "USD", envelope.Data.Currency)
}

func TestGetBalance_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	resp := f.get(t, "/account/balance", signToken(t, "ghost"))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetTransactions_Success(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "alice", 1000)
	f.seedAccount(t, "bob", 0)

	_, err := f.svc.Execute(context.Background(), transfer.Request{
		SenderID:       "alice",
		RecipientID:    "bob",
		Amount:         250,
		Currency:       currency.USD,
		IdempotencyKey: "k-1",
	})
	require.NoError(t, err)

	resp := f.get(t, "/account/transactions", signToken(t, "alice"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var envelope struct {
		Data []struct {
			TxID         string `json:"txId"`
			Type         string `json:"type"`
			Amount       int64  `json:"amount"`
			Counterparty string `json:"counterparty"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "SENT", envelope.Data[0].Type)
	assert.Equal(t, int64(-250), envelope.Data[0].Amount)
	assert.Equal(t, "bob", envelope.Data[0].Counterparty)
	assert.NotEmpty(t, envelope.Data[0].TxID)
}

func TestGetTransactions_EmptyHistory(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "alice", 1000)

	resp := f.get(t, "/account/transactions", signToken(t, "alice"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var envelope struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Empty(t, envelope.Data)
}
