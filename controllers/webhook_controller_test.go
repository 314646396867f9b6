package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newWebhookFixture wires the controllers against a memory store with sandbox
// payment clients, so callbacks settle without signature material.
func newWebhookFixture(t *testing.T) (*gin.Engine, *ledger.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := ledger.NewMemoryStore()
	store.AddUser(&models.User{Model: gorm.Model{ID: 1}, Email: "alice@example.com", Username: "alice"})
	store.AddBundle(&models.TokenBundle{
		ID:       1,
		Name:     "Starter Pack",
		Tokens:   100,
		PricePKR: decimal.NewFromInt(1399),
		PriceUSD: decimal.NewFromInt(5),
		IsActive: true,
	})
	InitServices(&config.Config{Sandbox: true, FrontendURL: "http://localhost:3000"}, store)

	r := gin.New()
	r.POST("/v1/payments/easypaisa/callback", EasypaisaCallback)
	r.POST("/v1/payments/jazzcash/callback", JazzCashCallback)
	return r, store
}

func pendingPurchase(t *testing.T) string {
	t.Helper()
	tx, _, err := LedgerService.InitiatePurchase(context.Background(), 1, 1, "easypaisa")
	require.NoError(t, err)
	return *tx.ExternalRef
}

func postEasypaisa(r *gin.Engine, payload map[string]any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/easypaisa/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEasypaisaWebhookSettlesPurchase(t *testing.T) {
	r, store := newWebhookFixture(t)
	ref := pendingPurchase(t)

	w := postEasypaisa(r, map[string]any{
		"orderId":           ref,
		"transactionId":     "EP-42",
		"transactionStatus": "0000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processed", resp["status"])
	assert.Equal(t, models.TransactionStatusCompleted, resp["transaction_status"])

	wallet, err := store.WalletByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, wallet.VirtualTokens)
}

func TestEasypaisaWebhookReplayCreditsOnce(t *testing.T) {
	r, store := newWebhookFixture(t)
	ref := pendingPurchase(t)

	payload := map[string]any{
		"orderId":           ref,
		"transactionId":     "EP-42",
		"transactionStatus": "0000",
	}
	for i := 0; i < 3; i++ {
		w := postEasypaisa(r, payload)
		assert.Equal(t, http.StatusOK, w.Code, "delivery %d", i)
	}

	wallet, err := store.WalletByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, wallet.VirtualTokens, "replayed deliveries must not credit again")
}

func TestEasypaisaWebhookUnknownReference(t *testing.T) {
	r, _ := newWebhookFixture(t)

	w := postEasypaisa(r, map[string]any{
		"orderId":           "no-such-order",
		"transactionStatus": "0000",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEasypaisaWebhookMalformedBody(t *testing.T) {
	r, _ := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/easypaisa/callback", strings.NewReader("not-json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJazzCashWebhookFailureCode(t *testing.T) {
	r, store := newWebhookFixture(t)
	ref := pendingPurchase(t)

	form := url.Values{}
	form.Set("pp_TxnRefNo", ref)
	form.Set("pp_ResponseCode", "124")
	form.Set("pp_ResponseMessage", "Insufficient balance in wallet")

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/jazzcash/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.TransactionStatusFailed, resp["transaction_status"])

	wallet, err := store.WalletByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.VirtualTokens)
}

func TestJazzCashWebhookThenLateSuccessNoOps(t *testing.T) {
	r, store := newWebhookFixture(t)
	ref := pendingPurchase(t)

	send := func(code string) *httptest.ResponseRecorder {
		form := url.Values{}
		form.Set("pp_TxnRefNo", ref)
		form.Set("pp_ResponseCode", code)
		req := httptest.NewRequest(http.MethodPost, "/v1/payments/jazzcash/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, send("124").Code)
	// A success delivery for the same reference after the failure is
	// acknowledged but the terminal record stands.
	require.Equal(t, http.StatusOK, send("000").Code)

	tx, err := store.TransactionByExternalRef(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, tx.Status)
	wallet, err := store.WalletByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.VirtualTokens)
}
