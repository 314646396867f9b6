package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

// newPaymentFixture wires the checkout verification and sandbox simulation
// endpoints against a memory store, with the authenticated user injected by
// the router.
func newPaymentFixture(t *testing.T) (*gin.Engine, *ledger.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := ledger.NewMemoryStore()
	alice := models.User{Model: gorm.Model{ID: 1}, Email: "alice@example.com", Username: "alice"}
	store.AddUser(&alice)
	store.AddBundle(&models.TokenBundle{
		ID:       1,
		Name:     "Pro Pack",
		Tokens:   500,
		PricePKR: decimal.NewFromInt(6499),
		PriceUSD: decimal.NewFromInt(23),
		IsActive: true,
	})
	InitServices(&config.Config{Sandbox: true, FrontendURL: "http://localhost:3000"}, store)

	r := gin.New()
	authed := r.Group("/v1", func(c *gin.Context) { c.Set("user", alice) })
	authed.POST("/payments/razorpay/verify", VerifyRazorpayPayment)
	r.GET("/v1/sandbox/payments/simulate", SimulatePayment)
	return r, store
}

// pendingRazorpayPurchase starts a card purchase and records the order id the
// checkout later has to name.
func pendingRazorpayPurchase(t *testing.T, orderID string) *models.Transaction {
	t.Helper()
	tx, _, err := LedgerService.InitiatePurchase(context.Background(), 1, 1, models.PaymentMethodRazorpay)
	require.NoError(t, err)
	if orderID != "" {
		require.NoError(t, LedgerService.AttachPaymentReference(context.Background(), tx.ID, orderID))
	}
	return tx
}

func postRazorpayVerify(r *gin.Engine, payload map[string]any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/razorpay/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifyRazorpaySettlesMatchingOrder(t *testing.T) {
	r, store := newPaymentFixture(t)
	tx := pendingRazorpayPurchase(t, "order_abc123")

	w := postRazorpayVerify(r, map[string]any{
		"transaction_id":      tx.ID,
		"razorpay_order_id":   "order_abc123",
		"razorpay_payment_id": "pay_abc123",
		"razorpay_signature":  "sandbox-accepts-any",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	settled, err := store.TransactionByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, settled.Status)

	wallet, err := store.WalletByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 500, wallet.VirtualTokens)
}

func TestVerifyRazorpayRejectsForeignOrder(t *testing.T) {
	r, store := newPaymentFixture(t)
	tx := pendingRazorpayPurchase(t, "order_expensive_1")

	// A confirmation over a different order must not settle this purchase,
	// however valid its signature is for that other order.
	w := postRazorpayVerify(r, map[string]any{
		"transaction_id":      tx.ID,
		"razorpay_order_id":   "order_cheap_1",
		"razorpay_payment_id": "pay_cheap_1",
		"razorpay_signature":  "sandbox-accepts-any",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	reloaded, err := store.TransactionByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, reloaded.Status)

	wallet, err := store.WalletByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.VirtualTokens)
}

func TestVerifyRazorpayRequiresRecordedOrder(t *testing.T) {
	r, store := newPaymentFixture(t)
	tx := pendingRazorpayPurchase(t, "")

	w := postRazorpayVerify(r, map[string]any{
		"transaction_id":      tx.ID,
		"razorpay_order_id":   "order_whatever",
		"razorpay_payment_id": "pay_whatever",
		"razorpay_signature":  "sandbox-accepts-any",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	reloaded, err := store.TransactionByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, reloaded.Status)
}

func TestSimulatePaymentSettlesPurchase(t *testing.T) {
	r, store := newPaymentFixture(t)
	tx, _, err := LedgerService.InitiatePurchase(context.Background(), 1, 1, models.PaymentMethodEasypaisa)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/sandbox/payments/simulate?external_ref="+*tx.ExternalRef, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	wallet, err := store.WalletByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 500, wallet.VirtualTokens)
}

func TestSimulatePaymentShortReference(t *testing.T) {
	r, _ := newPaymentFixture(t)

	// References shorter than the receipt prefix must get a clean not-found,
	// not a slice panic. The router has no recovery middleware here, so a
	// panic would fail the test outright.
	req := httptest.NewRequest(http.MethodGet, "/v1/sandbox/payments/simulate?external_ref=abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}
