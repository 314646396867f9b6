package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayVerifyPayment(t *testing.T) {
	c := NewRazorpayClient("rzp_test_key", "rzp_secret", false)

	sig := checkoutSignature("rzp_secret", "order_123", "pay_456")
	event, err := c.VerifyPayment("ref-1", "order_123", "pay_456", sig)
	require.NoError(t, err)
	assert.Equal(t, "ref-1", event.ExternalRef)
	assert.Equal(t, models.TransactionStatusCompleted, event.Status)
	assert.Equal(t, "pay_456", event.PaymentReference)
}

func TestRazorpayVerifyPaymentRejectsBadSignature(t *testing.T) {
	c := NewRazorpayClient("rzp_test_key", "rzp_secret", false)

	sig := checkoutSignature("wrong-secret", "order_123", "pay_456")
	_, err := c.VerifyPayment("ref-1", "order_123", "pay_456", sig)
	assert.ErrorIs(t, err, ledger.ErrAuthentication)

	_, err = c.VerifyPayment("ref-1", "order_123", "pay_456", "")
	assert.ErrorIs(t, err, ledger.ErrAuthentication)
}

func TestRazorpaySandboxOrder(t *testing.T) {
	// No key id forces sandbox mode.
	c := NewRazorpayClient("", "", false)

	res, err := c.CreateOrder(context.Background(), InitiateRequest{
		ExternalRef: "abcdef0123456789",
		AmountPKR:   decimal.NewFromInt(3199),
	})
	require.NoError(t, err)
	assert.True(t, res.Sandbox)
	assert.Equal(t, "order_sbx_abcdef01", res.ExternalID)

	// Sandbox checkout accepts any signature.
	event, err := c.VerifyPayment("ref-1", "order_sbx_abcdef01", "pay_test", "whatever")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, event.Status)
}
