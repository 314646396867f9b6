package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"
	"time"

	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveJazzCash() *JazzCashClient {
	c := NewJazzCashClient("MC12345", "merchant-pass", "integrity-salt", "https://example.invalid", false)
	c.now = func() time.Time {
		return time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return c
}

func TestJazzCashSignCoversDocumentedFieldsInOrder(t *testing.T) {
	c := liveJazzCash()
	fields := map[string]string{
		"pp_Amount":       "139900",
		"pp_TxnRefNo":     "ref-1",
		"pp_ResponseCode": "000", // not a covered field, must be ignored
		"pp_CNIC":         "",    // empty, must be skipped
		"pp_Version":      "1.1",
	}

	mac := hmac.New(sha256.New, []byte("integrity-salt"))
	mac.Write([]byte("integrity-salt&139900&ref-1&1.1"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), c.sign(fields))
}

func jazzcashForm(c *JazzCashClient, code string) url.Values {
	fields := map[string]string{
		"pp_TxnRefNo":        "ref-1",
		"pp_Amount":          "139900",
		"pp_ResponseCode":    code,
		"pp_ResponseMessage": "Thank you for using JazzCash",
	}
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set("pp_SecureHash", c.sign(fields))
	return form
}

func TestJazzCashCallbackSuccess(t *testing.T) {
	c := liveJazzCash()

	event, err := c.ParseCallback(jazzcashForm(c, "000"))
	require.NoError(t, err)
	assert.Equal(t, "ref-1", event.ExternalRef)
	assert.Equal(t, models.TransactionStatusCompleted, event.Status)
	assert.Equal(t, "Thank you for using JazzCash", event.Cause)
}

func TestJazzCashCallbackUnknownCodeIsFailed(t *testing.T) {
	c := liveJazzCash()

	for _, code := range []string{"124", "210", "anything"} {
		event, err := c.ParseCallback(jazzcashForm(c, code))
		require.NoError(t, err, "code %s", code)
		assert.Equal(t, models.TransactionStatusFailed, event.Status, "code %s", code)
	}
}

func TestJazzCashCallbackHashIsCaseInsensitive(t *testing.T) {
	c := liveJazzCash()

	form := jazzcashForm(c, "000")
	upper := url.Values{}
	for k := range form {
		upper.Set(k, form.Get(k))
	}
	upper.Set("pp_SecureHash", toUpperHex(form.Get("pp_SecureHash")))

	_, err := c.ParseCallback(upper)
	assert.NoError(t, err)
}

func toUpperHex(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'a' && ch <= 'f' {
			b[i] = ch - 'a' + 'A'
		}
	}
	return string(b)
}

func TestJazzCashCallbackRejectsBadSignature(t *testing.T) {
	c := liveJazzCash()

	form := jazzcashForm(c, "000")
	form.Set("pp_Amount", "1") // tampered after signing
	_, err := c.ParseCallback(form)
	assert.ErrorIs(t, err, ledger.ErrAuthentication)

	form = jazzcashForm(c, "000")
	form.Del("pp_SecureHash")
	_, err = c.ParseCallback(form)
	assert.ErrorIs(t, err, ledger.ErrAuthentication)
}

func TestJazzCashCallbackMissingRefNo(t *testing.T) {
	c := liveJazzCash()

	fields := map[string]string{"pp_ResponseCode": "000"}
	form := url.Values{}
	form.Set("pp_ResponseCode", "000")
	form.Set("pp_SecureHash", c.sign(fields))

	_, err := c.ParseCallback(form)
	assert.ErrorIs(t, err, ledger.ErrUnknownReference)
}

func TestJazzCashSandboxInitiate(t *testing.T) {
	c := NewJazzCashClient("", "", "", "", false)
	require.True(t, c.sandbox)

	res, err := c.Initiate(context.Background(), InitiateRequest{
		ExternalRef:  "fedcba9876543210",
		AmountPKR:    decimal.NewFromFloat(1399.00),
		MobileNumber: "03001234567",
		Description:  "Starter Pack",
	})
	require.NoError(t, err)
	assert.True(t, res.Sandbox)
	assert.Equal(t, "JC-fedcba98", res.ExternalID)
}
