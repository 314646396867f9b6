package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveEasypaisa() *EasypaisaClient {
	return NewEasypaisaClient("STORE123", "secret-key", "https://example.invalid", "https://example.invalid/cb", false)
}

func TestEasypaisaSignOrdersKeysAndSkipsEmpties(t *testing.T) {
	c := liveEasypaisa()
	fields := map[string]string{
		"orderId":           "ref-1",
		"transactionId":     "EP-9",
		"transactionStatus": "0000",
		"emailAddress":      "",
	}

	// Values concatenated in key order, empties dropped, key appended.
	sum := sha256.Sum256([]byte("ref-1" + "EP-9" + "0000" + "secret-key"))
	assert.Equal(t, hex.EncodeToString(sum[:]), c.sign(fields))
}

func easypaisaCallback(c *EasypaisaClient, status string) map[string]any {
	fields := map[string]string{
		"orderId":           "ref-1",
		"transactionId":     "EP-9",
		"transactionStatus": status,
	}
	payload := map[string]any{"hashKey": c.sign(fields)}
	for k, v := range fields {
		payload[k] = v
	}
	return payload
}

func TestEasypaisaCallbackSuccess(t *testing.T) {
	c := liveEasypaisa()

	event, err := c.ParseCallback(easypaisaCallback(c, "0000"))
	require.NoError(t, err)
	assert.Equal(t, "ref-1", event.ExternalRef)
	assert.Equal(t, models.TransactionStatusCompleted, event.Status)
	assert.Equal(t, "EP-9", event.PaymentReference)
}

func TestEasypaisaCallbackUnknownCodeIsFailed(t *testing.T) {
	c := liveEasypaisa()

	for _, code := range []string{"0001", "TIMEOUT", "9999"} {
		event, err := c.ParseCallback(easypaisaCallback(c, code))
		require.NoError(t, err, "code %s", code)
		assert.Equal(t, models.TransactionStatusFailed, event.Status, "code %s", code)
	}
}

func TestEasypaisaCallbackRejectsBadSignature(t *testing.T) {
	c := liveEasypaisa()

	payload := easypaisaCallback(c, "0000")
	payload["transactionStatus"] = "0001" // tampered after signing

	_, err := c.ParseCallback(payload)
	assert.ErrorIs(t, err, ledger.ErrAuthentication)

	payload = easypaisaCallback(c, "0000")
	delete(payload, "hashKey")
	_, err = c.ParseCallback(payload)
	assert.ErrorIs(t, err, ledger.ErrAuthentication)
}

func TestEasypaisaCallbackMissingOrderID(t *testing.T) {
	c := liveEasypaisa()

	fields := map[string]string{"transactionStatus": "0000"}
	payload := map[string]any{
		"transactionStatus": "0000",
		"hashKey":           c.sign(fields),
	}
	_, err := c.ParseCallback(payload)
	assert.ErrorIs(t, err, ledger.ErrUnknownReference)
}

func TestEasypaisaSandboxSkipsVerification(t *testing.T) {
	// No store id forces sandbox mode.
	c := NewEasypaisaClient("", "", "", "", false)
	require.True(t, c.sandbox)

	event, err := c.ParseCallback(map[string]any{
		"orderId":           "ref-1",
		"transactionStatus": "0000",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, event.Status)
}

func TestEasypaisaSandboxInitiate(t *testing.T) {
	c := NewEasypaisaClient("", "", "", "", true)

	res, err := c.Initiate(context.Background(), InitiateRequest{
		ExternalRef:  "0123456789abcdef",
		AmountPKR:    decimal.NewFromInt(1399),
		MobileNumber: "+923001234567",
	})
	require.NoError(t, err)
	assert.True(t, res.Sandbox)
	assert.Equal(t, "EP-01234567", res.ExternalID)
}

func TestNormalizeMobile(t *testing.T) {
	assert.Equal(t, "03001234567", normalizeMobile("+923001234567"))
	assert.Equal(t, "03001234567", normalizeMobile("923001234567"))
	assert.Equal(t, "03001234567", normalizeMobile("03001234567"))
}
