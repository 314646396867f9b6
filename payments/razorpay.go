package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/models"
	razorpay "github.com/razorpay/razorpay-go"
)

// RazorpayClient handles the card payment path. Unlike the mobile wallets,
// settlement is client-confirmed: the frontend completes checkout and posts
// the signed order/payment pair back for verification.
type RazorpayClient struct {
	keyID   string
	secret  string
	sandbox bool
	api     *razorpay.Client
}

// NewRazorpayClient builds a client. Sandbox mode is forced when no key is
// configured.
func NewRazorpayClient(keyID, secret string, sandbox bool) *RazorpayClient {
	c := &RazorpayClient{keyID: keyID, secret: secret, sandbox: sandbox || keyID == ""}
	if !c.sandbox {
		c.api = razorpay.NewClient(keyID, secret)
	}
	return c
}

// Method returns the payment method name this client settles
func (c *RazorpayClient) Method() string { return "razorpay" }

// KeyID is exposed to the checkout frontend
func (c *RazorpayClient) KeyID() string { return c.keyID }

// CreateOrder registers the purchase with Razorpay and returns the provider
// order id the frontend checkout needs. Amount is converted to paise.
func (c *RazorpayClient) CreateOrder(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if c.sandbox {
		return &InitiateResult{
			ExternalID: "order_sbx_" + shortRef(req.ExternalRef),
			Message:    "Order created (sandbox)",
			Sandbox:    true,
		}, nil
	}

	orderData := map[string]interface{}{
		"amount":          int(req.AmountPKR.Shift(2).Round(0).IntPart()),
		"currency":        "PKR",
		"receipt":         req.ExternalRef,
		"payment_capture": 1,
	}
	order, err := c.api.Order.Create(orderData, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}
	return &InitiateResult{
		ExternalID: fmt.Sprintf("%v", order["id"]),
		Message:    "Order created",
	}, nil
}

// VerifyPayment checks the checkout signature over "order_id|payment_id" and
// returns the normalized settlement for the given purchase reference.
func (c *RazorpayClient) VerifyPayment(externalRef, orderID, paymentID, signature string) (*SettlementEvent, error) {
	if !c.sandbox {
		mac := hmac.New(sha256.New, []byte(c.secret))
		mac.Write([]byte(orderID + "|" + paymentID))
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			return nil, ledger.ErrAuthentication
		}
	}
	return &SettlementEvent{
		ExternalRef:      externalRef,
		Status:           models.TransactionStatusCompleted,
		PaymentReference: paymentID,
		Cause:            "Razorpay payment verified",
	}, nil
}
