package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
)

// SimulatePayment settles a pending purchase without a real provider. Only
// mounted in sandbox mode; drives the same settlement path as a webhook.
func SimulatePayment(c *gin.Context) {
	ref := c.Query("external_ref")
	if ref == "" {
		utils.BadRequest(c, "external_ref is required", nil)
		return
	}

	outcome := c.DefaultQuery("outcome", "success")
	target := models.TransactionStatusCompleted
	cause := "Simulated payment success"
	if outcome != "success" {
		target = models.TransactionStatusFailed
		cause = "Simulated payment failure"
	}

	short := ref
	if len(short) > 8 {
		short = short[:8]
	}
	tx, err := LedgerService.SettlePurchase(c.Request.Context(), ref, target, "sim_"+short, cause)
	if err != nil {
		handleLedgerError(c, err, "Simulate payment")
		return
	}

	utils.Success(c, "Payment simulation completed successfully", gin.H{
		"transaction_id": tx.ID,
		"status":         tx.Status,
	})
}

// SimulateRazorpaySignature produces a valid checkout signature for a given
// order and payment id, for driving the verify endpoint in tests.
func SimulateRazorpaySignature(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		utils.BadRequest(c, "Order ID is required", nil)
		return
	}

	paymentID := "pay_test_" + orderID

	keySecret := os.Getenv("RAZORPAY_SECRET")
	h := hmac.New(sha256.New, []byte(keySecret))
	h.Write([]byte(orderID + "|" + paymentID))
	signature := hex.EncodeToString(h.Sum(nil))

	utils.Success(c, "Payment simulation completed successfully", gin.H{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signature,
	})
}
