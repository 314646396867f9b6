package controllers

import (
	"errors"
	"net/http"

	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/payments"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
)

// settleFromEvent runs a verified provider event through the ledger and writes
// the webhook response. Providers retry on non-2xx, so replays and already
// settled transactions answer 200.
func settleFromEvent(c *gin.Context, event *payments.SettlementEvent) {
	tx, err := LedgerService.SettlePurchase(c.Request.Context(), event.ExternalRef, event.Status, event.PaymentReference, event.Cause)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrUnknownReference):
			utils.LogError("Webhook for unknown reference: %s", event.ExternalRef)
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Transaction not found"})
		default:
			utils.LogError("Webhook settlement failed for %s: %v", event.ExternalRef, err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		}
		return
	}

	utils.LogInfo("Webhook settled transaction %d as %s", tx.ID, tx.Status)
	c.JSON(http.StatusOK, gin.H{"status": "processed", "transaction_status": tx.Status})
}

// EasypaisaCallback handles the Easypaisa payment webhook
func EasypaisaCallback(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		utils.LogError("Easypaisa callback with malformed body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Malformed callback"})
		return
	}

	event, err := Easypaisa.ParseCallback(data)
	if err != nil {
		if errors.Is(err, ledger.ErrAuthentication) {
			utils.LogError("Easypaisa callback failed signature verification")
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid signature"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	settleFromEvent(c, event)
}

// JazzCashCallback handles the JazzCash payment webhook (form-encoded)
func JazzCashCallback(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		utils.LogError("JazzCash callback with malformed form: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Malformed callback"})
		return
	}

	event, err := JazzCash.ParseCallback(c.Request.PostForm)
	if err != nil {
		if errors.Is(err, ledger.ErrAuthentication) {
			utils.LogError("JazzCash callback failed signature verification")
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid signature"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	settleFromEvent(c, event)
}
