package controllers

import (
	"strconv"
	"time"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
)

// AdminAdjustRequest represents a manual balance adjustment body
type AdminAdjustRequest struct {
	Amount    int    `json:"amount" binding:"required"`
	TokenType string `json:"token_type" binding:"required,oneof=virtual reward"`
	Reason    string `json:"reason" binding:"required"`
}

// AdjustWallet credits or debits a user's wallet with an audit record.
// Negative amounts debit, but never below zero.
func AdjustWallet(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid user ID", nil)
		return
	}

	var req AdminAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		utils.NotFound(c, "User not found")
		return
	}

	tx, err := LedgerService.AdminAdjust(c.Request.Context(), user.ID, req.Amount, req.TokenType, req.Reason)
	if err != nil {
		handleLedgerError(c, err, "Wallet adjustment")
		return
	}

	admin := c.MustGet("admin").(models.Admin)
	utils.LogInfo("Admin %d adjusted wallet of user %d by %d %s tokens", admin.ID, user.ID, req.Amount, req.TokenType)
	utils.Success(c, "Wallet adjusted successfully", gin.H{"transaction": tx})
}

// ListAllTransactions is the platform-wide transaction feed for auditing
func ListAllTransactions(c *gin.Context) {
	pagination := utils.NewPagination(c)

	query := config.DB.Model(&models.Transaction{})
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}
	if s := c.Query("status"); s != "" {
		query = query.Where("status = ?", s)
	}
	if u := c.Query("user_id"); u != "" {
		query = query.Where("user_id = ?", u)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch transactions", nil)
		return
	}

	var transactions []models.Transaction
	if err := query.Order("created_at desc").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&transactions).Error; err != nil {
		utils.LogError("Failed to fetch transactions: %v", err)
		utils.InternalServerError(c, "Failed to fetch transactions", nil)
		return
	}

	pagination.SetTotal(total)
	utils.SendPaginatedResponse(c, transactions, pagination)
}

// RefundRequest represents a refund request body
type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RefundTransaction reverses a completed purchase or entry fee. A second
// refund of the same transaction is rejected.
func RefundTransaction(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid transaction ID", nil)
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	tx, err := LedgerService.Refund(c.Request.Context(), uint(id), req.Reason)
	if err != nil {
		handleLedgerError(c, err, "Refund")
		return
	}

	admin := c.MustGet("admin").(models.Admin)
	utils.LogInfo("Admin %d refunded transaction %d", admin.ID, tx.ID)
	utils.Success(c, "Transaction refunded successfully", gin.H{"transaction": tx})
}

// SweepStalePayments fails pending purchases past the configured age and
// purges expired idempotency keys. Meant to be hit by a scheduler.
func SweepStalePayments(c *gin.Context) {
	cutoff := time.Now().Add(-config.App.StalePurchaseAge)

	failed, err := LedgerService.FailStalePurchases(c.Request.Context(), cutoff)
	if err != nil {
		if !ledger.Retryable(err) {
			handleLedgerError(c, err, "Stale payment sweep")
			return
		}
		utils.LogError("Stale payment sweep hit a storage error after %d transitions: %v", failed, err)
	}

	purged, err := LedgerService.SweepReservations(c.Request.Context())
	if err != nil {
		utils.LogError("Idempotency key purge failed: %v", err)
	}

	utils.LogInfo("Sweep finished: %d purchases failed, %d keys purged", failed, purged)
	utils.Success(c, "Sweep completed", gin.H{
		"purchases_failed": failed,
		"keys_purged":      purged,
	})
}
