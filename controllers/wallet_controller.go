package controllers

import (
	"errors"

	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
)

// handleLedgerError maps ledger sentinel errors onto the response helpers
func handleLedgerError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidBundle):
		utils.BadRequest(c, "Token bundle not found or inactive", nil)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		utils.BadRequest(c, "Insufficient token balance", nil)
	case errors.Is(err, ledger.ErrRecipientNotFound):
		utils.NotFound(c, "Recipient not found")
	case errors.Is(err, ledger.ErrSelfTransfer):
		utils.BadRequest(c, "You cannot transfer tokens to yourself", nil)
	case errors.Is(err, ledger.ErrUnknownReference):
		utils.NotFound(c, "Payment reference not recognized")
	case errors.Is(err, ledger.ErrInvalidTransition):
		utils.Conflict(c, "Transaction is already settled", err.Error())
	case errors.Is(err, ledger.ErrConflict):
		utils.Conflict(c, "Duplicate request", nil)
	case errors.Is(err, ledger.ErrNotFound):
		utils.NotFound(c, "Record not found")
	default:
		utils.LogError("%s failed: %v", action, err)
		utils.InternalServerError(c, action+" failed", nil)
	}
}

// GetWalletBalance returns the authenticated user's wallet
func GetWalletBalance(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	wallet, err := LedgerService.Balance(c.Request.Context(), user.ID)
	if err != nil {
		handleLedgerError(c, err, "Fetch wallet")
		return
	}

	utils.Success(c, "Wallet fetched successfully", gin.H{
		"wallet": gin.H{
			"virtual_tokens":         wallet.VirtualTokens,
			"reward_tokens":          wallet.RewardTokens,
			"total_balance":          wallet.TotalBalance(),
			"total_spent_pkr":        wallet.TotalSpentPKR,
			"total_tokens_purchased": wallet.TotalTokensPurchased,
			"total_tokens_earned":    wallet.TotalTokensEarned,
			"total_tokens_spent":     wallet.TotalTokensSpent,
		},
	})
}

// GetWalletTransactions lists the user's transaction history, newest first
func GetWalletTransactions(c *gin.Context) {
	user := c.MustGet("user").(models.User)
	pagination := utils.NewPagination(c)

	filter := ledger.TransactionFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Limit:  pagination.Limit,
		Offset: pagination.Offset,
	}

	transactions, total, err := LedgerService.Transactions(c.Request.Context(), user.ID, filter)
	if err != nil {
		handleLedgerError(c, err, "Fetch transactions")
		return
	}

	pagination.SetTotal(total)
	utils.SendPaginatedResponse(c, transactions, pagination)
}

// TransferRequest represents a token transfer request body
type TransferRequest struct {
	RecipientEmail string `json:"recipient_email" binding:"required,email"`
	Amount         int    `json:"amount" binding:"required,gt=0"`
}

// TransferTokens moves reward tokens to another player. The optional
// X-Request-ID header makes retries safe.
func TransferTokens(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	requestID := c.GetHeader("X-Request-ID")
	result, err := LedgerService.Transfer(c.Request.Context(), user.ID, req.RecipientEmail, req.Amount, requestID)
	if err != nil {
		handleLedgerError(c, err, "Transfer")
		return
	}

	utils.LogInfo("User %d transferred %d reward tokens to %s", user.ID, req.Amount, req.RecipientEmail)
	utils.Success(c, "Transfer completed successfully", gin.H{
		"transfer_id": result.Out.TransferID,
		"amount":      req.Amount,
		"transaction": result.Out,
	})
}
