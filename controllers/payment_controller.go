package controllers

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/payments"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
)

// GetTokenBundles returns the active purchase catalog, cheapest first
func GetTokenBundles(c *gin.Context) {
	var bundles []models.TokenBundle
	if err := config.DB.Where("is_active = ?", true).Order("sort_order asc").Find(&bundles).Error; err != nil {
		utils.LogError("Failed to fetch token bundles: %v", err)
		utils.InternalServerError(c, "Failed to fetch token bundles", nil)
		return
	}

	utils.Success(c, "Token bundles fetched successfully", gin.H{"bundles": bundles})
}

// PaymentInitiateRequest represents a purchase initiation request body
type PaymentInitiateRequest struct {
	BundleID      uint   `json:"bundle_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=easypaisa jazzcash razorpay"`
	MobileNumber  string `json:"mobile_number"`
}

// InitiatePayment creates a pending purchase and asks the chosen provider to
// start collecting payment
func InitiatePayment(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	var req PaymentInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	mobile := req.MobileNumber
	if mobile == "" {
		mobile = user.MobileWalletNumber
	}
	if (req.PaymentMethod == models.PaymentMethodEasypaisa || req.PaymentMethod == models.PaymentMethodJazzCash) && mobile == "" {
		utils.BadRequest(c, "Mobile number is required for mobile wallet payments", nil)
		return
	}

	tx, bundle, err := LedgerService.InitiatePurchase(c.Request.Context(), user.ID, req.BundleID, req.PaymentMethod)
	if err != nil {
		handleLedgerError(c, err, "Initiate purchase")
		return
	}

	initReq := payments.InitiateRequest{
		ExternalRef:  *tx.ExternalRef,
		AmountPKR:    tx.AmountPKR.Decimal,
		MobileNumber: mobile,
		Description:  fmt.Sprintf("Gamers Arena - %s", bundle.Name),
	}

	var result *payments.InitiateResult
	switch req.PaymentMethod {
	case models.PaymentMethodEasypaisa:
		result, err = Easypaisa.Initiate(c.Request.Context(), initReq)
	case models.PaymentMethodJazzCash:
		result, err = JazzCash.Initiate(c.Request.Context(), initReq)
	case models.PaymentMethodRazorpay:
		result, err = Razorpay.CreateOrder(c.Request.Context(), initReq)
	}
	if err != nil {
		utils.LogError("Provider initiation failed for transaction %d: %v", tx.ID, err)
		// The purchase stays pending; the stale sweep will fail it if the
		// provider never answers.
		utils.InternalServerError(c, "Failed to initiate payment", err.Error())
		return
	}

	if req.PaymentMethod == models.PaymentMethodRazorpay {
		// Bind the order to this transaction now; verification later refuses
		// any confirmation naming a different order.
		if err := LedgerService.AttachPaymentReference(c.Request.Context(), tx.ID, result.ExternalID); err != nil {
			utils.LogError("Failed to record order id for transaction %d: %v", tx.ID, err)
			utils.InternalServerError(c, "Failed to initiate payment", nil)
			return
		}
	}

	utils.LogInfo("Payment initiated: transaction %d via %s", tx.ID, req.PaymentMethod)
	response := gin.H{
		"transaction_id": tx.ID,
		"external_ref":   tx.ExternalRef,
		"payment_method": req.PaymentMethod,
		"amount_pkr":     tx.AmountPKR.Decimal,
		"tokens":         tx.TokenAmount,
		"status":         tx.Status,
		"message":        result.Message,
	}
	if req.PaymentMethod == models.PaymentMethodRazorpay {
		response["razorpay_order_id"] = result.ExternalID
		response["key"] = Razorpay.KeyID()
	}
	utils.Success(c, "Payment request sent", response)
}

// CheckPaymentStatus reports where a purchase stands
func CheckPaymentStatus(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid transaction ID", nil)
		return
	}

	tx, err := LedgerService.Transaction(c.Request.Context(), uint(id))
	if err != nil || tx.UserID != user.ID {
		utils.NotFound(c, "Transaction not found")
		return
	}

	utils.Success(c, "Payment status fetched", gin.H{
		"transaction_id": tx.ID,
		"status":         tx.Status,
		"payment_method": tx.PaymentMethod,
		"amount_pkr":     tx.AmountPKR,
		"tokens":         tx.TokenAmount,
		"completed_at":   tx.CompletedAt,
	})
}

// RazorpayVerifyRequest represents the checkout confirmation body
type RazorpayVerifyRequest struct {
	TransactionID     uint   `json:"transaction_id" binding:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// VerifyRazorpayPayment settles a card purchase after checkout. The signature
// over order and payment id is what authenticates the confirmation.
func VerifyRazorpayPayment(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	var req RazorpayVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	tx, err := LedgerService.Transaction(c.Request.Context(), req.TransactionID)
	if err != nil || tx.UserID != user.ID || tx.ExternalRef == nil {
		utils.NotFound(c, "Transaction not found")
		return
	}

	if tx.PaymentReference == "" || tx.PaymentReference != req.RazorpayOrderID {
		utils.LogError("Razorpay order mismatch for transaction %d: got %s", tx.ID, req.RazorpayOrderID)
		utils.BadRequest(c, "Order does not belong to this transaction", nil)
		return
	}

	event, err := Razorpay.VerifyPayment(*tx.ExternalRef, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		utils.LogError("Razorpay signature verification failed for transaction %d", tx.ID)
		utils.BadRequest(c, "Payment verification failed", nil)
		return
	}

	settled, err := LedgerService.SettlePurchase(c.Request.Context(), event.ExternalRef, event.Status, event.PaymentReference, event.Cause)
	if err != nil {
		handleLedgerError(c, err, "Settle purchase")
		return
	}

	utils.LogInfo("Razorpay payment verified for transaction %d", settled.ID)
	utils.Success(c, "Payment verified successfully", gin.H{
		"transaction_id": settled.ID,
		"status":         settled.Status,
		"tokens":         settled.TokenAmount,
	})
}

// GetReceipt returns a purchase receipt as JSON, or as a PDF with ?format=pdf
func GetReceipt(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid transaction ID", nil)
		return
	}

	var tx models.Transaction
	if err := config.DB.Where("id = ? AND user_id = ? AND type = ?",
		id, user.ID, models.TransactionTypePurchase).First(&tx).Error; err != nil {
		utils.NotFound(c, "Transaction not found")
		return
	}

	var bundle models.TokenBundle
	baseTokens, bonusTokens := tx.TokenAmount, 0
	if tx.BundleID != nil {
		if err := config.DB.First(&bundle, *tx.BundleID).Error; err == nil {
			baseTokens, bonusTokens = bundle.Tokens, bundle.BonusTokens
		}
	}

	wallet, err := LedgerService.Balance(c.Request.Context(), user.ID)
	if err != nil {
		handleLedgerError(c, err, "Fetch wallet")
		return
	}

	purchasedAt := tx.CreatedAt
	if tx.CompletedAt != nil {
		purchasedAt = *tx.CompletedAt
	}

	if c.Query("format") == "pdf" {
		renderReceiptPDF(c, &tx, &user, baseTokens, bonusTokens)
		return
	}

	utils.Success(c, "Receipt fetched successfully", gin.H{
		"transaction_id":    tx.ID,
		"payment_method":    tx.PaymentMethod,
		"amount_pkr":        tx.AmountPKR,
		"tokens_purchased":  baseTokens,
		"bonus_tokens":      bonusTokens,
		"total_tokens":      tx.TokenAmount,
		"payment_reference": tx.PaymentReference,
		"status":            tx.Status,
		"purchased_at":      purchasedAt,
		"new_balance":       wallet.TotalBalance(),
	})
}

func renderReceiptPDF(c *gin.Context, tx *models.Transaction, user *models.User, baseTokens, bonusTokens int) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(100, 10, "Gamers Arena")
	pdf.SetFont("Arial", "", 12)
	pdf.Ln(8)
	pdf.Cell(100, 8, "Email: support@gamersarena.pk")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(100, 10, "PAYMENT RECEIPT")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(60, 8, "Receipt No: "+strconv.Itoa(int(tx.ID)))
	pdf.Cell(70, 8, "Date: "+tx.CreatedAt.Format("2006-01-02 15:04:05"))
	pdf.Ln(8)
	pdf.Cell(60, 8, "Payment Method: "+tx.PaymentMethod)
	pdf.Cell(70, 8, "Status: "+tx.Status)
	pdf.Ln(8)
	if tx.PaymentReference != "" {
		pdf.Cell(130, 8, "Payment Reference: "+tx.PaymentReference)
		pdf.Ln(8)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(100, 8, "Billed To:")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(100, 8, user.FirstName+" "+user.LastName)
	pdf.Ln(6)
	pdf.Cell(100, 8, user.Email)
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(70, 8, "Item", "1", 0, "", false, 0, "")
	pdf.CellFormat(40, 8, "Tokens", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Amount (PKR)", "1", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(70, 8, "Token purchase", "1", 0, "", false, 0, "")
	pdf.CellFormat(40, 8, strconv.Itoa(baseTokens), "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, tx.AmountPKR.Decimal.StringFixed(2), "1", 1, "R", false, 0, "")
	if bonusTokens > 0 {
		pdf.CellFormat(70, 8, "Bonus tokens", "1", 0, "", false, 0, "")
		pdf.CellFormat(40, 8, strconv.Itoa(bonusTokens), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, "0.00", "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(70, 8, "Total", "1", 0, "", false, 0, "")
	pdf.CellFormat(40, 8, strconv.Itoa(tx.TokenAmount), "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, tx.AmountPKR.Decimal.StringFixed(2), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		utils.LogError("Failed to generate receipt PDF for transaction %d: %v", tx.ID, err)
		utils.InternalServerError(c, "Failed to generate receipt", nil)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%d.pdf", tx.ID))
	c.Data(200, "application/pdf", buf.Bytes())
}
