package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

func reportWindow(period string) (time.Time, time.Time, bool) {
	now := time.Now()
	switch period {
	case "day":
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return start, start.Add(24 * time.Hour), true
	case "week":
		end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999999, now.Location())
		start := end.AddDate(0, 0, -6)
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		return start, end, true
	case "month":
		return now.AddDate(0, 0, -30).Truncate(24 * time.Hour), now.Add(24 * time.Hour), true
	}
	return time.Time{}, time.Time{}, false
}

func completedPurchases(start, end time.Time) ([]models.Transaction, error) {
	var purchases []models.Transaction
	err := config.DB.Where("type = ? AND status = ? AND completed_at BETWEEN ? AND ?",
		models.TransactionTypePurchase, models.TransactionStatusCompleted, start, end).
		Order("completed_at asc").Find(&purchases).Error
	return purchases, err
}

// SalesReport summarizes completed token sales for a period
func SalesReport(c *gin.Context) {
	period := c.DefaultQuery("period", "day")
	start, end, ok := reportWindow(period)
	if !ok {
		utils.BadRequest(c, "Invalid period", "Period must be day, week, or month")
		return
	}

	purchases, err := completedPurchases(start, end)
	if err != nil {
		utils.LogError("Failed to fetch sales for report: %v", err)
		utils.InternalServerError(c, "Failed to generate report", nil)
		return
	}

	totalRevenue := decimal.Zero
	totalTokens := 0
	byMethod := map[string]int{}
	for _, p := range purchases {
		totalRevenue = totalRevenue.Add(p.AmountPKR.Decimal)
		totalTokens += p.TokenAmount
		byMethod[p.PaymentMethod]++
	}

	utils.Success(c, "Sales report generated", gin.H{
		"period":            period,
		"from":              start,
		"to":                end,
		"total_sales":       len(purchases),
		"total_revenue_pkr": totalRevenue,
		"total_tokens_sold": totalTokens,
		"by_payment_method": byMethod,
		"sales":             purchases,
	})
}

// DownloadSalesReportExcel exports the sales report as an Excel workbook
func DownloadSalesReportExcel(c *gin.Context) {
	period := c.DefaultQuery("period", "day")
	start, end, ok := reportWindow(period)
	if !ok {
		utils.BadRequest(c, "Invalid period", "Period must be day, week, or month")
		return
	}

	purchases, err := completedPurchases(start, end)
	if err != nil {
		utils.LogError("Failed to fetch sales for Excel export: %v", err)
		utils.InternalServerError(c, "Failed to generate report", nil)
		return
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Token Sales")
	if err != nil {
		utils.LogError("Failed to create Excel sheet: %v", err)
		utils.InternalServerError(c, "Failed to create Excel sheet", err.Error())
		return
	}

	headerInfo := sheet.AddRow()
	headerInfo.AddCell().SetString("GAMERS ARENA - Token Sales Report")
	headerInfo = sheet.AddRow()
	headerInfo.AddCell().SetString("Email: support@gamersarena.pk")
	headerInfo = sheet.AddRow()
	headerInfo.AddCell().SetString("Period: " + strings.ToUpper(period) + " | " + start.Format("2006-01-02") + " to " + end.Format("2006-01-02"))
	sheet.AddRow() // spacing

	headers := []string{"Transaction ID", "User ID", "Date", "Tokens", "Amount (PKR)", "Payment Method", "Payment Reference"}
	headerRow := sheet.AddRow()
	for _, h := range headers {
		headerRow.AddCell().SetString(h)
	}

	totalRevenue := decimal.Zero
	totalTokens := 0
	for _, p := range purchases {
		row := sheet.AddRow()
		row.AddCell().SetInt(int(p.ID))
		row.AddCell().SetInt(int(p.UserID))
		completedAt := p.CreatedAt
		if p.CompletedAt != nil {
			completedAt = *p.CompletedAt
		}
		row.AddCell().SetString(completedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetInt(p.TokenAmount)
		row.AddCell().SetString(p.AmountPKR.Decimal.StringFixed(2))
		row.AddCell().SetString(p.PaymentMethod)
		row.AddCell().SetString(p.PaymentReference)

		totalRevenue = totalRevenue.Add(p.AmountPKR.Decimal)
		totalTokens += p.TokenAmount
	}

	sheet.AddRow()
	totalRow := sheet.AddRow()
	totalRow.AddCell().SetString("TOTAL")
	totalRow.AddCell().SetString("")
	totalRow.AddCell().SetString("")
	totalRow.AddCell().SetInt(totalTokens)
	totalRow.AddCell().SetString(totalRevenue.StringFixed(2))

	filename := fmt.Sprintf("token-sales-%s-%s.xlsx", period, time.Now().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := file.Write(c.Writer); err != nil {
		utils.LogError("Failed to write Excel file: %v", err)
	}
}
