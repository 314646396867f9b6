package controllers

import (
	"os"
	"time"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// AdminLoginRequest represents the admin login request
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AdminLogin handles admin authentication
func AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid input", err.Error())
		return
	}

	var admin models.Admin
	if err := config.DB.Where("email = ?", req.Email).First(&admin).Error; err != nil {
		utils.LogError("Admin not found for email: %s: %v", req.Email, err)
		utils.Unauthorized(c, "Invalid credentials")
		return
	}

	if !admin.IsActive {
		utils.LogError("Inactive admin account attempted login: %s", admin.Email)
		utils.Forbidden(c, "Admin account is inactive")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)); err != nil {
		utils.LogError("Invalid password for admin: %s", admin.Email)
		utils.Unauthorized(c, "Invalid credentials")
		return
	}

	admin.LastLogin = time.Now()
	if err := config.DB.Save(&admin).Error; err != nil {
		utils.LogError("Failed to update last login for admin: %s: %v", admin.Email, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id": admin.ID,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		utils.InternalServerError(c, "JWT secret not configured", nil)
		return
	}

	tokenString, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token", err.Error())
		return
	}

	utils.LogInfo("Admin login successful: %s", admin.Email)
	utils.Success(c, "Login successful", gin.H{
		"token": tokenString,
		"admin": gin.H{
			"id":        admin.ID,
			"email":     admin.Email,
			"firstName": admin.FirstName,
			"lastName":  admin.LastName,
		},
	})
}

// CreateSampleAdmin seeds the admin account from environment variables
func CreateSampleAdmin() error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(os.Getenv("ADMIN_PASSWORD")), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.Admin{
		Email:     os.Getenv("ADMIN_EMAIL"),
		Password:  string(hashedPassword),
		FirstName: os.Getenv("ADMIN_FIRST_NAME"),
		LastName:  os.Getenv("ADMIN_LAST_NAME"),
		IsActive:  true,
	}

	return config.DB.FirstOrCreate(&admin, models.Admin{Email: admin.Email}).Error
}

// AdminDashboard returns platform-wide counters for the admin overview
func AdminDashboard(c *gin.Context) {
	var totalUsers, totalTournaments, activeTournaments, totalPurchases int64
	config.DB.Model(&models.User{}).Count(&totalUsers)
	config.DB.Model(&models.Tournament{}).Count(&totalTournaments)
	config.DB.Model(&models.Tournament{}).
		Where("status IN ?", []string{models.TournamentStatusRegistrationOpen, models.TournamentStatusActive}).
		Count(&activeTournaments)
	config.DB.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TransactionTypePurchase, models.TransactionStatusCompleted).
		Count(&totalPurchases)

	var revenue decimal.NullDecimal
	config.DB.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TransactionTypePurchase, models.TransactionStatusCompleted).
		Select("COALESCE(SUM(amount_pkr), 0)").Scan(&revenue)

	var recentTransactions []models.Transaction
	config.DB.Order("created_at desc").Limit(10).Find(&recentTransactions)

	utils.Success(c, "Dashboard fetched successfully", gin.H{
		"total_users":         totalUsers,
		"total_tournaments":   totalTournaments,
		"active_tournaments":  activeTournaments,
		"total_purchases":     totalPurchases,
		"total_revenue_pkr":   revenue.Decimal,
		"recent_transactions": recentTransactions,
	})
}
