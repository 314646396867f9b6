package controllers

import (
	"os"
	"strings"
	"time"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// GetProfile returns the authenticated user's profile with a wallet summary
func GetProfile(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		utils.Unauthorized(c, "User not found in context")
		return
	}
	userModel := user.(models.User)

	wallet, err := LedgerService.Balance(c.Request.Context(), userModel.ID)
	if err != nil {
		utils.LogError("Failed to load wallet for user %d: %v", userModel.ID, err)
		utils.InternalServerError(c, "Failed to load wallet", nil)
		return
	}

	utils.Success(c, "Profile retrieved successfully", gin.H{
		"user": gin.H{
			"id":                   userModel.ID,
			"username":             userModel.Username,
			"email":                userModel.Email,
			"first_name":           userModel.FirstName,
			"last_name":            userModel.LastName,
			"phone":                userModel.Phone,
			"mobile_wallet_number": userModel.MobileWalletNumber,
			"player_id":            userModel.PlayerID,
			"avatar_url":           userModel.AvatarURL,
			"created_at":           userModel.CreatedAt,
		},
		"wallet": gin.H{
			"virtual_tokens": wallet.VirtualTokens,
			"reward_tokens":  wallet.RewardTokens,
			"total_balance":  wallet.TotalBalance(),
		},
	})
}

// UpdateProfileRequest represents the profile update request
type UpdateProfileRequest struct {
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	Phone              string `json:"phone"`
	MobileWalletNumber string `json:"mobile_wallet_number"`
	PlayerID           string `json:"player_id"`
}

// UpdateProfile updates the mutable profile fields
func UpdateProfile(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		utils.Unauthorized(c, "User not found in context")
		return
	}
	userModel := user.(models.User)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.FirstName != "" {
		if valid, msg := utils.ValidateName(req.FirstName); !valid {
			utils.BadRequest(c, msg, nil)
			return
		}
		updates["first_name"] = utils.Title(strings.ToLower(strings.TrimSpace(req.FirstName)))
	}
	if req.LastName != "" {
		if valid, msg := utils.ValidateName(req.LastName); !valid {
			utils.BadRequest(c, msg, nil)
			return
		}
		updates["last_name"] = utils.Title(strings.ToLower(strings.TrimSpace(req.LastName)))
	}
	if req.Phone != "" {
		valid, formatted := utils.ValidatePhone(req.Phone)
		if !valid {
			utils.BadRequest(c, formatted, nil)
			return
		}
		updates["phone"] = formatted
	}
	if req.MobileWalletNumber != "" {
		valid, formatted := utils.ValidatePhone(req.MobileWalletNumber)
		if !valid {
			utils.BadRequest(c, formatted, nil)
			return
		}
		updates["mobile_wallet_number"] = formatted
	}
	if req.PlayerID != "" {
		updates["player_id"] = strings.TrimSpace(req.PlayerID)
	}

	if len(updates) == 0 {
		utils.BadRequest(c, "Nothing to update", nil)
		return
	}

	if err := config.DB.Model(&userModel).Updates(updates).Error; err != nil {
		utils.LogError("Failed to update profile for user %d: %v", userModel.ID, err)
		utils.InternalServerError(c, "Failed to update profile", nil)
		return
	}

	utils.LogInfo("Profile updated for user %d", userModel.ID)
	utils.Success(c, "Profile updated successfully", gin.H{"updated": updates})
}

// UpdateEmailRequest represents the email update request
type UpdateEmailRequest struct {
	NewEmail string `json:"new_email" binding:"required,email"`
}

// UpdateEmail initiates an email change by sending an OTP to the new address
func UpdateEmail(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		utils.Unauthorized(c, "User not found in context")
		return
	}
	userModel := user.(models.User)

	var req UpdateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}
	if valid, msg := utils.ValidateEmail(req.NewEmail); !valid {
		utils.BadRequest(c, msg, nil)
		return
	}

	var existingUser models.User
	if err := config.DB.Where("email = ?", req.NewEmail).First(&existingUser).Error; err == nil {
		utils.Conflict(c, "Email already exists", nil)
		return
	}

	otp := utils.GenerateOTP()
	if err := config.DB.Create(&models.UserOTP{
		UserID:    userModel.ID,
		Code:      otp,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}).Error; err != nil {
		utils.LogError("Failed to store OTP for user %d: %v", userModel.ID, err)
		utils.InternalServerError(c, "Failed to generate verification code", nil)
		return
	}

	if err := utils.SendOTP(req.NewEmail, otp); err != nil {
		utils.LogError("Failed to send OTP email to %s: %v", req.NewEmail, err)
		utils.InternalServerError(c, "Failed to send verification email", nil)
		return
	}

	session := sessions.Default(c)
	session.Set("new_email", req.NewEmail)
	session.Save()

	utils.LogInfo("Email change initiated for user %d", userModel.ID)
	utils.Success(c, "Verification code sent to new email address", gin.H{
		"email":      req.NewEmail,
		"expires_in": 900,
	})
}

// VerifyEmailUpdateRequest represents the email update verification request
type VerifyEmailUpdateRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// VerifyEmailUpdate verifies the OTP and applies the email change
func VerifyEmailUpdate(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		utils.Unauthorized(c, "User not found in context")
		return
	}
	userModel := user.(models.User)

	var req VerifyEmailUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	session := sessions.Default(c)
	newEmail := session.Get("new_email")
	if newEmail == nil {
		utils.BadRequest(c, "Email update not initiated", "Please initiate email update first")
		return
	}

	var userOTP models.UserOTP
	if err := config.DB.Where("user_id = ? AND code = ? AND expires_at > ?",
		userModel.ID, req.OTP, time.Now()).First(&userOTP).Error; err != nil {
		utils.BadRequest(c, "Invalid or expired OTP", nil)
		return
	}

	if err := config.DB.Model(&userModel).Update("email", newEmail).Error; err != nil {
		utils.LogError("Failed to update email for user %d: %v", userModel.ID, err)
		utils.InternalServerError(c, "Failed to update email", nil)
		return
	}
	config.DB.Where("user_id = ?", userModel.ID).Delete(&models.UserOTP{})

	session.Delete("new_email")
	session.Save()

	utils.LogInfo("Email updated for user %d", userModel.ID)
	utils.Success(c, "Email updated successfully", gin.H{
		"user": gin.H{"id": userModel.ID, "email": newEmail},
	})
}

// ChangePasswordRequest represents the password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// ChangePassword verifies the current password and sets a new one
func ChangePassword(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		utils.Unauthorized(c, "User not found in context")
		return
	}
	userModel := user.(models.User)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		utils.BadRequest(c, "Passwords do not match", nil)
		return
	}
	if valid, msg := utils.ValidatePassword(req.NewPassword); !valid {
		utils.BadRequest(c, msg, nil)
		return
	}
	if !utils.CheckPassword(req.CurrentPassword, userModel.Password) {
		utils.Unauthorized(c, "Current password is incorrect")
		return
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.InternalServerError(c, "Failed to process password", nil)
		return
	}
	if err := config.DB.Model(&userModel).Update("password", hashed).Error; err != nil {
		utils.LogError("Failed to update password for user %d: %v", userModel.ID, err)
		utils.InternalServerError(c, "Failed to update password", nil)
		return
	}

	utils.LogInfo("Password changed for user %d", userModel.ID)
	utils.Success(c, "Password updated successfully", nil)
}

// ForgotPasswordRequest represents the forgot password request
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword emails a short-lived reset link to the account address
func ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", "Please provide a valid email address")
		return
	}

	var user models.User
	if err := config.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		// Do not reveal whether the address has an account.
		utils.Success(c, "If an account exists, a reset link has been sent", nil)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"purpose": "password_reset",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		utils.LogError("Failed to sign reset token for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Failed to generate reset token", nil)
		return
	}

	if err := utils.SendPasswordResetEmail(user.Email, tokenString); err != nil {
		utils.LogError("Failed to send reset email to %s: %v", user.Email, err)
		utils.InternalServerError(c, "Failed to send reset email", nil)
		return
	}

	utils.LogInfo("Password reset link sent for user %d", user.ID)
	utils.Success(c, "If an account exists, a reset link has been sent", nil)
}

// ResetPasswordRequest represents the reset password request
type ResetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// ResetPassword validates the reset token and sets the new password
func ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		utils.BadRequest(c, "Passwords do not match", nil)
		return
	}
	if valid, msg := utils.ValidatePassword(req.NewPassword); !valid {
		utils.BadRequest(c, msg, nil)
		return
	}

	token, err := jwt.Parse(req.Token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		utils.Unauthorized(c, "Invalid or expired reset token")
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != "password_reset" {
		utils.Unauthorized(c, "Invalid reset token")
		return
	}
	userID := uint(claims["user_id"].(float64))

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.InternalServerError(c, "Failed to process password", nil)
		return
	}
	if err := config.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("password", hashed).Error; err != nil {
		utils.LogError("Failed to reset password for user %d: %v", userID, err)
		utils.InternalServerError(c, "Failed to reset password", nil)
		return
	}

	utils.LogInfo("Password reset completed for user %d", userID)
	utils.Success(c, "Password has been reset. Please log in with your new password", nil)
}
