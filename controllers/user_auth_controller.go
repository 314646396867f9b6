package controllers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username        string `json:"username" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
	PlayerID        string `json:"player_id"`
}

// RegistrationData represents the registration data stored in session
type RegistrationData struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	OTP        string `json:"otp"`
	OTPExpires int64  `json:"otp_expires"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
}

func generateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// RegisterUser starts registration: validates input, emails an OTP, and hands
// back a short-lived registration token holding the pending account details.
func RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Registration attempt failed - Invalid request format: %v", err)
		utils.BadRequest(c, "Invalid request format", "Please check your input data and ensure all required fields are provided correctly.")
		return
	}

	utils.LogInfo("Registration attempt for email: %s, username: %s", req.Email, req.Username)

	if valid, msg := utils.ValidateUsername(req.Username); !valid {
		utils.BadRequest(c, "Invalid username", msg)
		return
	}
	if valid, msg := utils.ValidateEmail(req.Email); !valid {
		utils.BadRequest(c, "Invalid email", msg)
		return
	}
	if valid, msg := utils.ValidatePassword(req.Password); !valid {
		utils.BadRequest(c, "Invalid password", msg)
		return
	}
	if req.Password != req.ConfirmPassword {
		utils.BadRequest(c, "Passwords do not match", "Password and confirm password must be the same.")
		return
	}
	if req.Phone != "" {
		valid, formatted := utils.ValidatePhone(req.Phone)
		if !valid {
			utils.BadRequest(c, "Invalid phone", formatted)
			return
		}
		req.Phone = formatted
	}

	// Check if username or email already exists
	var existingUser models.User
	if err := config.DB.Where("username = ?", req.Username).First(&existingUser).Error; err == nil {
		utils.Conflict(c, "Username already exists", "The username you've chosen is already taken. Please choose a different username.")
		return
	}
	if err := config.DB.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		utils.Conflict(c, "Email already exists", "An account with this email address already exists. Please use a different email or try logging in.")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.LogError("Registration attempt failed - Password hashing error for email: %s - %v", req.Email, err)
		utils.InternalServerError(c, "Failed to process password", "An error occurred while securing your password. Please try again later.")
		return
	}

	otp := generateOTP()
	otpExpiry := time.Now().Add(15 * time.Minute).Unix()
	regExpiry := time.Now().Add(15 * time.Minute).Unix()

	// Registration token carries the pending account, never the OTP
	claims := jwt.MapClaims{
		"username":   req.Username,
		"email":      req.Email,
		"password":   string(hashedPassword),
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"phone":      req.Phone,
		"player_id":  req.PlayerID,
		"exp":        regExpiry,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		utils.LogError("Registration attempt failed - JWT generation error for email: %s - %v", req.Email, err)
		utils.InternalServerError(c, "Failed to generate registration token", err.Error())
		return
	}

	session := sessions.Default(c)
	session.Set("registration_otp", otp)
	session.Set("registration_otp_expires", otpExpiry)
	session.Set("registration_email", req.Email)
	if err := session.Save(); err != nil {
		utils.LogError("Registration attempt failed - Session save error for email: %s - %v", req.Email, err)
		utils.InternalServerError(c, "Failed to save session", err.Error())
		return
	}

	utils.LogInfo("Sending registration OTP to email: %s", req.Email)
	if err := utils.SendOTP(req.Email, otp); err != nil {
		utils.LogError("Registration attempt failed - OTP email error for email: %s - %v", req.Email, err)
		utils.InternalServerError(c, "Failed to send verification email", "An error occurred while sending your verification email. Please try again later.")
		return
	}

	utils.Success(c, "OTP sent to your email. Please verify to complete registration.", gin.H{
		"registration_token": tokenString,
		"expires_in":         900,
	})
}

// VerifyOTP completes registration and creates the user with an empty wallet
func VerifyOTP(c *gin.Context) {
	var req struct {
		OTP               string `json:"otp" binding:"required"`
		RegistrationToken string `json:"registration_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", "Please provide OTP")
		return
	}

	regToken := req.RegistrationToken
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			regToken = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if regToken == "" {
		utils.BadRequest(c, "Registration token missing", "Registration token not provided")
		return
	}

	token, err := jwt.Parse(regToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		utils.LogError("OTP verification failed - Invalid registration token: %v", err)
		utils.BadRequest(c, "Invalid registration token", "Please register again")
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		utils.BadRequest(c, "Invalid registration token", "Please register again")
		return
	}

	session := sessions.Default(c)
	storedOTP, _ := session.Get("registration_otp").(string)
	otpExpires, _ := session.Get("registration_otp_expires").(int64)
	if storedOTP == "" || time.Now().Unix() > otpExpires {
		utils.BadRequest(c, "OTP expired", "Please register again to receive a new OTP")
		return
	}
	if req.OTP != storedOTP {
		utils.LogError("OTP verification failed - Wrong OTP for email: %v", claims["email"])
		utils.BadRequest(c, "Incorrect OTP", "The OTP you entered is incorrect")
		return
	}

	user := models.User{
		Username:   fmt.Sprint(claims["username"]),
		Email:      fmt.Sprint(claims["email"]),
		Password:   fmt.Sprint(claims["password"]),
		FirstName:  fmt.Sprint(claims["first_name"]),
		LastName:   fmt.Sprint(claims["last_name"]),
		Phone:      fmt.Sprint(claims["phone"]),
		PlayerID:   fmt.Sprint(claims["player_id"]),
		IsVerified: true,
	}
	if err := config.DB.Create(&user).Error; err != nil {
		utils.LogError("OTP verification failed - User creation error: %v", err)
		utils.InternalServerError(c, "Failed to create account", err.Error())
		return
	}

	if _, err := LedgerService.Balance(c.Request.Context(), user.ID); err != nil {
		utils.LogError("Failed to create wallet for user %d: %v", user.ID, err)
	}

	session.Delete("registration_otp")
	session.Delete("registration_otp_expires")
	session.Delete("registration_email")
	_ = session.Save()

	utils.LogInfo("User registered successfully: %s", user.Email)
	utils.Created(c, "Registration complete", gin.H{
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginUser handles user login
func LoginUser(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid email or password", err.Error())
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if valid, msg := utils.ValidateEmail(req.Email); !valid {
		utils.BadRequest(c, "Invalid email", msg)
		return
	}

	var user models.User
	if err := config.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		utils.LogError("Login attempt failed - User not found: %s", req.Email)
		utils.Unauthorized(c, "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.LogError("Login attempt failed - Invalid password for user: %s", req.Email)
		utils.Unauthorized(c, "Invalid credentials")
		return
	}

	if user.IsBlocked {
		utils.LogError("Login attempt failed - Blocked account: %s", req.Email)
		utils.Forbidden(c, "Account is blocked")
		return
	}

	user.LastLoginAt = time.Now()
	if err := config.DB.Save(&user).Error; err != nil {
		utils.LogError("Failed to update last login time for user: %s", req.Email)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token", err.Error())
		return
	}

	utils.LogInfo("User logged in successfully: %s", req.Email)
	utils.Success(c, "Login successful", gin.H{
		"token": tokenString,
		"user": gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"email":     user.Email,
			"player_id": user.PlayerID,
		},
	})
}

// LogoutUser invalidates the presented token until its natural expiry
func LogoutUser(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	tokenString := strings.Replace(authHeader, "Bearer ", "", 1)
	if tokenString == "" || tokenString == authHeader {
		utils.BadRequest(c, "No token provided", nil)
		return
	}

	blacklisted := models.BlacklistedToken{
		Token:     tokenString,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := config.DB.Create(&blacklisted).Error; err != nil {
		utils.LogError("Failed to blacklist token: %v", err)
		utils.InternalServerError(c, "Failed to logout", err.Error())
		return
	}

	utils.Success(c, "Logged out successfully", nil)
}
