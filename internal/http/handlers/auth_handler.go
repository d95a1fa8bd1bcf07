package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/krishiconnect/backend/internal/http/handlers/common"
	"github.com/krishiconnect/backend/internal/models"
	"github.com/krishiconnect/backend/internal/service"
	"github.com/krishiconnect/backend/internal/validation"
)

// AuthHandler is the HTTP layer for registration, login, and the session
// lifecycle.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates the handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type locationPayload struct {
	State    string `json:"state"`
	District string `json:"district"`
	Village  string `json:"village"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		PhoneNumber string          `json:"phone_number" binding:"required"`
		Email       string          `json:"email"`
		Password    string          `json:"password" binding:"required"`
		Name        string          `json:"name" binding:"required"`
		Location    locationPayload `json:"location"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if req.Email != "" {
		if err := validation.ValidateEmail(req.Email); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateName(req.Name); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		Location: models.Location{
			State:    req.Location.State,
			District: req.Location.District,
			Village:  req.Location.Village,
		},
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	body := gin.H{"channel": result.Channel, "otp_sent": true}
	if result.Channel == service.ChannelEmail {
		body["message"] = "OTP sent to your email"
		body["otp_id"] = result.OTPID
		body["expires_in"] = int(result.ExpiresIn / time.Second)
	} else {
		body["message"] = "OTP sent to your phone"
		body["phone_number"] = result.PhoneNumber
	}
	c.JSON(http.StatusCreated, body)
}

// VerifyOTP handles POST /auth/verify-otp (phone channel).
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phone_number" binding:"required"`
		OTP         string `json:"otp" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateOTPCode(req.OTP); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.auth.CompleteRegistration(c.Request.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Registration completed",
		"user":    result.User,
		"tokens":  result.Tokens,
	})
}

// VerifyRegistrationOTP handles POST /auth/verify-registration-otp
// (email channel).
func (h *AuthHandler) VerifyRegistrationOTP(c *gin.Context) {
	var req struct {
		OTPID string `json:"otp_id" binding:"required"`
		OTP   string `json:"otp" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	otpID, err := uuid.Parse(req.OTPID)
	if err != nil {
		common.RespondBadRequest(c, "invalid otp_id")
		return
	}
	if err := validation.ValidateOTPCode(req.OTP); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.auth.CompleteRegistrationWithEmail(c.Request.Context(), otpID, req.OTP)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Email verified successfully",
		"user":    result.User,
		"tokens":  result.Tokens,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		Email       string `json:"email"`
		Password    string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if req.PhoneNumber == "" && req.Email == "" {
		common.RespondBadRequest(c, "phone_number or email is required")
		return
	}
	if req.PhoneNumber != "" {
		if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}
	if req.Email != "" {
		if err := validation.ValidateEmail(req.Email); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	result, err := h.auth.Login(c.Request.Context(), req.PhoneNumber, req.Email, req.Password)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    result.User,
		"tokens":  result.Tokens,
	})
}

// RefreshToken handles POST /auth/refresh-token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	accessToken, expiresIn, err := h.auth.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"expires_in":   int(expiresIn / time.Second),
	})
}

// Logout handles POST /auth/logout. Requires authentication.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	if err := h.auth.Logout(c.Request.Context(), userID, req.RefreshToken); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateEmail(req.Email); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.auth.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	body := gin.H{"message": result.Message}
	if result.OTPID != nil {
		body["otp_id"] = result.OTPID
		body["expires_in"] = int(result.ExpiresIn / time.Second)
	}
	c.JSON(http.StatusOK, body)
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		OTPID       string `json:"otp_id" binding:"required"`
		OTP         string `json:"otp" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	otpID, err := uuid.Parse(req.OTPID)
	if err != nil {
		common.RespondBadRequest(c, "invalid otp_id")
		return
	}
	if err := validation.ValidateOTPCode(req.OTP); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.auth.ResetPasswordWithOTP(c.Request.Context(), otpID, req.OTP, req.NewPassword); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

// ResendOTP handles POST /auth/resend-otp (email channel).
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req struct {
		OTPID string `json:"otp_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	otpID, err := uuid.Parse(req.OTPID)
	if err != nil {
		common.RespondBadRequest(c, "invalid otp_id")
		return
	}

	expiresIn, err := h.auth.ResendEmailOTP(c.Request.Context(), otpID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "OTP resent successfully",
		"expires_in": int(expiresIn / time.Second),
	})
}
