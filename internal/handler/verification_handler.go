package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yourusername/dripster-api/internal/pkg/errors"
	"github.com/yourusername/dripster-api/internal/service"
)

type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

// OTPVerifier is the slice of VerificationService the handler needs.
type OTPVerifier interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, otp string) error
	AllowedDomain() string
}

// VerificationHandler exposes the OTP issue/verify endpoints.
type VerificationHandler struct {
	verificationService OTPVerifier
}

func NewVerificationHandler(verificationService OTPVerifier) *VerificationHandler {
	return &VerificationHandler{verificationService: verificationService}
}

// SendOTP обрабатывает запрос на выдачу кода подтверждения
func (h *VerificationHandler) SendOTP(c *gin.Context) {
	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error"})
		return
	}

	if err := h.verificationService.SendOTP(c.Request.Context(), req.Email); err != nil {
		h.handleVerificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "OTP sent to your email"})
}

// VerifyOTP обрабатывает запрос на проверку кода подтверждения
func (h *VerificationHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error"})
		return
	}

	if err := h.verificationService.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		h.handleVerificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email verified successfully"})
}

// handleVerificationError преобразует ошибки сервиса в HTTP-ответы
func (h *VerificationHandler) handleVerificationError(c *gin.Context, err error) {
	log.Printf("[VerificationHandler] error: %v", err)

	switch {
	case errors.Is(err, service.ErrInvalidEmailDomain):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Please use your SSN student email (" + h.verificationService.AllowedDomain() + ")",
			"error_type": "invalid_email_domain",
		})
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid or expired OTP code",
			"error_type": "invalid_or_expired_code",
		})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid OTP code",
			"error_type": "invalid_code",
		})
	case errors.Is(err, service.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "Too many failed attempts. Please request a new code.",
			"error_type": "too_many_attempts",
		})
	case errors.Is(err, service.ErrEmailDispatchFailed):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to send OTP. Please try again.",
			"error_type": "email_dispatch_failed",
		})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid request data",
			"error_type": "validation_error",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error. Please try again.",
			"error_type": "internal_server_error",
		})
	}
}
