package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/dripster-api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestGinContext создает *gin.Context для тестов с JSON body
func newTestGinContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()

	var req *http.Request
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, path, bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

// parseJSONResponse парсит JSON ответ из *httptest.ResponseRecorder
func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err, "Response body should be valid JSON: %s", w.Body.String())
	return resp
}

// MockOTPVerifier реализует OTPVerifier
type MockOTPVerifier struct {
	mock.Mock
}

func (m *MockOTPVerifier) SendOTP(ctx context.Context, email string) error {
	args := m.Called(email)
	return args.Error(0)
}

func (m *MockOTPVerifier) VerifyOTP(ctx context.Context, email, otp string) error {
	args := m.Called(email, otp)
	return args.Error(0)
}

func (m *MockOTPVerifier) AllowedDomain() string {
	return "@ssn.edu.in"
}

// ============================================================================
// Request validation tests — handler возвращает 400 до вызова сервиса
// ============================================================================

func TestSendOTP_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "empty body", body: nil},
		{name: "missing email", body: map[string]string{}},
		{name: "invalid email format", body: map[string]string{"email": "not-an-email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := new(MockOTPVerifier)
			h := NewVerificationHandler(verifier)

			c, w := newTestGinContext(http.MethodPost, "/api/auth/send-otp", tt.body)
			h.SendOTP(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := parseJSONResponse(t, w)
			assert.Equal(t, "validation_error", resp["error_type"])
			verifier.AssertNotCalled(t, "SendOTP", mock.Anything)
		})
	}
}

func TestVerifyOTP_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "empty body", body: nil},
		{name: "missing otp", body: map[string]string{"email": "student@ssn.edu.in"}},
		{name: "otp too short", body: map[string]string{"email": "student@ssn.edu.in", "otp": "123"}},
		{name: "otp not numeric", body: map[string]string{"email": "student@ssn.edu.in", "otp": "12a456"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := new(MockOTPVerifier)
			h := NewVerificationHandler(verifier)

			c, w := newTestGinContext(http.MethodPost, "/api/auth/verify-otp", tt.body)
			h.VerifyOTP(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			verifier.AssertNotCalled(t, "VerifyOTP", mock.Anything, mock.Anything)
		})
	}
}

// ============================================================================
// Error mapping
// ============================================================================

func TestSendOTP_ErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		serviceErr    error
		wantStatus    int
		wantErrorType string
	}{
		{
			name:          "invalid domain",
			serviceErr:    service.ErrInvalidEmailDomain,
			wantStatus:    http.StatusBadRequest,
			wantErrorType: "invalid_email_domain",
		},
		{
			name:          "dispatch failure",
			serviceErr:    service.ErrEmailDispatchFailed,
			wantStatus:    http.StatusInternalServerError,
			wantErrorType: "email_dispatch_failed",
		},
		{
			name:          "storage failure",
			serviceErr:    assert.AnError,
			wantStatus:    http.StatusInternalServerError,
			wantErrorType: "internal_server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := new(MockOTPVerifier)
			verifier.On("SendOTP", "student@ssn.edu.in").Return(tt.serviceErr)
			h := NewVerificationHandler(verifier)

			c, w := newTestGinContext(http.MethodPost, "/api/auth/send-otp",
				map[string]string{"email": "student@ssn.edu.in"})
			h.SendOTP(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := parseJSONResponse(t, w)
			assert.Equal(t, tt.wantErrorType, resp["error_type"])
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestVerifyOTP_ErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		serviceErr    error
		wantStatus    int
		wantErrorType string
	}{
		{
			name:          "invalid or expired",
			serviceErr:    service.ErrInvalidOrExpiredCode,
			wantStatus:    http.StatusBadRequest,
			wantErrorType: "invalid_or_expired_code",
		},
		{
			name:          "mismatch",
			serviceErr:    service.ErrInvalidCode,
			wantStatus:    http.StatusBadRequest,
			wantErrorType: "invalid_code",
		},
		{
			name:          "attempts exhausted",
			serviceErr:    service.ErrTooManyAttempts,
			wantStatus:    http.StatusTooManyRequests,
			wantErrorType: "too_many_attempts",
		},
		{
			name:          "storage failure",
			serviceErr:    assert.AnError,
			wantStatus:    http.StatusInternalServerError,
			wantErrorType: "internal_server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := new(MockOTPVerifier)
			verifier.On("VerifyOTP", "student@ssn.edu.in", "123456").Return(tt.serviceErr)
			h := NewVerificationHandler(verifier)

			c, w := newTestGinContext(http.MethodPost, "/api/auth/verify-otp",
				map[string]string{"email": "student@ssn.edu.in", "otp": "123456"})
			h.VerifyOTP(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := parseJSONResponse(t, w)
			assert.Equal(t, tt.wantErrorType, resp["error_type"])
		})
	}
}

// ============================================================================
// Success paths
// ============================================================================

func TestSendOTP_Success(t *testing.T) {
	verifier := new(MockOTPVerifier)
	verifier.On("SendOTP", "student@ssn.edu.in").Return(nil)
	h := NewVerificationHandler(verifier)

	c, w := newTestGinContext(http.MethodPost, "/api/auth/send-otp",
		map[string]string{"email": "student@ssn.edu.in"})
	h.SendOTP(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "OTP sent to your email", resp["message"])
	verifier.AssertExpectations(t)
}

func TestVerifyOTP_Success(t *testing.T) {
	verifier := new(MockOTPVerifier)
	verifier.On("VerifyOTP", "student@ssn.edu.in", "654321").Return(nil)
	h := NewVerificationHandler(verifier)

	c, w := newTestGinContext(http.MethodPost, "/api/auth/verify-otp",
		map[string]string{"email": "student@ssn.edu.in", "otp": "654321"})
	h.VerifyOTP(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Email verified successfully", resp["message"])
	verifier.AssertExpectations(t)
}
