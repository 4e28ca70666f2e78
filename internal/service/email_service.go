package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendOTPEmail(ctx context.Context, toEmail, code string, expiresIn time.Duration) error
}

// NoopEmailService is used for local development without mail credentials.
type NoopEmailService struct{}

func (s *NoopEmailService) SendOTPEmail(ctx context.Context, toEmail, code string, expiresIn time.Duration) error {
	log.Printf("[EmailService] noop send OTP to=%s code=%s", toEmail, code)
	return nil
}

const otpEmailSubject = "Your Dripster Verification Code"

func otpEmailText(code string, expiresIn time.Duration) string {
	return fmt.Sprintf("Your Dripster verification code is %s. This code will expire in %d minutes.",
		code, int(expiresIn.Minutes()))
}

func otpEmailHTML(code string, expiresIn time.Duration) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333; margin-bottom: 20px;">Verify Your Email</h2>
  <p style="color: #666; font-size: 16px; line-height: 1.5;">
    Welcome to Dripster! Please use the following verification code to complete your signup:
  </p>
  <div style="font-size: 32px; font-weight: bold; text-align: center; padding: 20px; margin: 30px 0; letter-spacing: 8px;">%s</div>
  <p style="color: #666; font-size: 14px;">This code will expire in %d minutes.</p>
  <p style="color: #999; font-size: 12px; margin-top: 30px;">
    If you didn't request this code, please ignore this email.
  </p>
</div>`, code, int(expiresIn.Minutes()))
}

// GmailEmailService sends mail through the Gmail REST API. Each send
// exchanges the long-lived refresh token for a fresh access token via
// the OAuth2 refresh-token grant; no token is cached across requests.
type GmailEmailService struct {
	clientID     string
	clientSecret string
	refreshToken string
	from         string
	tokenURL     string
	sendURL      string
	httpClient   *http.Client
}

func NewGmailEmailService(clientID, clientSecret, refreshToken, from string) (*GmailEmailService, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("gmail client id, client secret and refresh token are required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &GmailEmailService{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		from:         from,
		tokenURL:     "https://oauth2.googleapis.com/token",
		sendURL:      "https://gmail.googleapis.com/gmail/v1/users/me/messages/send",
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *GmailEmailService) SendOTPEmail(ctx context.Context, toEmail, code string, expiresIn time.Duration) error {
	if toEmail == "" || code == "" {
		return fmt.Errorf("toEmail and code are required")
	}

	accessToken, err := s.fetchAccessToken(ctx)
	if err != nil {
		return err
	}

	raw := encodeGmailMessage(s.from, toEmail, otpEmailSubject, otpEmailHTML(code, expiresIn))

	body, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return fmt.Errorf("failed to marshal gmail send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to create gmail send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: gmail send request failed: %v", ErrEmailDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: gmail send status=%d body=%s", ErrEmailDispatchFailed, resp.StatusCode, string(respBody))
	}

	return nil
}

// fetchAccessToken performs the OAuth2 refresh-token grant.
func (s *GmailEmailService) fetchAccessToken(ctx context.Context) (string, error) {
	values := url.Values{}
	values.Set("client_id", s.clientID)
	values.Set("client_secret", s.clientSecret)
	values.Set("refresh_token", s.refreshToken)
	values.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token refresh request failed: %v", ErrEmailDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("%w: token refresh status=%d body=%s", ErrEmailDispatchFailed, resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse token refresh response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: access_token not returned by token refresh", ErrEmailDispatchFailed)
	}

	return payload.AccessToken, nil
}

// encodeGmailMessage builds an RFC 2822 message and encodes it the way
// the Gmail API expects: base64url without padding.
func encodeGmailMessage(from, to, subject, htmlBody string) string {
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"Message-ID: <" + uuid.NewString() + "@dripster>",
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		htmlBody,
	}, "\r\n")
	return base64.RawURLEncoding.EncodeToString([]byte(msg))
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendOTPEmail(ctx context.Context, toEmail, code string, expiresIn time.Duration) error {
	if toEmail == "" || code == "" {
		return fmt.Errorf("toEmail and code are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: otpEmailSubject,
		Text:    otpEmailText(code, expiresIn),
		Html:    otpEmailHTML(code, expiresIn),
	}

	options := &resend.SendEmailOptions{}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("%w: resend send failed: %v", ErrEmailDispatchFailed, err)
	}

	return fmt.Errorf("%w: resend send failed after retries: %v", ErrEmailDispatchFailed, lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
