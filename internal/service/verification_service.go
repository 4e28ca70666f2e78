package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/yourusername/dripster-api/internal/domain/entity"
	"github.com/yourusername/dripster-api/internal/domain/repository"
	apperrors "github.com/yourusername/dripster-api/internal/pkg/errors"
)

// VerificationService implements the email OTP gate in front of signup:
// only addresses under the institutional domain may request a code, and
// a stored code is valid for one successful match within its TTL.
type VerificationService struct {
	verificationDB repository.EmailVerificationRepository
	emailService   EmailService
	allowedDomain  string
	otpTTL         time.Duration
	maxAttempts    int
}

func NewVerificationService(
	verificationDB repository.EmailVerificationRepository,
	emailService EmailService,
	allowedDomain string,
	otpTTL time.Duration,
	maxAttempts int,
) (*VerificationService, error) {
	if verificationDB == nil {
		return nil, fmt.Errorf("email verification repository is required")
	}
	if emailService == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if allowedDomain == "" {
		return nil, fmt.Errorf("allowed email domain is required")
	}
	if !strings.HasPrefix(allowedDomain, "@") {
		allowedDomain = "@" + allowedDomain
	}
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	return &VerificationService{
		verificationDB: verificationDB,
		emailService:   emailService,
		allowedDomain:  strings.ToLower(allowedDomain),
		otpTTL:         otpTTL,
		maxAttempts:    maxAttempts,
	}, nil
}

// AllowedDomain returns the institutional suffix, with the leading "@".
func (s *VerificationService) AllowedDomain() string {
	return s.allowedDomain
}

// SendOTP issues a fresh code for the email: all previously issued codes
// for the address are invalidated, the new code is stored hashed and
// delivered by mail. The call succeeds only if both the insert and the
// dispatch succeed.
func (s *VerificationService) SendOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !strings.HasSuffix(strings.ToLower(email), s.allowedDomain) {
		return fmt.Errorf("%w: email must end with %s", ErrInvalidEmailDomain, s.allowedDomain)
	}

	code, err := generateOTPCode()
	if err != nil {
		return fmt.Errorf("failed to generate OTP code: %w", err)
	}

	// Unconditional cleanup: every issuance starts from a clean slate and
	// invalidates all previously issued codes for this address.
	if err := s.verificationDB.DeleteByEmail(email); err != nil {
		return fmt.Errorf("failed to delete previous verifications: %w", err)
	}

	record := &entity.EmailVerification{
		Email:     email,
		OTPHash:   hashOTPCode(code),
		ExpiresAt: time.Now().Add(s.otpTTL),
		Verified:  false,
		Attempts:  0,
	}
	if err := s.verificationDB.Create(record); err != nil {
		return fmt.Errorf("failed to store verification record: %w", err)
	}

	if err := s.emailService.SendOTPEmail(ctx, email, code, s.otpTTL); err != nil {
		if errors.Is(err, ErrEmailDispatchFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrEmailDispatchFailed, err)
	}

	return nil
}

// VerifyOTP checks a submitted code against the email's active record.
// A missing, already-verified or expired record yields the same error as
// a wrong code would after reissue, so nothing leaks about issuance.
func (s *VerificationService) VerifyOTP(ctx context.Context, email, otp string) error {
	email = strings.TrimSpace(email)
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return fmt.Errorf("%w: empty OTP code", apperrors.ErrValidation)
	}

	now := time.Now()
	record, err := s.verificationDB.GetActiveByEmail(email, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return err
	}

	if record.Attempts >= s.maxAttempts {
		return ErrTooManyAttempts
	}

	submittedHash := hashOTPCode(otp)
	if subtle.ConstantTimeCompare([]byte(submittedHash), []byte(record.OTPHash)) != 1 {
		// The attempt is recorded before the error is returned, so the
		// budget cannot be bypassed by ignoring failures and retrying.
		if incErr := s.verificationDB.RegisterFailedAttempt(record.ID, now); incErr != nil {
			log.Printf("[VerificationService] failed to register attempt for id=%d: %v", record.ID, incErr)
		}
		return ErrInvalidCode
	}

	if err := s.verificationDB.MarkVerified(record.ID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Lost a race against a concurrent successful verify.
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("failed to mark verification complete: %w", err)
	}

	return nil
}

// generateOTPCode returns a uniformly random 6-digit code in
// [100000, 999999]; the space is exactly 900000 values and a leading
// zero is impossible by construction.
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

func hashOTPCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
