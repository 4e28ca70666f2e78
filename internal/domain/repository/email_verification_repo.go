package repository

import (
	"time"

	"github.com/yourusername/dripster-api/internal/domain/entity"
)

// EmailVerificationRepository persists OTP verification cycles.
type EmailVerificationRepository interface {
	Create(verification *entity.EmailVerification) error
	// GetActiveByEmail returns the newest unverified, unexpired record
	// for the email, or apperrors.ErrNotFound.
	GetActiveByEmail(email string, now time.Time) (*entity.EmailVerification, error)
	RegisterFailedAttempt(id uint, at time.Time) error
	MarkVerified(id uint) error
	DeleteByEmail(email string) error
	// DeleteStale removes verified records and records expired before the cutoff.
	DeleteStale(expiredBefore time.Time) (int64, error)
}
