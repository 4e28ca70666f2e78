package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/dripster-api/internal/domain/entity"
	apperrors "github.com/yourusername/dripster-api/internal/pkg/errors"
	"gorm.io/gorm"
)

type EmailVerificationRepo struct {
	db *gorm.DB
}

func NewEmailVerificationRepo(db *gorm.DB) *EmailVerificationRepo {
	return &EmailVerificationRepo{db: db}
}

func (r *EmailVerificationRepo) Create(verification *entity.EmailVerification) error {
	return r.db.Create(verification).Error
}

func (r *EmailVerificationRepo) GetActiveByEmail(email string, now time.Time) (*entity.EmailVerification, error) {
	var verification entity.EmailVerification
	err := r.db.
		Where("email = ? AND verified = ? AND expires_at > ?", email, false, now).
		Order("created_at DESC").
		First(&verification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active verification: %w", err)
	}
	return &verification, nil
}

func (r *EmailVerificationRepo) RegisterFailedAttempt(id uint, at time.Time) error {
	return r.db.Model(&entity.EmailVerification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": at,
		}).Error
}

// MarkVerified flips the record exactly once. The verified = false guard
// keeps success single-use when two verify calls race.
func (r *EmailVerificationRepo) MarkVerified(id uint) error {
	res := r.db.Model(&entity.EmailVerification{}).
		Where("id = ? AND verified = ?", id, false).
		Update("verified", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *EmailVerificationRepo) DeleteByEmail(email string) error {
	return r.db.Where("email = ?", email).Delete(&entity.EmailVerification{}).Error
}

func (r *EmailVerificationRepo) DeleteStale(expiredBefore time.Time) (int64, error) {
	res := r.db.
		Where("verified = ? OR expires_at < ?", true, expiredBefore).
		Delete(&entity.EmailVerification{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
