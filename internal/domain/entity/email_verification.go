package entity

import "time"

// EmailVerification tracks one email's in-flight OTP verification cycle.
// The plaintext code is never persisted, only its SHA-256 digest.
type EmailVerification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Email         string     `gorm:"size:100;not null;index" json:"email"`
	OTPHash       string     `gorm:"column:otp_hash;size:64;not null" json:"-"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expires_at"`
	Verified      bool       `gorm:"not null;default:false" json:"verified"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (EmailVerification) TableName() string {
	return "email_verifications"
}

func (e *EmailVerification) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
