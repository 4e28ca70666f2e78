package service

import "errors"

// Verification flow specific errors used by handlers for stable error_type mapping.
var (
	ErrInvalidEmailDomain = errors.New("invalid_email_domain")
	// ErrInvalidOrExpiredCode covers never-issued, already-verified and
	// expired records alike, so a caller cannot probe whether a code exists.
	ErrInvalidOrExpiredCode = errors.New("invalid_or_expired_code")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrTooManyAttempts      = errors.New("too_many_attempts")
	ErrEmailDispatchFailed  = errors.New("email_dispatch_failed")
)
