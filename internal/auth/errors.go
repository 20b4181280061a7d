package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrMissingCredentials  = errors.New("email and password are required")
	ErrMissingFields       = errors.New("email, password and userId are required")
	ErrInvalidEmailFormat  = errors.New("invalid email format")
	ErrAlreadyRegistered   = errors.New("user already exists with password authentication")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserMismatch        = errors.New("user id does not match email")
	ErrCredentialRequired  = errors.New("google credential is required")
	ErrInvalidIdentity     = errors.New("invalid google credential")
	ErrIdentityUnavailable = errors.New("google sign-in is not configured")
)

// NeedsPasswordError is returned by Login for accounts that only have an
// external identity linked.
type NeedsPasswordError struct {
	UserID uuid.UUID
}

func (e *NeedsPasswordError) Error() string {
	return fmt.Sprintf("user %s has no password set", e.UserID)
}

// isRejection reports whether err is an expected client-side failure rather
// than an internal one.
func isRejection(err error) bool {
	var needsPassword *NeedsPasswordError
	switch {
	case errors.As(err, &needsPassword),
		errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrInvalidEmailFormat),
		errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrUserMismatch),
		errors.Is(err, ErrCredentialRequired),
		errors.Is(err, ErrInvalidIdentity),
		errors.Is(err, ErrIdentityUnavailable):
		return true
	}
	return false
}
