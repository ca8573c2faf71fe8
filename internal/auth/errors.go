package auth

import "errors"

var (
	ErrMissingToken      = errors.New("missing bearer token")
	ErrInvalidToken      = errors.New("invalid bearer token")
	ErrAuthNotConfigured = errors.New("admin authentication is not configured")
	ErrForbidden         = errors.New("forbidden")
)

// IsUnauthorized reports errors that deny an admin request.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrAuthNotConfigured) ||
		errors.Is(err, ErrForbidden)
}
