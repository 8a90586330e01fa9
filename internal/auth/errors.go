package auth

import "errors"

// Token-layer failures. These are surfaced to clients as a generic 401 so
// that the response does not reveal why verification failed.
var (
	ErrTokenMalformed   = errors.New("auth: malformed token")
	ErrTokenExpired     = errors.New("auth: token expired")
	ErrInvalidSignature = errors.New("auth: invalid token signature")
)

// Credential and session failures.
var (
	ErrBadCredentials      = errors.New("auth: bad credentials")
	ErrAccountInactive     = errors.New("auth: account is not activated")
	ErrAlreadyVerified     = errors.New("auth: account already verified")
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
)

// Authorization failures.
var (
	ErrUnauthenticated  = errors.New("auth: unauthenticated")
	ErrPermissionDenied = errors.New("auth: permission denied")
)

// Store-level failures.
var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
