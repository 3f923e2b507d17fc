package auth

import "errors"

// Sentinel errors returned by the auth subsystem. The HTTP layer maps these
// to response codes; everything else surfaces as ErrUnavailable.
var (
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
	ErrAccountLocked          = errors.New("auth: account locked")
	ErrAccountDisabled        = errors.New("auth: account disabled")
	ErrWeakPassword           = errors.New("auth: password too weak")
	ErrEmailAlreadyRegistered = errors.New("auth: email already registered")
	ErrTokenExpired           = errors.New("auth: token expired")
	ErrTokenMalformed         = errors.New("auth: token malformed")
	ErrTokenSignatureInvalid  = errors.New("auth: token signature invalid")
	ErrTokenTypeMismatch      = errors.New("auth: token type mismatch")
	ErrSessionRevoked         = errors.New("auth: session revoked")
	ErrTokenAlreadyUsed       = errors.New("auth: reset token already used")
	ErrInsufficientPermission = errors.New("auth: insufficient permission")
	ErrRateLimited            = errors.New("auth: rate limited")
	ErrNotFound               = errors.New("auth: not found")
	ErrInvalidInput           = errors.New("auth: invalid input")
	ErrUnavailable            = errors.New("auth: service unavailable")
)
