package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
// All coordination under concurrency is delegated to the backing store:
// counters and single-use flags are conditional updates, never
// read-then-write in application code.
type Store interface {
	Users() UserStore
	Sessions() SessionStore
	Grants() GrantStore
	ResetTokens() ResetTokenStore
	Audit() AuditStore
}

// UserStore manages identity records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// RecordLoginFailure atomically increments the failed-login counter and,
	// when the new value reaches lockThreshold, flips status to locked in the
	// same statement. Returns the post-increment count and whether the account
	// is now (or already was) locked.
	RecordLoginFailure(ctx context.Context, id string, lockThreshold int) (failures int, locked bool, err error)

	// RecordLoginSuccess resets the failed counter and stamps last_login_at.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error

	// UpdatePassword rotates the hash and clears the failed-login counter,
	// so a completed reset starts the lockout count from zero.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	UpdateStatus(ctx context.Context, id, status string) error
}

// SessionStore manages durable session rows.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)

	// Revoke is idempotent: revoking an already-revoked or nonexistent
	// session is not an error.
	Revoke(ctx context.Context, id string) error

	// RevokeAllForUser revokes every outstanding session in one sweep and
	// returns the number of rows it touched.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// GrantStore manages permission grant rows.
type GrantStore interface {
	Create(ctx context.Context, g *PermissionGrant) error
	Find(ctx context.Context, id string) (*PermissionGrant, error)
	Revoke(ctx context.Context, id, revokedBy string) error
	ListForUser(ctx context.Context, userID string) ([]PermissionGrant, error)
}

// ResetTokenStore manages one-time password reset tokens.
type ResetTokenStore interface {
	Create(ctx context.Context, t *PasswordResetToken) error
	Find(ctx context.Context, id string) (*PasswordResetToken, error)

	// Consume marks the token used via a conditional update. Exactly one of
	// two racing calls observes consumed=true.
	Consume(ctx context.Context, id string, at time.Time) (consumed bool, err error)

	// SupersedeForUser invalidates every unconsumed token for the user,
	// leaving only a subsequently issued token valid.
	SupersedeForUser(ctx context.Context, userID string, at time.Time) error
}

// AuditStore appends immutable records.
type AuditStore interface {
	Append(ctx context.Context, rec *AuditRecord) error
}
