package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"formscore.org/internal/ids"
)

// SessionRegistry is the durable counterpart to the stateless tokens: a
// session row that can be revoked server-side even while the encoded token
// is still cryptographically valid.
type SessionRegistry struct {
	store Store
	now   func() time.Time
}

// NewSessionRegistry constructs a registry over the given store.
func NewSessionRegistry(store Store, now func() time.Time) *SessionRegistry {
	if now == nil {
		now = time.Now
	}
	return &SessionRegistry{store: store, now: now}
}

// Create persists a new session holding the hash of the refresh token.
func (r *SessionRegistry) Create(ctx context.Context, userID, refreshToken string, expiresAt time.Time, meta SessionMetadata) (*Session, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: user id and refresh token are required", ErrInvalidInput)
	}
	s := &Session{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: HashToken(refreshToken),
		CreatedAt: r.now().UTC(),
		ExpiresAt: expiresAt,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := r.store.Sessions().Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateWithID persists a session under a caller-chosen id so the id can be
// embedded in the tokens before the row exists.
func (r *SessionRegistry) CreateWithID(ctx context.Context, id, userID, refreshToken string, expiresAt time.Time, meta SessionMetadata) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	s := &Session{
		ID:        id,
		UserID:    userID,
		TokenHash: HashToken(refreshToken),
		CreatedAt: r.now().UTC(),
		ExpiresAt: expiresAt,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := r.store.Sessions().Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Revoke marks the session revoked. Idempotent: repeated or concurrent
// revocations, and revoking an unknown id, all succeed.
func (r *SessionRegistry) Revoke(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	return r.store.Sessions().Revoke(ctx, sessionID)
}

// RevokeAllForUser invalidates every outstanding session, used on password
// change and reset.
func (r *SessionRegistry) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.store.Sessions().RevokeAllForUser(ctx, userID)
}

// Validate enforces the registry half of the session invariant: the row
// exists, is not revoked, has not expired, and its owner is active. Token
// signature and expiry are checked separately by the TokenService; both
// halves must hold for a session to be usable.
func (r *SessionRegistry) Validate(ctx context.Context, sessionID string) (*Session, *User, error) {
	s, err := r.store.Sessions().Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrSessionRevoked
		}
		return nil, nil, err
	}
	if s.Revoked {
		return nil, nil, ErrSessionRevoked
	}
	if r.now().After(s.ExpiresAt) {
		return nil, nil, ErrTokenExpired
	}
	user, err := r.store.Users().Find(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrSessionRevoked
		}
		return nil, nil, err
	}
	switch user.Status {
	case UserStatusActive:
	case UserStatusLocked:
		return nil, nil, ErrAccountLocked
	default:
		return nil, nil, ErrAccountDisabled
	}
	return s, user, nil
}

// IsValid reports whether the session passes Validate.
func (r *SessionRegistry) IsValid(ctx context.Context, sessionID string) (bool, error) {
	_, _, err := r.Validate(ctx, sessionID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrSessionRevoked),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrAccountDisabled):
		return false, nil
	default:
		return false, err
	}
}
