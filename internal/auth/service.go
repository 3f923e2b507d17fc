package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"formscore.org/internal/ids"
)

const (
	defaultMaxFailedLogins = 5
	defaultResetTTL        = 24 * time.Hour
)

// Service orchestrates the credential lifecycle: registration, login with
// brute-force lockout, refresh, logout, and password reset. It composes the
// token service, session registry, permission evaluator, and auditor.
type Service struct {
	store    Store
	tokens   *TokenService
	sessions *SessionRegistry
	perms    *Evaluator
	audit    *Auditor

	now             func() time.Time
	maxFailedLogins int
	resetTTL        time.Duration

	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *zap.Logger
}

// Principal is an authenticated user with resolved grants.
type Principal struct {
	User      *User             `json:"user"`
	Grants    []PermissionGrant `json:"permissions"`
	SessionID string            `json:"-"`
}

// EffectiveLevel returns the principal's highest level for the scope using
// the already-loaded grants.
func (p Principal) EffectiveLevel(company, category string, now time.Time) Level {
	level := LevelNone
	for _, g := range p.Grants {
		if g.Revoked || g.Expired(now) || !g.Matches(company, category) {
			continue
		}
		if g.Level > level {
			level = g.Level
		}
	}
	return level
}

// Option configures Service behavior.
type Option func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithMaxFailedLogins overrides the lockout threshold.
func WithMaxFailedLogins(n int) Option {
	return func(s *Service) error {
		if n > 0 {
			s.maxFailedLogins = n
		}
		return nil
	}
}

// WithResetTTL overrides the password reset token lifetime.
func WithResetTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.resetTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithLogger overrides the operational logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// NewService constructs the lifecycle manager with optional configuration.
func NewService(store Store, secret []byte, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	s := &Service{
		store:           store,
		now:             time.Now,
		maxFailedLogins: defaultMaxFailedLogins,
		resetTTL:        defaultResetTTL,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	tokens, err := NewTokenService(secret, s.issuer, s.accessTTL, s.refreshTTL, s.now)
	if err != nil {
		return nil, err
	}
	s.tokens = tokens
	s.audit = NewAuditor(store.Audit(), s.log, s.now)
	s.sessions = NewSessionRegistry(store, s.now)
	s.perms = NewEvaluator(store, s.audit, s.now)
	return s, nil
}

// Permissions exposes the evaluator for grant management and middleware checks.
func (s *Service) Permissions() *Evaluator { return s.perms }

// Sessions exposes the session registry.
func (s *Service) Sessions() *SessionRegistry { return s.sessions }

// Tokens exposes the token service.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Register creates a new active account. Fails with ErrEmailAlreadyRegistered
// or ErrWeakPassword.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := CheckPasswordStrength(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Status:       UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "user", u.ID, "register", u.ID, nil, map[string]any{"email": email}, "")
	return u, nil
}

// Login verifies credentials, enforcing the brute-force lockout, and on
// success creates a session and issues the token pair.
func (s *Service) Login(ctx context.Context, email, password string, meta SessionMetadata) (TokenPair, *User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		return TokenPair{}, nil, err
	}
	switch user.Status {
	case UserStatusActive:
	case UserStatusLocked:
		return TokenPair{}, nil, ErrAccountLocked
	default:
		return TokenPair{}, nil, ErrAccountDisabled
	}

	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		// The counter increment and the lock transition happen in one
		// conditional update so concurrent failures cannot undercount.
		failures, locked, ferr := s.store.Users().RecordLoginFailure(ctx, user.ID, s.maxFailedLogins)
		if ferr != nil {
			return TokenPair{}, nil, ferr
		}
		s.audit.Record(ctx, "user", user.ID, "login_failed", user.ID, nil,
			map[string]any{"failed_attempts": failures}, "")
		if locked {
			s.audit.Record(ctx, "user", user.ID, "account_locked", user.ID,
				map[string]any{"status": UserStatusActive},
				map[string]any{"status": UserStatusLocked}, "failed login threshold reached")
			return TokenPair{}, nil, ErrAccountLocked
		}
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.store.Users().RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return TokenPair{}, nil, err
	}
	user.FailedLogins = 0
	user.LastLoginAt = &now

	summary, err := s.perms.HighestLevel(ctx, user.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}

	sessionID := ids.New()
	pair, err := s.tokens.Issue(user, sessionID, summary)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if _, err := s.sessions.CreateWithID(ctx, sessionID, user.ID, pair.RefreshToken, pair.RefreshExpiresAt, meta); err != nil {
		return TokenPair{}, nil, err
	}
	s.audit.Record(ctx, "session", sessionID, "login", user.ID, nil,
		map[string]any{"ip": meta.IP, "user_agent": meta.UserAgent}, "")
	return pair, user, nil
}

// Refresh validates the refresh token against both its signature and the
// session registry, then issues a new access token bound to the same
// session. The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.tokens.Validate(refreshToken, TokenKindRefresh)
	if err != nil {
		return "", time.Time{}, err
	}
	sess, user, err := s.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return "", time.Time{}, err
	}
	if sess.TokenHash != HashToken(refreshToken) {
		return "", time.Time{}, ErrSessionRevoked
	}
	summary, err := s.perms.HighestLevel(ctx, user.ID)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.tokens.AccessFor(user, sess.ID, summary)
}

// Logout revokes the session named by the refresh token. Revocation is
// idempotent regardless of the session's prior state.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Validate(refreshToken, TokenKindRefresh)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		return err
	}
	s.audit.Record(ctx, "session", claims.SessionID, "logout", claims.Subject, nil, nil, "")
	return nil
}

// RequestPasswordReset issues a one-time reset token. When the email is
// unknown it succeeds with an empty token so callers cannot tell which
// addresses are registered. A new request supersedes any prior unconsumed
// token for the same user.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil
	}
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	now := s.now().UTC()
	if err := s.store.ResetTokens().SupersedeForUser(ctx, user.ID, now); err != nil {
		return "", err
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	rec := &PasswordResetToken{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: HashToken(secret),
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	if err := s.store.ResetTokens().Create(ctx, rec); err != nil {
		return "", err
	}
	s.audit.Record(ctx, "password_reset_token", rec.ID, "reset_requested", user.ID, nil, nil, "")
	return rec.ID + "." + secret, nil
}

// ConsumePasswordReset redeems a reset token exactly once: it rotates the
// password hash, reactivates a locked account, and revokes every
// outstanding session. Two racing calls produce one success and one
// ErrTokenAlreadyUsed.
func (s *Service) ConsumePasswordReset(ctx context.Context, token, newPassword string) error {
	tokenID, secret, err := splitResetToken(token)
	if err != nil {
		return ErrTokenMalformed
	}
	rec, err := s.store.ResetTokens().Find(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenMalformed
		}
		return err
	}
	if rec.TokenHash != HashToken(secret) {
		return ErrTokenMalformed
	}
	now := s.now().UTC()
	if now.After(rec.ExpiresAt) {
		return ErrTokenExpired
	}
	if rec.ConsumedAt != nil {
		return ErrTokenAlreadyUsed
	}
	if err := CheckPasswordStrength(newPassword); err != nil {
		return err
	}

	// The conditional update is the single point of truth for single use;
	// the ConsumedAt check above is only a fast path.
	consumed, err := s.store.ResetTokens().Consume(ctx, tokenID, now)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrTokenAlreadyUsed
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.Users().UpdatePassword(ctx, rec.UserID, hash); err != nil {
		return err
	}
	user, err := s.store.Users().Find(ctx, rec.UserID)
	if err == nil && user.Status == UserStatusLocked {
		// A completed reset is the exit from the lockout state.
		if err := s.store.Users().UpdateStatus(ctx, rec.UserID, UserStatusActive); err != nil {
			return err
		}
	}
	if _, err := s.sessions.RevokeAllForUser(ctx, rec.UserID); err != nil {
		return err
	}
	s.audit.Record(ctx, "user", rec.UserID, "password_reset", rec.UserID, nil, nil, "")
	return nil
}

// Authenticate enforces the full session invariant for an access token:
// signature and expiry, registry row present and unrevoked, owner active.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.tokens.Validate(accessToken, TokenKindAccess)
	if err != nil {
		return Principal{}, err
	}
	sess, user, err := s.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return Principal{}, err
	}
	grants, err := s.perms.ListForUser(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{User: user, Grants: grants, SessionID: sess.ID}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || len(email) > 255 {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}

func splitResetToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid reset token format")
	}
	return parts[0], parts[1], nil
}
