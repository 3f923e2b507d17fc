package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds embedded in the token_type claim.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

const (
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "formscore"
)

// Claims are the signed contents of both token kinds.
type Claims struct {
	Email     string `json:"email"`
	Summary   string `json:"level,omitempty"`
	SessionID string `json:"sid"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is one access/refresh issuance bound to a single session.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenService issues and validates HS256-signed tokens. It has no side
// effects and is purely functional over the signing secret and clock.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService constructs the service. The secret must be non-empty.
func NewTokenService(secret []byte, issuer string, accessTTL, refreshTTL time.Duration, now func() time.Time) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	t := &TokenService{
		secret:     secret,
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	if issuer = strings.TrimSpace(issuer); issuer != "" {
		t.issuer = issuer
	}
	if accessTTL > 0 {
		t.accessTTL = accessTTL
	}
	if refreshTTL > 0 {
		t.refreshTTL = refreshTTL
	}
	if now != nil {
		t.now = now
	}
	return t, nil
}

// AccessTTL returns the configured access token lifetime.
func (t *TokenService) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (t *TokenService) RefreshTTL() time.Duration { return t.refreshTTL }

// Issue signs a fresh access/refresh pair bound to the given session.
// The summary carries the user's highest effective level for quick display;
// authorization decisions always re-read the grants.
func (t *TokenService) Issue(user *User, sessionID string, summary Level) (TokenPair, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return TokenPair{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if strings.TrimSpace(sessionID) == "" {
		return TokenPair{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	now := t.now().UTC()
	accessExp := now.Add(t.accessTTL)
	refreshExp := now.Add(t.refreshTTL)

	access, err := t.sign(user, sessionID, summary, TokenKindAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := t.sign(user, sessionID, summary, TokenKindRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// AccessFor signs a lone access token bound to an existing session. Used by
// refresh, which keeps the original refresh token.
func (t *TokenService) AccessFor(user *User, sessionID string, summary Level) (string, time.Time, error) {
	now := t.now().UTC()
	exp := now.Add(t.accessTTL)
	token, err := t.sign(user, sessionID, summary, TokenKindAccess, now, exp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

func (t *TokenService) sign(user *User, sessionID string, summary Level, kind string, now, exp time.Time) (string, error) {
	claims := Claims{
		Email:     user.Email,
		SessionID: sessionID,
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	if summary != LevelNone {
		claims.Summary = summary.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate verifies signature, expiry, issuer, and token kind. Access and
// refresh lifetimes are independent: a refresh token stays valid after the
// paired access token lapses.
func (t *TokenService) Validate(token, expectedKind string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer(t.issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignatureInvalid
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.SessionID) == "" {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != expectedKind {
		return nil, ErrTokenTypeMismatch
	}
	return claims, nil
}

// HashToken returns the hex SHA-256 digest stored in place of raw tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
