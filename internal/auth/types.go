package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Account statuses. Disabled accounts are never hard-deleted.
const (
	UserStatusActive   = "active"
	UserStatusLocked   = "locked"
	UserStatusDisabled = "disabled"
)

// User is the identity record behind every credential.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Status       string     `json:"status"`
	FailedLogins int        `json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Session is the durable record behind one issued token pair. Only the
// SHA-256 hash of the refresh token is stored, never the raw token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// SessionMetadata carries client attributes captured at login or refresh.
type SessionMetadata struct {
	IP        string
	UserAgent string
}

// PermissionGrant scopes a level to a (company, category) pair. An empty
// company or category means wildcard, the lowest-specificity match.
type PermissionGrant struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Company   string     `json:"company,omitempty"`
	Category  string     `json:"category,omitempty"`
	Level     Level      `json:"level"`
	GrantedBy string     `json:"granted_by"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Revoked   bool       `json:"-"`
}

// Matches reports whether the grant covers the requested scope.
func (g PermissionGrant) Matches(company, category string) bool {
	if g.Company != "" && g.Company != company {
		return false
	}
	if g.Category != "" && g.Category != category {
		return false
	}
	return true
}

// Expired reports whether the grant has lapsed at the given instant.
func (g PermissionGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

// PasswordResetToken is a one-time credential-recovery artifact. The raw
// secret never touches storage; only its hash does.
type PasswordResetToken struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuditRecord is an append-only trace of one security-relevant transition.
type AuditRecord struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id,omitempty"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Level is a permission level with the strict total order view < edit < admin.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
	LevelAdmin
)

// Covers reports whether the level satisfies the required minimum.
// Equal or higher is sufficient; LevelNone satisfies nothing.
func (l Level) Covers(required Level) bool {
	return l != LevelNone && required != LevelNone && l >= required
}

func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelEdit:
		return "edit"
	case LevelAdmin:
		return "admin"
	default:
		return "none"
	}
}

// ParseLevel converts the wire form of a level. "none" is not grantable.
func ParseLevel(s string) (Level, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "view":
		return LevelView, nil
	case "edit":
		return LevelEdit, nil
	case "admin":
		return LevelAdmin, nil
	default:
		return LevelNone, fmt.Errorf("%w: unknown permission level %q", ErrInvalidInput, s)
	}
}

// MarshalJSON renders the level as its string form.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON parses the string form of a level.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
