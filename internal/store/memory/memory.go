// Package memory provides an in-memory Store for tests, demos, and local
// development. It mirrors the conditional-update semantics of the Postgres
// store under a single mutex.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"formscore.org/internal/auth"
)

type Store struct {
	mu     sync.Mutex
	users  map[string]*auth.User
	sess   map[string]*auth.Session
	grants map[string]*auth.PermissionGrant
	resets map[string]*auth.PasswordResetToken
	audit  []auth.AuditRecord
}

func New() *Store {
	return &Store{
		users:  make(map[string]*auth.User),
		sess:   make(map[string]*auth.Session),
		grants: make(map[string]*auth.PermissionGrant),
		resets: make(map[string]*auth.PasswordResetToken),
	}
}

var _ auth.Store = (*Store)(nil)

func (s *Store) Users() auth.UserStore             { return (*userStore)(s) }
func (s *Store) Sessions() auth.SessionStore       { return (*sessionStore)(s) }
func (s *Store) Grants() auth.GrantStore           { return (*grantStore)(s) }
func (s *Store) ResetTokens() auth.ResetTokenStore { return (*resetTokenStore)(s) }
func (s *Store) Audit() auth.AuditStore            { return (*auditStore)(s) }

// AuditRecords returns a copy of the appended records in order.
func (s *Store) AuditRecords() []auth.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.AuditRecord, len(s.audit))
	copy(out, s.audit)
	return out
}

type userStore Store

func (s *userStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return auth.ErrEmailAlreadyRegistered
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *userStore) RecordLoginFailure(_ context.Context, id string, lockThreshold int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, false, auth.ErrNotFound
	}
	u.FailedLogins++
	if u.FailedLogins >= lockThreshold && u.Status == auth.UserStatusActive {
		u.Status = auth.UserStatusLocked
	}
	return u.FailedLogins, u.Status == auth.UserStatusLocked, nil
}

func (s *userStore) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.FailedLogins = 0
	u.LastLoginAt = &at
	return nil
}

func (s *userStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.FailedLogins = 0
	return nil
}

func (s *userStore) UpdateStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Status = status
	return nil
}

type sessionStore Store

func (s *sessionStore) Create(_ context.Context, sess *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sess[sess.ID] = &cp
	return nil
}

func (s *sessionStore) Find(_ context.Context, id string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sess[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *sessionStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sess[id]; ok {
		sess.Revoked = true
	}
	return nil
}

func (s *sessionStore) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sess := range s.sess {
		if sess.UserID == userID && !sess.Revoked {
			sess.Revoked = true
			n++
		}
	}
	return n, nil
}

type grantStore Store

func (s *grantStore) Create(_ context.Context, g *auth.PermissionGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.grants[g.ID] = &cp
	return nil
}

func (s *grantStore) Find(_ context.Context, id string) (*auth.PermissionGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *grantStore) Revoke(_ context.Context, id, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok || g.Revoked {
		return auth.ErrNotFound
	}
	g.Revoked = true
	return nil
}

func (s *grantStore) ListForUser(_ context.Context, userID string) ([]auth.PermissionGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.PermissionGrant
	for _, g := range s.grants {
		if g.UserID == userID && !g.Revoked {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.After(out[j].GrantedAt) })
	return out, nil
}

type resetTokenStore Store

func (s *resetTokenStore) Create(_ context.Context, t *auth.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.resets[t.ID] = &cp
	return nil
}

func (s *resetTokenStore) Find(_ context.Context, id string) (*auth.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.resets[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *resetTokenStore) Consume(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.resets[id]
	if !ok {
		return false, auth.ErrNotFound
	}
	if t.ConsumedAt != nil {
		return false, nil
	}
	t.ConsumedAt = &at
	return true, nil
}

func (s *resetTokenStore) SupersedeForUser(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.resets {
		if t.UserID == userID && t.ConsumedAt == nil {
			consumed := at
			t.ConsumedAt = &consumed
		}
	}
	return nil
}

type auditStore Store

func (s *auditStore) Append(_ context.Context, rec *auth.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *rec)
	return nil
}
