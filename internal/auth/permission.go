package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"formscore.org/internal/ids"
)

// Evaluator resolves whether a user holds at least a required level for a
// (company, category) scope. Reads are pure over the grant rows; Grant and
// RevokeGrant mutate and audit-log.
type Evaluator struct {
	store Store
	audit *Auditor
	now   func() time.Time
}

// NewEvaluator constructs an evaluator. The auditor may be nil for read-only use.
func NewEvaluator(store Store, audit *Auditor, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{store: store, audit: audit, now: now}
}

// EffectiveLevel returns the highest level among active, non-expired grants
// matching the scope, including wildcard-company and wildcard-category
// grants. LevelNone when nothing matches.
func (e *Evaluator) EffectiveLevel(ctx context.Context, userID, company, category string) (Level, error) {
	grants, err := e.store.Grants().ListForUser(ctx, userID)
	if err != nil {
		return LevelNone, err
	}
	now := e.now().UTC()
	level := LevelNone
	for _, g := range grants {
		if g.Revoked || g.Expired(now) {
			continue
		}
		if !g.Matches(company, category) {
			continue
		}
		if g.Level > level {
			level = g.Level
		}
	}
	return level, nil
}

// Check reports whether the user's effective level covers the required one.
func (e *Evaluator) Check(ctx context.Context, userID, company, category string, required Level) (bool, error) {
	level, err := e.EffectiveLevel(ctx, userID, company, category)
	if err != nil {
		return false, err
	}
	return level.Covers(required), nil
}

// HighestLevel returns the user's maximum level across every scope, used as
// the token's permission summary.
func (e *Evaluator) HighestLevel(ctx context.Context, userID string) (Level, error) {
	grants, err := e.store.Grants().ListForUser(ctx, userID)
	if err != nil {
		return LevelNone, err
	}
	now := e.now().UTC()
	level := LevelNone
	for _, g := range grants {
		if g.Revoked || g.Expired(now) {
			continue
		}
		if g.Level > level {
			level = g.Level
		}
	}
	return level, nil
}

// Grant creates a grant for the target user. The granter must hold admin for
// the same scope or a wildcard admin scope covering it.
func (e *Evaluator) Grant(ctx context.Context, granterID, userID, company, category string, level Level, expiresAt *time.Time) (*PermissionGrant, error) {
	granterID = strings.TrimSpace(granterID)
	userID = strings.TrimSpace(userID)
	if granterID == "" || userID == "" {
		return nil, fmt.Errorf("%w: granter and target user are required", ErrInvalidInput)
	}
	if level == LevelNone {
		return nil, fmt.Errorf("%w: cannot grant level none", ErrInvalidInput)
	}
	ok, err := e.Check(ctx, granterID, company, category, LevelAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientPermission
	}

	g := &PermissionGrant{
		ID:        ids.New(),
		UserID:    userID,
		Company:   strings.TrimSpace(company),
		Category:  strings.TrimSpace(category),
		Level:     level,
		GrantedBy: granterID,
		GrantedAt: e.now().UTC(),
		ExpiresAt: expiresAt,
	}
	if err := e.store.Grants().Create(ctx, g); err != nil {
		return nil, err
	}
	e.audit.Record(ctx, "permission_grant", g.ID, "grant", granterID, nil, map[string]any{
		"user_id":  userID,
		"company":  g.Company,
		"category": g.Category,
		"level":    level.String(),
	}, "")
	return g, nil
}

// RevokeGrant removes a grant. The same admin-scope check applies, evaluated
// against the grant's own scope.
func (e *Evaluator) RevokeGrant(ctx context.Context, granterID, grantID string) error {
	granterID = strings.TrimSpace(granterID)
	grantID = strings.TrimSpace(grantID)
	if granterID == "" || grantID == "" {
		return fmt.Errorf("%w: granter and grant id are required", ErrInvalidInput)
	}
	g, err := e.store.Grants().Find(ctx, grantID)
	if err != nil {
		return err
	}
	ok, err := e.Check(ctx, granterID, g.Company, g.Category, LevelAdmin)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientPermission
	}
	if err := e.store.Grants().Revoke(ctx, grantID, granterID); err != nil {
		return err
	}
	e.audit.Record(ctx, "permission_grant", grantID, "revoke", granterID, map[string]any{
		"user_id":  g.UserID,
		"company":  g.Company,
		"category": g.Category,
		"level":    g.Level.String(),
	}, nil, "")
	return nil
}

// ListForUser returns the user's active grants.
func (e *Evaluator) ListForUser(ctx context.Context, userID string) ([]PermissionGrant, error) {
	grants, err := e.store.Grants().ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	active := grants[:0]
	for _, g := range grants {
		if g.Revoked || g.Expired(now) {
			continue
		}
		active = append(active, g)
	}
	return active, nil
}
