package pg

import (
	"context"
	"database/sql"
	"errors"

	"formscore.org/internal/auth"
)

type grantStore struct {
	db *sql.DB
}

// Wildcard scopes are NULL in SQL and empty strings in Go; nullif/coalesce
// translate at the boundary.
func (s *grantStore) Create(ctx context.Context, g *auth.PermissionGrant) error {
	_, err := s.db.ExecContext(ctx, `
		insert into permission_grants (id, user_id, company, category, level, granted_by, granted_at, expires_at, revoked)
		values ($1, $2, nullif($3, ''), nullif($4, ''), $5, $6, $7, $8, false)
	`, g.ID, g.UserID, g.Company, g.Category, g.Level.String(), g.GrantedBy, g.GrantedAt, g.ExpiresAt)
	return err
}

func (s *grantStore) Find(ctx context.Context, id string) (*auth.PermissionGrant, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, user_id, coalesce(company, ''), coalesce(category, ''), level, granted_by, granted_at, expires_at, revoked
		from permission_grants where id = $1
	`, id)
	g, err := scanGrant(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *grantStore) Revoke(ctx context.Context, id, revokedBy string) error {
	res, err := s.db.ExecContext(ctx, `
		update permission_grants
		set revoked = true, revoked_by = $2, revoked_at = now()
		where id = $1 and revoked = false
	`, id, revokedBy)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *grantStore) ListForUser(ctx context.Context, userID string) ([]auth.PermissionGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, coalesce(company, ''), coalesce(category, ''), level, granted_by, granted_at, expires_at, revoked
		from permission_grants
		where user_id = $1 and revoked = false
		order by granted_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.PermissionGrant
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanGrant(scan func(...any) error) (*auth.PermissionGrant, error) {
	var (
		g       auth.PermissionGrant
		level   string
		expires sql.NullTime
	)
	if err := scan(&g.ID, &g.UserID, &g.Company, &g.Category, &level,
		&g.GrantedBy, &g.GrantedAt, &expires, &g.Revoked); err != nil {
		return nil, err
	}
	parsed, err := auth.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	g.Level = parsed
	if expires.Valid {
		t := expires.Time.UTC()
		g.ExpiresAt = &t
	}
	return &g, nil
}
