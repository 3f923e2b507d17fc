package pg

import (
	"context"
	"database/sql"
	"errors"

	"formscore.org/internal/auth"
)

type sessionStore struct {
	db *sql.DB
}

func (s *sessionStore) Create(ctx context.Context, sess *auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, token_hash, created_at, expires_at, revoked, ip, user_agent)
		values ($1, $2, $3, $4, $5, false, nullif($6, ''), nullif($7, ''))
	`, sess.ID, sess.UserID, sess.TokenHash, sess.CreatedAt, sess.ExpiresAt, sess.IP, sess.UserAgent)
	return err
}

func (s *sessionStore) Find(ctx context.Context, id string) (*auth.Session, error) {
	var (
		sess      auth.Session
		ip, agent sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, created_at, expires_at, revoked, ip, user_agent
		from sessions where id = $1
	`, id).Scan(&sess.ID, &sess.UserID, &sess.TokenHash, &sess.CreatedAt,
		&sess.ExpiresAt, &sess.Revoked, &ip, &agent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.IP = ip.String
	sess.UserAgent = agent.String
	return &sess, nil
}

// Revoke is a plain flag flip: touching zero rows (unknown or already
// revoked) is success, so concurrent logout calls cannot race.
func (s *sessionStore) Revoke(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		update sessions set revoked = true where id = $1
	`, id)
	return err
}

func (s *sessionStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		update sessions set revoked = true where user_id = $1 and revoked = false
	`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
