package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"formscore.org/internal/auth"
)

type resetTokenStore struct {
	db *sql.DB
}

func (s *resetTokenStore) Create(ctx context.Context, t *auth.PasswordResetToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		values ($1, $2, $3, $4, $5)
	`, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return err
}

func (s *resetTokenStore) Find(ctx context.Context, id string) (*auth.PasswordResetToken, error) {
	var (
		t        auth.PasswordResetToken
		consumed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, consumed_at, created_at
		from password_reset_tokens where id = $1
	`, id).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &consumed, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if consumed.Valid {
		at := consumed.Time.UTC()
		t.ConsumedAt = &at
	}
	return &t, nil
}

// Consume is the storage-level arbitration for single use: the predicate on
// consumed_at makes exactly one of two racing calls win.
func (s *resetTokenStore) Consume(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update password_reset_tokens
		set consumed_at = $2
		where id = $1 and consumed_at is null
	`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *resetTokenStore) SupersedeForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update password_reset_tokens
		set consumed_at = $2
		where user_id = $1 and consumed_at is null
	`, userID, at)
	return err
}
