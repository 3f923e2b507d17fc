package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"formscore.org/internal/auth"
)

type userStore struct {
	db *sql.DB
}

const userColumns = `id, email, password_hash, full_name, status, failed_login_attempts, last_login_at, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, email, password_hash, full_name, status, failed_login_attempts, created_at, updated_at)
		values ($1, $2, $3, $4, $5, 0, $6, $7)
	`, u.ID, u.Email, u.PasswordHash, u.FullName, u.Status, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrEmailAlreadyRegistered
		}
		return err
	}
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where id = $1
	`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where lower(email) = lower($1)
	`, email))
}

// RecordLoginFailure bumps the counter and flips an active account to locked
// in the same statement once the threshold is reached, so concurrent failed
// attempts cannot undercount or double-lock.
func (s *userStore) RecordLoginFailure(ctx context.Context, id string, lockThreshold int) (int, bool, error) {
	var (
		failures int
		status   string
	)
	err := s.db.QueryRowContext(ctx, `
		update users
		set failed_login_attempts = failed_login_attempts + 1,
		    status = case
		        when failed_login_attempts + 1 >= $2 and status = 'active' then 'locked'
		        else status
		    end,
		    updated_at = now()
		where id = $1
		returning failed_login_attempts, status
	`, id, lockThreshold).Scan(&failures, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, auth.ErrNotFound
	}
	if err != nil {
		return 0, false, err
	}
	return failures, status == auth.UserStatusLocked, nil
}

func (s *userStore) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set failed_login_attempts = 0, last_login_at = $2, updated_at = now()
		where id = $1
	`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set password_hash = $2, failed_login_attempts = 0, updated_at = now()
		where id = $1
	`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set status = $2, updated_at = now() where id = $1
	`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) scanOne(row *sql.Row) (*auth.User, error) {
	var (
		u         auth.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Status,
		&u.FailedLogins, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
