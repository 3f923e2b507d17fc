// Package pg implements the auth store on PostgreSQL via database/sql and
// the pgx stdlib driver.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"formscore.org/internal/auth"
)

const (
	pgErrUniqueViolation = "23505"
)

// Store bundles the per-entity stores over one connection pool.
type Store struct {
	db *sql.DB
}

var _ auth.Store = (*Store)(nil)

// Open connects to PostgreSQL with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool; used by tests and the CLI tools.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() auth.UserStore             { return &userStore{db: s.db} }
func (s *Store) Sessions() auth.SessionStore       { return &sessionStore{db: s.db} }
func (s *Store) Grants() auth.GrantStore           { return &grantStore{db: s.db} }
func (s *Store) ResetTokens() auth.ResetTokenStore { return &resetTokenStore{db: s.db} }
func (s *Store) Audit() auth.AuditStore            { return &auditStore{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
