package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"qkart-storefront/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS storefront_sessions (
    id          TEXT PRIMARY KEY,
    token       TEXT        NOT NULL,
    username    TEXT        NOT NULL,
    balance     NUMERIC     NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL,
    expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS storefront_sessions_expires_at_idx ON storefront_sessions (expires_at);
`

// DBTX is the subset of *pgxpool.Pool the session store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// EnsureSchema creates the sessions table if it does not exist.
func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

func (r *SessionRepository) Save(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO storefront_sessions (id, token, username, balance, created_at, expires_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			token = EXCLUDED.token,
			username = EXCLUDED.username,
			balance = EXCLUDED.balance,
			expires_at = EXCLUDED.expires_at`,
		s.ID, s.Token, s.Username, s.Balance.String(), s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var (
		s       domain.Session
		balance string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, token, username, balance::text, created_at, expires_at
		FROM storefront_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.Token, &s.Username, &balance, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	s.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDataIntegrity, "invalid stored balance", err)
	}
	return &s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM storefront_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before now and returns how many were dropped.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM storefront_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
