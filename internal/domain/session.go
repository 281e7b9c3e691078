package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ContextKey string

const SessionContextKey ContextKey = "session"

// Session is the explicit session context handed to every component that needs
// the backend token. It replaces ambient browser storage.
type Session struct {
	ID        string          `json:"sessionId"`
	Token     string          `json:"-"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionFromContext returns the session placed in ctx by the session middleware.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(SessionContextKey).(*Session)
	return s, ok && s != nil
}

// Credentials are sent to the backend auth endpoints.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the backend's answer to a successful login.
type LoginResult struct {
	Token    string
	Username string
	Balance  decimal.Decimal
}

type AuthRepository interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	Register(ctx context.Context, creds Credentials) error
}

type SessionRepository interface {
	Save(ctx context.Context, session *Session) error
	// Get returns nil, nil when no session exists for id.
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
