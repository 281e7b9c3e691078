package middleware

import (
	"context"
	"errors"
	"net/http"

	"qkart-storefront/internal/domain"
	"qkart-storefront/pkg/logger"
	"qkart-storefront/pkg/utils"
)

// SessionAuthenticator resolves a session id into a live session.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*domain.Session, error)
}

// SessionMiddleware attaches the caller's session to the request context when the
// request carries a valid one, via "Authorization: Bearer <sessionId>" or the
// sessionId cookie. Anonymous requests pass through untouched.
func SessionMiddleware(auth SessionAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := utils.ExtractBearer(r, domain.SessionCookieName)
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := auth.Authenticate(r.Context(), sessionID)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					logger.WithContext(r.Context()).Error().Err(err).Msg("Session lookup failed")
				}
				next.ServeHTTP(w, r)
				return
			}

			l := logger.WithSession(*logger.WithContext(r.Context()), session.ID, session.Username)
			ctx := logger.NewContext(r.Context(), &l)
			ctx = context.WithValue(ctx, domain.SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests without a session in context.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := domain.SessionFromContext(r.Context()); !ok {
			message := domain.MsgLoginRequired
			if utils.ExtractBearer(r, domain.SessionCookieName) != "" {
				message = domain.MsgSessionExpired
			}
			utils.WriteError(w, http.StatusUnauthorized, message)
			return
		}
		next.ServeHTTP(w, r)
	})
}
