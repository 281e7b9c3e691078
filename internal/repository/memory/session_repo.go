// Package memory keeps sessions in the process-local cache.
package memory

import (
	"context"
	"time"

	"qkart-storefront/internal/domain"
	"qkart-storefront/pkg/cache"
)

const sessionKeyPrefix = "session:"

type sessionRepository struct {
	cache      cache.CacheService
	defaultTTL time.Duration
}

// NewSessionRepository stores sessions in c until their ExpiresAt, or for defaultTTL
// when a session has no expiry.
func NewSessionRepository(c cache.CacheService, defaultTTL time.Duration) domain.SessionRepository {
	return &sessionRepository{cache: c, defaultTTL: defaultTTL}
}

func (r *sessionRepository) Save(ctx context.Context, s *domain.Session) error {
	ttl := r.defaultTTL
	if !s.ExpiresAt.IsZero() {
		ttl = time.Until(s.ExpiresAt)
		if ttl <= 0 {
			r.cache.Delete(sessionKeyPrefix + s.ID)
			return nil
		}
	}
	stored := *s
	r.cache.Set(sessionKeyPrefix+s.ID, &stored, ttl)
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	v, ok := r.cache.Get(sessionKeyPrefix + id)
	if !ok {
		return nil, nil
	}
	s, ok := v.(*domain.Session)
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	r.cache.Delete(sessionKeyPrefix + id)
	return nil
}
