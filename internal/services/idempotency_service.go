package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/repo"
)

// IdempotencyService remembers which resource a POST with an
// Idempotency-Key produced, for TTL (24h when zero).
type IdempotencyService struct {
	DB    *gorm.DB
	Clock clock.Clock
	TTL   time.Duration
}

// Lookup returns the resource recorded for (actor, scope, key) and still
// valid at now, or "" when there is none.
func (s *IdempotencyService) Lookup(ctx context.Context, actor, scope, key string, now time.Time) (string, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, actor, scope, key, now)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return rec.ResourceID, nil
}

// Remember records resourceID under (actor, scope, key). A concurrent
// request that stored the same key first wins; that is not an error.
func (s *IdempotencyService) Remember(ctx context.Context, actor, scope, key, resourceID string, status int) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, actor, scope, key, resourceID, status, s.Clock.Now(), ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Purge deletes the records that have expired by now.
func (s *IdempotencyService) Purge(ctx context.Context) (int64, error) {
	return repo.DeleteExpiredIdempotency(ctx, s.DB, s.Clock.Now())
}
