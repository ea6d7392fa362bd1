package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/repo"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyService remembers which resource a keyed create request
// produced, so a retried request can be answered with the same resource.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Exists reports whether a live record exists for (userID, scope, key).
// Its signature matches middleware.IdempotencyLookup.
func (s *IdempotencyService) Exists(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	_, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Lookup returns the resource id recorded for (userID, scope, key).
func (s *IdempotencyService) Lookup(ctx context.Context, userID, scope, key string) (int64, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rec.ResourceID, true, nil
}

// Remember records that key produced resourceID. A record written first by
// a concurrent request is kept.
func (s *IdempotencyService) Remember(ctx context.Context, userID, scope, key string, resourceID int64, status int) error {
	if key == "" {
		return nil
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, scope, key, resourceID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Purge deletes expired records.
func (s *IdempotencyService) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, time.Now().UTC())
}

// RunPurger calls Purge every interval until ctx is done.
func (s *IdempotencyService) RunPurger(ctx context.Context, every time.Duration, lg zerolog.Logger) {
	if every <= 0 {
		every = time.Hour
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Purge(ctx)
			if err != nil {
				lg.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				lg.Debug().Int64("deleted", n).Msg("idempotency records purged")
			}
		}
	}
}
