package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-review-catalog/internal/domain"
)

func TestIdempotencyService(t *testing.T) {
	svc := &IdempotencyService{DB: newTestDB(t), TTL: time.Hour}
	ctx := context.Background()
	scope := "/api/v1/titles/1/reviews"

	_, found, err := svc.Lookup(ctx, "u1", scope, "k1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, svc.Remember(ctx, "u1", scope, "k1", 42, 201))
	require.NoError(t, svc.Remember(ctx, "u1", scope, "k1", 43, 201), "first write wins")

	id, found, err := svc.Lookup(ctx, "u1", scope, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 42, id)

	ok, err := svc.Exists(ctx, "u2", scope, "k1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok, "keys are per user")

	ok, err = svc.Exists(ctx, "u1", scope, "k1", time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "expired")

	require.NoError(t, svc.Remember(ctx, "u1", scope, "", 1, 201))
}

func TestIdempotencyService_RunPurger(t *testing.T) {
	db := newTestDB(t)
	svc := &IdempotencyService{DB: db, TTL: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.Remember(ctx, "u1", "/scope", "k1", 7, 201))

	done := make(chan struct{})
	go func() {
		svc.RunPurger(ctx, 5*time.Millisecond, zerolog.Nop())
		close(done)
	}()

	require.Eventually(t, func() bool {
		var n int64
		if err := db.Model(&domain.Idempotency{}).Count(&n).Error; err != nil {
			return false
		}
		return n == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purger did not stop")
	}
}
