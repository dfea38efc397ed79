package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmskit/clientlogin/domain"
)

// recordingSessions captures the max-age values the sweeper passes down.
type recordingSessions struct {
	mu      sync.Mutex
	maxAges []time.Duration
}

func (r *recordingSessions) Upsert(context.Context, *domain.Session) error { return nil }

func (r *recordingSessions) FindByAccessToken(context.Context, string) (*domain.Session, error) {
	return nil, nil
}

func (r *recordingSessions) Delete(context.Context, string) error { return nil }

func (r *recordingSessions) DeleteExpired(_ context.Context, maxAge time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxAges = append(r.maxAges, maxAge)
	return 0, nil
}

func (r *recordingSessions) sweeps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.maxAges...)
}

func TestSweeperKeepsRefreshGraceWindow(t *testing.T) {
	sessions := &recordingSessions{}
	maxAge := time.Duration(domain.DefaultLoginExpiryDays) * 24 * time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweepExpiredSessions(ctx, sessions, 5*time.Millisecond, maxAge)

	require.Eventually(t, func() bool {
		return len(sessions.sweeps()) > 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	for _, got := range sessions.sweeps() {
		// A just-expired session still holds the refresh state; only rows
		// past the login expiry window may be purged.
		assert.Equal(t, maxAge, got)
		assert.Positive(t, got)
	}
}
