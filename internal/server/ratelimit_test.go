package server

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock returns a limiter clock that can be moved forward.
func fixedClock(rl *RateLimiter, start time.Time) *time.Time {
	now := start
	rl.now = func() time.Time { return now }
	return &now
}

func TestNewRateLimiter(t *testing.T) {
	limits := RateLimitConfig{RequestsPerMinute: 10, RequestsPerHour: 100, MaxRequestsPerDay: 1000, MaxDataPerDay: 1 << 20}
	rl := NewRateLimiter(limits)

	require.NotNil(t, rl)
	assert.Equal(t, limits, rl.Limits())
	assert.True(t, limits.Enabled())
	assert.False(t, RateLimitConfig{}.Enabled())
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})

	for range 50 {
		require.NoError(t, rl.Allow("client", 100))
	}
	usage := rl.Usage("client")
	assert.Equal(t, 50, usage.RequestsToday)
	assert.Equal(t, int64(5000), usage.BytesToday)
}

func TestRateLimiter_RequestsPerMinute(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 2})
	now := fixedClock(rl, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, rl.Allow("client", 0))
	require.NoError(t, rl.Allow("client", 0))

	err := rl.Allow("client", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, time.Minute, rle.RetryAfter)

	*now = now.Add(20 * time.Second)
	err = rl.Allow("client", 0)
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 40*time.Second, rle.RetryAfter)

	*now = now.Add(40 * time.Second)
	assert.NoError(t, rl.Allow("client", 0))
}

func TestRateLimiter_RequestsPerHour(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerHour: 3})
	now := fixedClock(rl, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))

	for range 3 {
		require.NoError(t, rl.Allow("client", 0))
		*now = now.Add(2 * time.Minute)
	}

	var rle *RateLimitError
	require.True(t, errors.As(rl.Allow("client", 0), &rle))
	assert.Equal(t, "hour", rle.Type)

	*now = now.Add(time.Hour)
	assert.NoError(t, rl.Allow("client", 0))
}

func TestRateLimiter_DailyRequestQuota(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequestsPerDay: 2})
	now := fixedClock(rl, time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC))

	require.NoError(t, rl.Allow("client", 0))
	require.NoError(t, rl.Allow("client", 0))

	var qe *QuotaExceededError
	require.True(t, errors.As(rl.Allow("client", 0), &qe))
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(2), qe.Limit)
	assert.Equal(t, int64(2), qe.Used)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), qe.Resets)

	*now = time.Date(2024, 5, 2, 0, 0, 1, 0, time.UTC)
	require.NoError(t, rl.Allow("client", 0))
	assert.Equal(t, 1, rl.Usage("client").RequestsToday)
}

func TestRateLimiter_DailyDataQuota(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxDataPerDay: 1000})

	require.NoError(t, rl.Allow("client", 600))

	var qe *QuotaExceededError
	require.True(t, errors.As(rl.Allow("client", 500), &qe))
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(600), qe.Used)

	// A rejected request is not recorded.
	require.NoError(t, rl.Allow("client", 400))
	assert.Equal(t, int64(1000), rl.Usage("client").BytesToday)
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1})

	require.NoError(t, rl.Allow("a", 0))
	require.Error(t, rl.Allow("a", 0))
	assert.NoError(t, rl.Allow("b", 0))
	assert.Equal(t, ClientUsage{}, rl.Usage("unknown"))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 10})
	now := fixedClock(rl, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, rl.Allow("old", 0))
	*now = now.Add(2 * time.Hour)
	require.NoError(t, rl.Allow("fresh", 0))

	assert.Equal(t, 1, rl.Prune(time.Hour))
	assert.Equal(t, 0, rl.Usage("old").RequestsToday)
	assert.Equal(t, 1, rl.Usage("fresh").RequestsToday)
	assert.Equal(t, 0, rl.Prune(time.Hour))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequestsPerDay: 50})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("client", 1) == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
	assert.Equal(t, 50, rl.Usage("client").RequestsToday)
}

func TestRateLimitErrorMessages(t *testing.T) {
	rle := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 30 * time.Second}
	assert.Contains(t, rle.Error(), "rate limit exceeded for minute")

	qe := &QuotaExceededError{Type: "data", Limit: 10, Used: 10, Resets: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)}
	assert.Contains(t, qe.Error(), "quota exceeded for data (used: 10, limit: 10")
	assert.Contains(t, qe.Error(), "2024-05-02T00:00:00Z")
}

func TestServer_PruneRateLimits(t *testing.T) {
	s := newTestServer(t, "")
	assert.Equal(t, 0, s.PruneRateLimits(time.Minute))

	s = newTestServer(t, "", func(c *Config) { c.RateLimit = RateLimitConfig{RequestsPerMinute: 5} })
	require.NoError(t, s.rateLimiter.Allow("client", 0))
	fixedClock(s.rateLimiter, time.Now().Add(time.Hour))
	assert.Equal(t, 1, s.PruneRateLimits(time.Minute))
}
