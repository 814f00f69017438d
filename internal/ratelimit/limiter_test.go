package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock drives a MemoryCounter through time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T) (*Limiter, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	counter := NewMemoryCounter()
	counter.now = clock.Now

	limiter, err := New(counter, Options{})
	require.NoError(t, err)
	return limiter, clock
}

func TestLimiterAdmitsWithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	require.NoError(t, limiter.Attach("GET", "/posts", PerWindow(3, time.Minute)))

	for i := 0; i < 3; i++ {
		decision, err := limiter.Evaluate(context.Background(), "1.2.3.4", "GET", "/posts")
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d should be admitted", i+1)
	}

	decision, err := limiter.Evaluate(context.Background(), "1.2.3.4", "GET", "/posts")
	require.NoError(t, err)
	require.False(t, decision.Allowed, "request beyond the budget must be rejected")
	require.Greater(t, decision.RetryAfterSeconds(), int64(0))
}

func TestLimiterIsolatesKeys(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	require.NoError(t, limiter.Attach("GET", "/posts", PerWindow(1, time.Minute)))

	ctx := context.Background()

	// Exhaust one client's budget.
	decision, err := limiter.Evaluate(ctx, "1.2.3.4", "GET", "/posts")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = limiter.Evaluate(ctx, "1.2.3.4", "GET", "/posts")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	// A different client is unaffected.
	decision, err = limiter.Evaluate(ctx, "5.6.7.8", "GET", "/posts")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestLimiterIsolatesRoutes(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	require.NoError(t, limiter.Attach("GET", "/posts", PerWindow(1, time.Minute)))
	require.NoError(t, limiter.Attach("POST", "/posts", PerWindow(1, time.Minute)))

	ctx := context.Background()

	decision, err := limiter.Evaluate(ctx, "1.2.3.4", "GET", "/posts")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = limiter.Evaluate(ctx, "1.2.3.4", "GET", "/posts")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	// Same client, different method: separate budget.
	decision, err = limiter.Evaluate(ctx, "1.2.3.4", "POST", "/posts")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestLimiterWindowReset(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	require.NoError(t, limiter.Attach("GET", "/", PerWindow(2, 5*time.Second)))

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Evaluate(ctx, "1.2.3.4", "GET", "/")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	decision, err := limiter.Evaluate(ctx, "1.2.3.4", "GET", "/")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	// A full window later the budget is fresh.
	clock.Advance(5 * time.Second)

	decision, err = limiter.Evaluate(ctx, "1.2.3.4", "GET", "/")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestLimiterRetryAfterShrinksAsWindowElapses(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	require.NoError(t, limiter.Attach("GET", "/", PerWindow(1, 10*time.Second)))

	ctx := context.Background()

	decision, err := limiter.Evaluate(ctx, "1.2.3.4", "GET", "/")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = limiter.Evaluate(ctx, "1.2.3.4", "GET", "/")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	first := decision.RetryAfterSeconds()
	require.Equal(t, int64(10), first)

	clock.Advance(4 * time.Second)

	decision, err = limiter.Evaluate(ctx, "1.2.3.4", "GET", "/")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.LessOrEqual(t, decision.RetryAfterSeconds(), first)
	require.Equal(t, int64(6), decision.RetryAfterSeconds())
}

func TestLimiterRetryAfterRoundsUp(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	require.NoError(t, limiter.Attach("GET", "/", PerWindow(1, 10*time.Second)))

	ctx := context.Background()

	_, err := limiter.Evaluate(ctx, "1.2.3.4", "GET", "/")
	require.NoError(t, err)

	clock.Advance(9500 * time.Millisecond)

	decision, err := limiter.Evaluate(ctx, "1.2.3.4", "GET", "/")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	// 500ms remaining rounds up to a full second.
	require.Equal(t, int64(1), decision.RetryAfterSeconds())
}

func TestLimiterConcurrentBurstAdmitsExactlyBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	const budget = 10
	const burst = 50
	require.NoError(t, limiter.Attach("POST", "/posts", PerWindow(budget, time.Minute)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	rejected := 0
	var evalErr error

	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := limiter.Evaluate(context.Background(), "1.2.3.4", "POST", "/posts")

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				evalErr = err
				return
			}
			if decision.Allowed {
				admitted++
			} else {
				rejected++
			}
		}()
	}
	wg.Wait()

	require.NoError(t, evalErr)
	require.Equal(t, budget, admitted)
	require.Equal(t, burst-budget, rejected)
}

func TestLimiterUnlimitedRouteSkipsStore(t *testing.T) {
	limiter, err := New(failingCounter{}, Options{})
	require.NoError(t, err)

	// No policy attached, so the failing store must never be consulted.
	decision, err := limiter.Evaluate(context.Background(), "1.2.3.4", "GET", "/version")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestLimiterDuplicateAttach(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	require.NoError(t, limiter.Attach("GET", "/posts", PerWindow(1, time.Minute)))
	err := limiter.Attach("GET", "/posts", PerWindow(5, time.Minute))
	require.ErrorIs(t, err, ErrPolicyExists)

	// The original policy survives.
	policy, ok := limiter.PolicyFor("GET", "/posts")
	require.True(t, ok)
	require.Equal(t, 1, policy.Requests)
}

func TestLimiterRejectsInvalidPolicy(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	require.ErrorIs(t, limiter.Attach("GET", "/posts", PerWindow(0, time.Minute)), ErrInvalidConfig)
	require.ErrorIs(t, limiter.Attach("GET", "/posts", PerWindow(5, 0)), ErrInvalidConfig)
}

func TestLimiterEmptyClientKey(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	require.NoError(t, limiter.Attach("GET", "/posts", PerWindow(1, time.Minute)))

	_, err := limiter.Evaluate(context.Background(), "", "GET", "/posts")
	require.ErrorIs(t, err, ErrEmptyKey)
}

type failingCounter struct{}

func (failingCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("counter store down")
}

func (failingCounter) Ping(ctx context.Context) error { return errors.New("counter store down") }
func (failingCounter) Close() error                   { return nil }

func TestLimiterFailClosedByDefault(t *testing.T) {
	limiter, err := New(failingCounter{}, Options{})
	require.NoError(t, err)
	require.NoError(t, limiter.Attach("GET", "/posts", PerWindow(1, time.Minute)))

	_, err = limiter.Evaluate(context.Background(), "1.2.3.4", "GET", "/posts")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestLimiterFailOpenAdmits(t *testing.T) {
	limiter, err := New(failingCounter{}, Options{FailOpen: true})
	require.NoError(t, err)
	require.NoError(t, limiter.Attach("GET", "/posts", PerWindow(1, time.Minute)))

	decision, err := limiter.Evaluate(context.Background(), "1.2.3.4", "GET", "/posts")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}
