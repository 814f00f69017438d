// Package ratelimit throttles HTTP routes against a shared counter store.
//
// Each throttled route declares a Policy at registration time. Per request the
// limiter derives a key from (client, method + route pattern), atomically
// increments the counter for that key in the CounterStore, and admits the
// request while the count stays within the policy. The counter lives in the
// shared store, so the budget holds across every server process pointing at
// the same backend, not just within one process's memory.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

const defaultStoreTimeout = 500 * time.Millisecond

// Decision is the outcome of evaluating one request against its route policy.
type Decision struct {
	Allowed   bool
	Remaining int64
	// RetryAfter is the time until the current window resets. Only meaningful
	// on rejection; surface it to callers rounded up to whole seconds.
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the Retry-After hint in whole seconds,
// rounded up.
func (d Decision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int64(math.Ceil(d.RetryAfter.Seconds()))
}

// Options configure a Limiter.
type Options struct {
	// Timeout bounds each counter store round trip. Defaults to 500ms.
	Timeout time.Duration

	// FailOpen admits requests when the counter store is unreachable
	// mid-request instead of rejecting them with a 503-class error. Off by
	// default: silently admitting everything masks backend overload.
	FailOpen bool

	// OnReject renders rejections. Defaults to the JSON envelope handler
	// (429 with Retry-After, 503 on store failure).
	OnReject RejectionHandler

	// KeyFn derives the client identity from a request. Defaults to the
	// remote host after RealIP resolution.
	KeyFn KeyFunc

	// Prefix namespaces counter keys in the shared store.
	Prefix string

	Logger *logging.Logger
}

// Limiter evaluates requests against per-route policies. Construct one with
// New and thread it through route registration; all state beyond the
// registration-time policy table lives in the CounterStore.
type Limiter struct {
	store    CounterStore
	onReject RejectionHandler
	keyFn    KeyFunc
	timeout  time.Duration
	failOpen bool
	prefix   string
	logger   *logging.Logger

	mu       sync.RWMutex
	policies map[string]Policy
}

// New wires a Limiter to its counter store. The store must already be
// reachable; verify with Ping (or NewRedisCounter) before serving traffic.
func New(store CounterStore, opts Options) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store is required: %w", ErrInvalidConfig)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultStoreTimeout
	}
	if opts.OnReject == nil {
		opts.OnReject = DefaultRejectionHandler{}
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc()
	}
	if opts.Prefix == "" {
		opts.Prefix = "ratelimit"
	}

	return &Limiter{
		store:    store,
		onReject: opts.OnReject,
		keyFn:    opts.KeyFn,
		timeout:  opts.Timeout,
		failOpen: opts.FailOpen,
		prefix:   opts.Prefix,
		logger:   opts.Logger,
		policies: make(map[string]Policy),
	}, nil
}

// Attach declares the policy for a route. Routes without an attached policy
// are unthrottled. Attaching twice for the same method and pattern returns
// ErrPolicyExists; policies are immutable once registered.
func (l *Limiter) Attach(method, pattern string, policy Policy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("policy for %s %s: %w", method, pattern, err)
	}

	route := routeKey(method, pattern)

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.policies[route]; ok {
		return fmt.Errorf("%s already limited to %s: %w", route, existing, ErrPolicyExists)
	}
	l.policies[route] = policy

	return nil
}

// PolicyFor returns the attached policy for a route, if any.
func (l *Limiter) PolicyFor(method, pattern string) (Policy, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	policy, ok := l.policies[routeKey(method, pattern)]
	return policy, ok
}

// Evaluate checks one request identified by (client, method, pattern) against
// the route's attached policy. Routes without a policy are admitted without
// touching the store. Evaluate performs I/O against the counter store and
// respects ctx; a store failure surfaces as ErrStoreUnavailable unless the
// limiter is configured fail-open.
func (l *Limiter) Evaluate(ctx context.Context, client, method, pattern string) (Decision, error) {
	policy, ok := l.PolicyFor(method, pattern)
	if !ok {
		return Decision{Allowed: true}, nil
	}
	return l.evaluate(ctx, client, routeKey(method, pattern), policy)
}

func (l *Limiter) evaluate(ctx context.Context, client, route string, policy Policy) (Decision, error) {
	if client == "" {
		return Decision{}, ErrEmptyKey
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := counterKey(l.prefix, client, route)

	hitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	count, remaining, err := l.store.Hit(hitCtx, key, policy.Window)
	if err != nil {
		if l.failOpen {
			if l.logger != nil {
				l.logger.Warn("Rate limit store unreachable, admitting request",
					zap.String("route", route),
					zap.Error(err))
			}
			return Decision{Allowed: true}, nil
		}
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if count <= int64(policy.Requests) {
		return Decision{
			Allowed:   true,
			Remaining: int64(policy.Requests) - count,
		}, nil
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: remaining,
	}, nil
}

// Ping reports whether the counter store is reachable. Suitable as a health
// checker.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// Close releases the underlying counter store.
func (l *Limiter) Close() error {
	return l.store.Close()
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

func counterKey(prefix, client, route string) string {
	return prefix + ":" + client + ":" + route
}
