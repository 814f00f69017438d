package ratelimit

import "errors"

var (
	// ErrEmptyKey is returned when a counter key cannot be derived.
	ErrEmptyKey = errors.New("empty rate limit key")

	// ErrInvalidConfig is returned for non-positive policies or missing wiring.
	ErrInvalidConfig = errors.New("invalid rate limiter configuration")

	// ErrPolicyExists is returned by Attach when a route already has a policy.
	// Re-registration is rejected rather than silently replaced.
	ErrPolicyExists = errors.New("rate limit policy already attached")

	// ErrStoreUnavailable wraps counter store failures observed while
	// evaluating a request, as opposed to failures at startup.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)
