package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/postlens/postlens/internal/errors"
	"github.com/postlens/postlens/internal/metrics"
)

// KeyFunc derives the caller identity used in counter keys.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc keys on the connecting peer's host. chi's RealIP middleware
// runs ahead of the limiter, so RemoteAddr already reflects X-Forwarded-For /
// X-Real-IP when those are present.
func DefaultKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// RejectionHandler renders the response for requests the limiter refuses to
// forward. Implementations must write a complete response; the wrapped
// handler is never invoked after a rejection.
type RejectionHandler interface {
	// RejectThrottled handles a request over its route budget.
	RejectThrottled(w http.ResponseWriter, r *http.Request, decision Decision)

	// RejectUnavailable handles a counter store failure under the fail-closed
	// policy. The error is never a throttling decision.
	RejectUnavailable(w http.ResponseWriter, r *http.Request, err error)
}

// DefaultRejectionHandler renders the standard JSON error envelopes: 429 with
// a Retry-After header for throttled requests, 503 for store failures.
type DefaultRejectionHandler struct{}

func (DefaultRejectionHandler) RejectThrottled(w http.ResponseWriter, r *http.Request, decision Decision) {
	seconds := decision.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))

	envelope := apperrors.NewRateLimitedError(
		fmt.Sprintf("Too Many Requests. Retry after %d seconds.", seconds))
	envelope, _ = envelope.WithContext(map[string]interface{}{
		"retry_after_seconds": seconds,
	})
	apperrors.RespondWithEnvelope(w, r, envelope)
}

func (DefaultRejectionHandler) RejectUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, apperrors.WrapRateLimitUnavailable(r.Context(), err,
		"rate limiting backend unreachable"))
}

// Limit attaches policy to the given route and returns the middleware that
// enforces it. Apply per route with chi's With so the route pattern, not the
// resolved path, scopes the budget. Registration errors (invalid or duplicate
// policy) surface here, before the server accepts traffic.
func (l *Limiter) Limit(method, pattern string, policy Policy) (func(http.Handler) http.Handler, error) {
	if err := l.Attach(method, pattern, policy); err != nil {
		return nil, err
	}

	route := routeKey(method, pattern)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := l.evaluate(r.Context(), l.keyFn(r), route, policy)
			if err != nil {
				metrics.RecordRateLimitDecision(route, "error")
				l.onReject.RejectUnavailable(w, r, err)
				return
			}
			if !decision.Allowed {
				metrics.RecordRateLimitDecision(route, "rejected")
				l.onReject.RejectThrottled(w, r, decision)
				return
			}

			metrics.RecordRateLimitDecision(route, "admitted")
			next.ServeHTTP(w, r)
		})
	}, nil
}
