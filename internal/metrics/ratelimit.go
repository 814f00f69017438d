package metrics

import "github.com/postlens/postlens/internal/observability"

// RecordRateLimitDecision records the outcome of one rate limit evaluation.
// decision is "admitted", "rejected", or "error" (counter store unreachable).
// The route label carries the method plus route pattern, never the resolved
// path, to keep cardinality bounded.
func RecordRateLimitDecision(route string, decision string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			"ratelimit_decisions_total",
			1,
			map[string]string{
				"route":    route,
				"decision": decision,
			},
		)
	}
}
