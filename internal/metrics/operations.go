package metrics

import "github.com/postlens/postlens/internal/observability"

// RecordOperation records a storage-backed operation with its outcome.
func RecordOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			"app_operations_total",
			1,
			map[string]string{
				"operation": operation,
				"status":    status,
			},
		)
	}
}
