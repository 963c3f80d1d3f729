package metrics

import (
	"time"
)

// RecordXRPCCall records XRPC call metrics consistently
// nsid: method identifier (e.g., "com.atproto.repo.getRecord")
// method: HTTP method
// duration: time taken for the whole call, refresh and retry included
// refreshed: whether the call was retried after a session refresh
// outcome: "success" or an error class (e.g., "api_error", "transport_error")
func RecordXRPCCall(nsid, method string, duration time.Duration, refreshed bool, outcome string) {
	XRPCDuration.WithLabelValues(nsid, method).Observe(float64(duration.Milliseconds()))
	if refreshed {
		XRPCRetries.WithLabelValues(nsid).Inc()
	}
	XRPCCalls.WithLabelValues(nsid, method, outcome).Inc()
}

// RecordSessionRefresh records the result of one refresh attempt
func RecordSessionRefresh(result string) {
	SessionRefreshes.WithLabelValues(result).Inc()
}

// RecordStorageOperation records session storage metrics consistently
// backend: storage backend name (e.g., "file", "redis", "postgres")
// operation: "load", "save" or "clear"
func RecordStorageOperation(backend, operation string, duration time.Duration, err error) {
	StorageDuration.WithLabelValues(backend, operation).Observe(float64(duration.Milliseconds()))

	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperations.WithLabelValues(backend, operation, status).Inc()
}
