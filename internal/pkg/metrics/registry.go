package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// XRPC call metrics (one observation per logical call, including any retry)
var (
	// XRPCCalls tracks total XRPC calls
	XRPCCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atrecord_xrpc_calls_total",
			Help: "Total XRPC calls by nsid, method, and outcome",
		},
		[]string{"nsid", "method", "outcome"},
	)

	// XRPCDuration tracks XRPC call latency, refresh and retry included
	XRPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "atrecord_xrpc_call_duration_ms",
			Help:                            "XRPC call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"nsid", "method"},
	)

	// XRPCRetries tracks calls that were retried after a session refresh
	XRPCRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atrecord_xrpc_retries_total",
			Help: "Total XRPC calls retried after an expired token",
		},
		[]string{"nsid"},
	)
)

// Session metrics
var (
	// SessionRefreshes tracks session refresh attempts by result
	SessionRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atrecord_session_refreshes_total",
			Help: "Total session refresh attempts by result",
		},
		[]string{"result"},
	)
)

// HTTP transport metrics (one observation per round trip)
var (
	// HTTPRequests tracks total HTTP round trips
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atrecord_http_requests_total",
			Help: "Total HTTP requests by method, nsid, and status code",
		},
		[]string{"method", "nsid", "status_code"},
	)

	// HTTPDuration tracks HTTP round trip latency
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "atrecord_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "nsid"},
	)

	// HTTPErrors tracks failed round trips by error type
	HTTPErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atrecord_http_errors_total",
			Help: "Total HTTP errors by nsid and error type",
		},
		[]string{"nsid", "error_type"},
	)
)

// Storage backend metrics
var (
	// StorageOperations tracks session storage operations
	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atrecord_storage_operations_total",
			Help: "Total session storage operations by backend, operation, and status",
		},
		[]string{"backend", "operation", "status"},
	)

	// StorageDuration tracks session storage latency
	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "atrecord_storage_operation_duration_ms",
			Help:                            "Session storage operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"backend", "operation"},
	)
)
