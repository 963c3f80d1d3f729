package client

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/devilmonastery/atrecord/internal/pkg/metrics"
)

// metricsTransport wraps an http.RoundTripper to collect metrics on XRPC calls
type metricsTransport struct {
	base http.RoundTripper
}

// NewMetricsTransport creates a transport wrapper that collects metrics for
// every XRPC round trip. WithMetrics installs it on the client's HTTP client.
func NewMetricsTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &metricsTransport{base: base}
}

// RoundTrip implements http.RoundTripper, wrapping the base transport with metrics collection
func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	nsid := nsidFromPath(req.URL.Path)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	metrics.HTTPRequests.WithLabelValues(req.Method, nsid, strconv.Itoa(statusCode)).Inc()
	metrics.HTTPDuration.WithLabelValues(req.Method, nsid).Observe(float64(duration.Milliseconds()))

	if err != nil || statusCode >= 400 {
		metrics.HTTPErrors.WithLabelValues(nsid, classifyHTTPError(statusCode, err)).Inc()
	}

	return resp, err
}

// nsidFromPath extracts the method identifier from an /xrpc/<nsid> path.
// Anything else collapses to "other" to keep label cardinality bounded.
func nsidFromPath(path string) string {
	idx := strings.LastIndex(path, "/xrpc/")
	if idx == -1 {
		return "other"
	}
	nsid := path[idx+len("/xrpc/"):]
	if nsid == "" || strings.Contains(nsid, "/") {
		return "other"
	}
	return nsid
}

// classifyHTTPError categorizes XRPC HTTP failures for metrics
func classifyHTTPError(statusCode int, err error) string {
	if err != nil {
		errStr := err.Error()
		switch {
		case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
			return "timeout"
		case strings.Contains(errStr, "canceled"):
			return "canceled"
		case strings.Contains(errStr, "connection"):
			return "connection"
		case strings.Contains(errStr, "tls"), strings.Contains(errStr, "TLS"), strings.Contains(errStr, "x509"):
			return "tls"
		default:
			return "network"
		}
	}

	switch {
	case statusCode == 400:
		return "bad_request"
	case statusCode == 401:
		return "unauthorized"
	case statusCode == 403:
		return "forbidden"
	case statusCode == 404:
		return "not_found"
	case statusCode == 429:
		return "rate_limited"
	case statusCode >= 500:
		return "server_error"
	case statusCode >= 400:
		return "client_error"
	default:
		return "unknown"
	}
}
