package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordXRPCCall(t *testing.T) {
	nsid := "test.metrics.recordCall"

	RecordXRPCCall(nsid, "GET", 12*time.Millisecond, false, "success")
	RecordXRPCCall(nsid, "GET", 30*time.Millisecond, true, "success")
	RecordXRPCCall(nsid, "GET", 5*time.Millisecond, false, "api_error")

	if got := testutil.ToFloat64(XRPCCalls.WithLabelValues(nsid, "GET", "success")); got != 2 {
		t.Errorf("success calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(XRPCCalls.WithLabelValues(nsid, "GET", "api_error")); got != 1 {
		t.Errorf("api_error calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(XRPCRetries.WithLabelValues(nsid)); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
}

func TestRecordSessionRefresh(t *testing.T) {
	before := testutil.ToFloat64(SessionRefreshes.WithLabelValues("success"))
	RecordSessionRefresh("success")
	if got := testutil.ToFloat64(SessionRefreshes.WithLabelValues("success")); got != before+1 {
		t.Errorf("refreshes = %v, want %v", got, before+1)
	}
}

func TestRecordStorageOperation(t *testing.T) {
	backend := "test-backend"

	tests := []struct {
		name      string
		operation string
		err       error
		status    string
	}{
		{name: "load ok", operation: "load", status: "success"},
		{name: "save failed", operation: "save", err: errors.New("disk full"), status: "error"},
		{name: "clear ok", operation: "clear", status: "success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := StorageOperations.WithLabelValues(backend, tt.operation, tt.status)
			before := testutil.ToFloat64(counter)

			RecordStorageOperation(backend, tt.operation, time.Millisecond, tt.err)

			if got := testutil.ToFloat64(counter); got != before+1 {
				t.Errorf("%s/%s = %v, want %v", tt.operation, tt.status, got, before+1)
			}
		})
	}
}
