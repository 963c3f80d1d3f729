package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNSIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/xrpc/com.atproto.repo.getRecord", want: "com.atproto.repo.getRecord"},
		{path: "/base/xrpc/com.atproto.server.createSession", want: "com.atproto.server.createSession"},
		{path: "/xrpc/", want: "other"},
		{path: "/xrpc/a/b", want: "other"},
		{path: "/healthz", want: "other"},
		{path: "", want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := nsidFromPath(tt.path); got != tt.want {
				t.Errorf("nsidFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		want       string
	}{
		{name: "timeout error", err: errors.New("context deadline exceeded"), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "connection error", err: errors.New("connection refused"), want: "connection"},
		{name: "tls error", err: errors.New("x509: certificate signed by unknown authority"), want: "tls"},
		{name: "generic network error", err: errors.New("no such host"), want: "network"},
		{name: "400", statusCode: 400, want: "bad_request"},
		{name: "401", statusCode: 401, want: "unauthorized"},
		{name: "403", statusCode: 403, want: "forbidden"},
		{name: "404", statusCode: 404, want: "not_found"},
		{name: "429", statusCode: 429, want: "rate_limited"},
		{name: "500", statusCode: 500, want: "server_error"},
		{name: "502", statusCode: 502, want: "server_error"},
		{name: "418", statusCode: 418, want: "client_error"},
		{name: "200 no error", statusCode: 200, want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyHTTPError(tt.statusCode, tt.err); got != tt.want {
				t.Errorf("classifyHTTPError(%d, %v) = %q, want %q", tt.statusCode, tt.err, got, tt.want)
			}
		})
	}
}

func TestMetricsTransport_PassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	transport := NewMetricsTransport(nil)
	req, err := http.NewRequest(http.MethodGet, server.URL+"/xrpc/app.example.ping", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("X-Test", "yes")

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusTeapot)
	}
}
