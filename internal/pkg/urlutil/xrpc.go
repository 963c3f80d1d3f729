package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseServiceURL parses a service base URL and normalizes it to end in "/"
// so that XRPC paths resolve beneath it rather than replacing its last segment.
func ParseServiceURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}

	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// XRPCURL builds the URL for an XRPC method beneath the service URL.
// Returns a URL like: {service}xrpc/{nsid}?{params}
func XRPCURL(service *url.URL, nsid string, params url.Values) string {
	u := service.ResolveReference(&url.URL{Path: "xrpc/" + nsid})
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}
