package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/devilmonastery/atrecord/internal/pkg/urlutil"
)

// DefaultUserAgent is sent when no WithUserAgent option is given
const DefaultUserAgent = "atrecord/1.0"

// Client dispatches authenticated XRPC calls and refreshes the session on expiry.
//
// The live session is swapped atomically, but calls are not serialized: two
// concurrent calls that both see an expired token will both refresh. Callers
// that share a Client across goroutines should serialize calls or open one
// Client per goroutine over the same Storage.
type Client struct {
	endpoint *endpoint
	storage  Storage
	log      *slog.Logger

	mu      sync.RWMutex
	session *Session
}

// Option configures a Client or a Login call
type Option func(*options)

type options struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	metrics    bool
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithLogger sets the logger used for call and refresh events
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records prometheus metrics for every HTTP round trip
func WithMetrics() Option {
	return func(o *options) {
		o.metrics = true
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.metrics {
		// Copy so the caller's client is left untouched
		hc := *o.httpClient
		hc.Transport = NewMetricsTransport(hc.Transport)
		o.httpClient = &hc
	}
	return o
}

func newEndpointFromOptions(serviceURL string, o *options) (*endpoint, error) {
	service, err := urlutil.ParseServiceURL(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid service URL: %w", err)
	}
	return &endpoint{
		service:    service,
		httpClient: o.httpClient,
		userAgent:  o.userAgent,
	}, nil
}

// Open creates a client from the session currently held by storage.
// Login must have saved a session to storage first.
func Open(ctx context.Context, serviceURL string, storage Storage, opts ...Option) (*Client, error) {
	o := buildOptions(opts)

	ep, err := newEndpointFromOptions(serviceURL, o)
	if err != nil {
		return nil, err
	}

	session, err := storage.Load(ctx)
	if err != nil {
		return nil, wrapErr(ErrStorage, "load session", err)
	}
	if !session.Valid() {
		return nil, wrapErr(ErrStorage, "load session", fmt.Errorf("stored session is missing credentials"))
	}

	log := o.logger.With(slog.String("component", "xrpc_client"))
	log.Debug("client opened",
		slog.String("service", ep.service.String()),
		slog.String("did", session.DID),
		slog.String("handle", session.Handle))

	return &Client{
		endpoint: ep,
		storage:  storage,
		log:      log,
		session:  session,
	}, nil
}

// Session returns a copy of the live session
func (c *Client) Session() Session {
	return *c.currentSession()
}

// ServiceURL returns the normalized service base URL
func (c *Client) ServiceURL() string {
	return c.endpoint.service.String()
}

func (c *Client) currentSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) swapSession(next *Session) {
	c.mu.Lock()
	c.session = next
	c.mu.Unlock()
}
