package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/devilmonastery/atrecord/internal/pkg/idgen"
	"github.com/devilmonastery/atrecord/internal/pkg/metrics"
)

// Call invokes an XRPC method with the live access token and decodes the
// response into out.
//
// method is http.MethodGet (params become the query string) or
// http.MethodPost (body is sent as JSON). If the service reports
// ExpiredToken, the session is refreshed and the request is sent once more;
// the second response is returned as-is, even if it is ExpiredToken again.
func (c *Client) Call(ctx context.Context, method, nsid string, params url.Values, body any, out any) error {
	if method != http.MethodGet && method != http.MethodPost {
		return wrapErr(ErrEncode, nsid, fmt.Errorf("unsupported method %q", method))
	}

	var payload []byte
	if method == http.MethodPost {
		var err error
		if payload, err = encodeBody(nsid, body); err != nil {
			return err
		}
	}

	log := c.log.With(
		slog.String("call_id", idgen.GenerateID()),
		slog.String("method", method),
		slog.String("nsid", nsid))

	start := time.Now()
	refreshed := false

	err := c.attempt(ctx, method, nsid, params, payload, out)
	if needsRefresh(err) {
		log.Info("access token expired, attempting refresh")

		if refreshErr := c.refresh(ctx); refreshErr != nil {
			log.Error("token refresh failed", slog.String("error", refreshErr.Error()))
			err = wrapErr(ErrRefresh, nsid, refreshErr)
		} else {
			log.Debug("retrying request with refreshed token")
			refreshed = true
			err = c.attempt(ctx, method, nsid, params, payload, out)
		}
	}

	metrics.RecordXRPCCall(nsid, method, time.Since(start), refreshed, outcome(err))
	if err != nil {
		log.Debug("call failed", slog.Bool("refreshed", refreshed), slog.Any("error", err))
	}
	return err
}

// attempt sends one request and classifies its response
func (c *Client) attempt(ctx context.Context, method, nsid string, params url.Values, payload []byte, out any) error {
	resp, err := c.endpoint.do(ctx, method, nsid, params, payload, c.currentSession().JWT.Access)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if isSuccess(resp.StatusCode) {
		return decodeBody(nsid, resp, out)
	}
	return readAPIError(resp)
}

// needsRefresh reports whether err is the 400 ExpiredToken response
func needsRefresh(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest && apiErr.Code == CodeExpiredToken
}

// Get invokes an XRPC query
func (c *Client) Get(ctx context.Context, nsid string, params url.Values, out any) error {
	return c.Call(ctx, http.MethodGet, nsid, params, nil, out)
}

// Post invokes an XRPC procedure
func (c *Client) Post(ctx context.Context, nsid string, body any, out any) error {
	return c.Call(ctx, http.MethodPost, nsid, nil, body, out)
}

// Query invokes an XRPC query and decodes the response as D
func Query[D any](ctx context.Context, c *Client, nsid string, params url.Values) (D, error) {
	var out D
	if err := c.Get(ctx, nsid, params, &out); err != nil {
		var zero D
		return zero, err
	}
	return out, nil
}

// Procedure invokes an XRPC procedure and decodes the response as D
func Procedure[D any](ctx context.Context, c *Client, nsid string, body any) (D, error) {
	var out D
	if err := c.Post(ctx, nsid, body, &out); err != nil {
		var zero D
		return zero, err
	}
	return out, nil
}
