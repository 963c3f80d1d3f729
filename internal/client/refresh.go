package client

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/atrecord/internal/pkg/metrics"
)

// refresh exchanges the refresh token for a new session.
// The live session is only replaced after storage accepts the new one, so
// memory never runs ahead of durable state.
func (c *Client) refresh(ctx context.Context) error {
	current := c.currentSession()

	resp, err := c.endpoint.do(ctx, http.MethodPost, NSIDRefreshSession, nil, nil, current.JWT.Refresh)
	if err != nil {
		metrics.RecordSessionRefresh("transport_error")
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		metrics.RecordSessionRefresh("rejected")
		return readStatusError("refresh session", resp)
	}

	var out refreshSessionOutput
	if err := decodeBody("refresh session", resp, &out); err != nil {
		metrics.RecordSessionRefresh("decode_error")
		return err
	}
	next, err := out.session()
	if err != nil {
		metrics.RecordSessionRefresh("decode_error")
		return wrapErr(ErrDecode, "refresh session", err)
	}

	if err := c.storage.Save(ctx, next); err != nil {
		metrics.RecordSessionRefresh("storage_error")
		c.log.Error("failed to save refreshed session, keeping previous one",
			slog.String("handle", next.Handle),
			slog.String("error", err.Error()))
		return wrapErr(ErrStorage, "save refreshed session", err)
	}

	c.swapSession(next)
	metrics.RecordSessionRefresh("success")
	c.log.Info("successfully refreshed session",
		slog.String("did", next.DID),
		slog.String("handle", next.Handle))
	return nil
}
