package client

import (
	"context"
	"log/slog"
	"net/http"
)

// Login creates a session with identifier/password and saves it to storage.
// No Client exists afterwards; call Open with the same storage.
//
// A storage failure means the credentials were accepted but the session was
// not persisted, so the caller is not logged in.
func Login(ctx context.Context, serviceURL, identifier, password string, storage Storage, opts ...Option) error {
	o := buildOptions(opts)
	log := o.logger.With(slog.String("component", "xrpc_login"))

	ep, err := newEndpointFromOptions(serviceURL, o)
	if err != nil {
		return err
	}

	payload, err := encodeBody("create session", createSessionInput{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return err
	}

	resp, err := ep.do(ctx, http.MethodPost, NSIDCreateSession, nil, payload, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case isSuccess(resp.StatusCode):
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr := readAPIError(resp)
		log.Info("login rejected",
			slog.String("identifier", identifier),
			slog.String("code", apiErr.Code))
		return apiErr
	default:
		apiErr := readAPIError(resp)
		log.Warn("unexpected login response",
			slog.String("identifier", identifier),
			slog.Int("status", resp.StatusCode),
			slog.String("code", apiErr.Code))
		return apiErr
	}

	var out createSessionOutput
	if err := decodeBody("create session", resp, &out); err != nil {
		return err
	}
	session, err := out.session()
	if err != nil {
		return wrapErr(ErrDecode, "create session", err)
	}

	if err := storage.Save(ctx, session); err != nil {
		log.Error("failed to save session",
			slog.String("handle", session.Handle),
			slog.String("error", err.Error()))
		return wrapErr(ErrStorage, "save session", err)
	}

	log.Info("logged in",
		slog.String("did", session.DID),
		slog.String("handle", session.Handle))
	return nil
}
