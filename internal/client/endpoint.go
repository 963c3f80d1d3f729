package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/devilmonastery/atrecord/internal/pkg/urlutil"
)

// maxErrorBody bounds how much of a failed response is read for diagnostics
const maxErrorBody = 64 << 10

// endpoint sends XRPC requests to one service
type endpoint struct {
	service    *url.URL
	httpClient *http.Client
	userAgent  string
}

// do sends a single request. bearer may be empty for unauthenticated calls.
func (e *endpoint) do(ctx context.Context, method, nsid string, params url.Values, body []byte, bearer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlutil.XRPCURL(e.service, nsid, params), reader)
	if err != nil {
		return nil, wrapErr(ErrTransport, "build request "+nsid, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, wrapErr(ErrTransport, method+" "+nsid, err)
	}
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// decodeBody decodes a success response into out. A nil out discards the
// body, and an empty body leaves out untouched.
func decodeBody(op string, resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return wrapErr(ErrDecode, op, err)
	}
	return nil
}

// readAPIError turns a non-success response into an *APIError. Responses
// without an error envelope become CodeUnexpectedStatus.
func readAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = CodeUnexpectedStatus
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

// readStatusError turns a non-success response into a transport-class failure
func readStatusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return wrapErr(ErrTransport, op, &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	})
}

func encodeBody(op string, body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, wrapErr(ErrEncode, op, fmt.Errorf("failed to marshal body: %w", err))
	}
	return data, nil
}
