package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is, or is an *APIError.
var (
	// ErrNoSession is returned by storage backends when nothing has been saved
	ErrNoSession = errors.New("no session stored")

	// ErrNilSession is returned by storage backends asked to save a nil session
	ErrNilSession = errors.New("cannot save a nil session")

	// ErrTransport is a connection or HTTP-layer failure
	ErrTransport = errors.New("transport failure")

	// ErrStorage is a persistence backend failure
	ErrStorage = errors.New("storage failure")

	// ErrDecode is a response body that did not match the expected shape
	ErrDecode = errors.New("malformed response")

	// ErrEncode is a request body that could not be serialized
	ErrEncode = errors.New("malformed request body")

	// ErrRefresh is a failed session refresh during a call
	ErrRefresh = errors.New("session refresh failed")
)

// Error codes reported in the "error" field of the service's error envelope
const (
	CodeExpiredToken = "ExpiredToken"

	// CodeUnexpectedStatus is synthesized when a non-success response carries
	// no error envelope.
	CodeUnexpectedStatus = "UnexpectedStatus"
)

// Error wraps a failure with its kind and the operation that produced it
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func wrapErr(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// APIError is a structured error reported by the service
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("xrpc error %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("xrpc error %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// StatusError is a non-success HTTP response treated as a transport failure
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("unexpected status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// IsExpiredToken reports whether err is the service's expired-token error
func IsExpiredToken(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeExpiredToken
}

// AsAPIError returns the *APIError in err's chain, if any
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// outcome classifies a call result for metrics labels
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRefresh):
		return "refresh_error"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.Is(err, ErrDecode):
		return "decode_error"
	case errors.Is(err, ErrEncode):
		return "encode_error"
	}
	if IsExpiredToken(err) {
		return "expired_token"
	}
	if _, ok := AsAPIError(err); ok {
		return "api_error"
	}
	return "other"
}
