package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT holds the access/refresh credential pair issued by the service
type JWT struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Session is an authenticated identity on the service.
// A Session is never modified after construction; a refresh produces a new one.
type Session struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
	JWT    JWT    `json:"jwt"`
}

// newSession is the single construction path for sessions coming off the wire.
// Both createSession and refreshSession responses go through it.
func newSession(did, handle, accessJwt, refreshJwt string) (*Session, error) {
	if accessJwt == "" || refreshJwt == "" {
		return nil, fmt.Errorf("session for %q is missing credentials", handle)
	}
	return &Session{
		DID:    did,
		Handle: handle,
		JWT: JWT{
			Access:  accessJwt,
			Refresh: refreshJwt,
		},
	}, nil
}

// Valid reports whether both credentials are present
func (s *Session) Valid() bool {
	return s != nil && s.JWT.Access != "" && s.JWT.Refresh != ""
}

// AccessExpiry returns the exp claim of the access token.
// The token is not verified; the service remains the authority on validity.
func (s *Session) AccessExpiry() (time.Time, error) {
	return tokenExpiry(s.JWT.Access)
}

// RefreshExpiry returns the exp claim of the refresh token
func (s *Session) RefreshExpiry() (time.Time, error) {
	return tokenExpiry(s.JWT.Refresh)
}

// ErrNoExpiry is returned when a token carries no exp claim
var ErrNoExpiry = errors.New("token has no expiry")

func tokenExpiry(tokenString string) (time.Time, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}
