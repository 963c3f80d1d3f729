package client

import (
	"golang.org/x/oauth2"
)

type sessionTokenSource struct {
	client *Client
}

// TokenSource exposes the live access token to oauth2-aware HTTP clients.
// It never refreshes on its own; the returned token tracks whatever session
// the client currently holds.
func (c *Client) TokenSource() oauth2.TokenSource {
	return &sessionTokenSource{client: c}
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	session := s.client.currentSession()

	token := &oauth2.Token{
		AccessToken: session.JWT.Access,
		TokenType:   "Bearer",
	}
	// Tokens without a readable exp claim are treated as non-expiring
	if expiry, err := session.AccessExpiry(); err == nil {
		token.Expiry = expiry
	}
	return token, nil
}
