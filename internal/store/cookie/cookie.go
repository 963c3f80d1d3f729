// Package cookie keeps the session in a signed, encrypted browser cookie, for
// web handlers that call the service on behalf of a visitor.
package cookie

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/pkg/metrics"
)

const (
	backendName = "cookie"

	// CookieName is the name of the session cookie
	CookieName = "atrecord_session"

	// sessionKey is the cookie value key holding the encoded session
	sessionKey = "xrpc_session"
)

// Manager wraps gorilla/sessions for storing XRPC sessions
type Manager struct {
	store *sessions.CookieStore
}

// NewManager creates a new cookie manager.
// hashKey authenticates the cookie; blockKey (16, 24 or 32 bytes) encrypts it.
func NewManager(hashKey, blockKey []byte, secure bool) *Manager {
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   90 * 24 * 60 * 60, // refresh tokens outlive access tokens by weeks
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	for _, codec := range store.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxLength(8192)
		}
	}

	return &Manager{store: store}
}

// Storage returns a client.Storage bound to one request/response pair
func (m *Manager) Storage(w http.ResponseWriter, r *http.Request) *Storage {
	return &Storage{manager: m, w: w, r: r}
}

// Storage implements client.Storage on the request's cookie. Writes made
// during the request are visible to later Loads in the same request.
type Storage struct {
	manager *Manager
	w       http.ResponseWriter
	r       *http.Request
}

func (s *Storage) session() *sessions.Session {
	sess, err := s.manager.store.Get(s.r, CookieName)
	if err != nil {
		// Undecodable cookie (rotated keys, tampering): start over
		sess, _ = s.manager.store.New(s.r, CookieName)
	}
	return sess
}

// Load decodes the session from the cookie
func (s *Storage) Load(ctx context.Context) (session *client.Session, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "load", time.Since(start), err)
	}()

	raw, ok := s.session().Values[sessionKey].(string)
	if !ok {
		return nil, client.ErrNoSession
	}

	session = &client.Session{}
	if err := json.Unmarshal([]byte(raw), session); err != nil {
		return nil, fmt.Errorf("failed to parse session cookie: %w", err)
	}
	return session, nil
}

// Save writes the session into the response cookie
func (s *Storage) Save(ctx context.Context, session *client.Session) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "save", time.Since(start), err)
	}()

	if session == nil {
		return client.ErrNilSession
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	sess := s.session()
	opts := *s.manager.store.Options
	sess.Options = &opts
	sess.Values[sessionKey] = string(data)
	if err := sess.Save(s.r, s.w); err != nil {
		return fmt.Errorf("failed to write session cookie: %w", err)
	}
	return nil
}

// Clear expires the cookie (logout)
func (s *Storage) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "clear", time.Since(start), err)
	}()

	sess := s.session()
	delete(sess.Values, sessionKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(s.r, s.w); err != nil {
		return fmt.Errorf("failed to expire session cookie: %w", err)
	}
	return nil
}
