// Package clienttest provides an in-process XRPC service and a scriptable
// session storage for exercising the client.
package clienttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/devilmonastery/atrecord/internal/client"
)

// Account is the single identity the fake service knows about
type Account struct {
	DID        string
	Handle     string
	Identifier string
	Password   string
}

// DefaultAccount is used by NewServer
var DefaultAccount = Account{
	DID:        "did:plc:testuser123",
	Handle:     "alice.test",
	Identifier: "alice.test",
	Password:   "hunter2",
}

// Reply is a scripted response
type Reply struct {
	Status int
	Body   any
}

// StoredRecord is a record served by getRecord/listRecords
type StoredRecord struct {
	RKey  string
	CID   string
	Value any
}

// Server is a fake XRPC service backed by httptest.Server
type Server struct {
	*httptest.Server

	account Account
	key     []byte

	mu         sync.Mutex
	generation int
	access     string
	refresh    string
	scripts    map[string][]Reply
	requests   map[string]int
	auth       map[string][]string
	records    map[string][]StoredRecord
}

// NewServer starts a fake service for DefaultAccount and stops it when the test ends
func NewServer(t testing.TB) *Server {
	return NewServerForAccount(t, DefaultAccount)
}

// NewServerForAccount starts a fake service for the given account
func NewServerForAccount(t testing.TB, account Account) *Server {
	s := &Server{
		account:  account,
		key:      []byte("clienttest-signing-key"),
		scripts:  make(map[string][]Reply),
		requests: make(map[string]int),
		auth:     make(map[string][]string),
		records:  make(map[string][]StoredRecord),
	}

	r := mux.NewRouter()
	r.Use(s.track)
	r.HandleFunc("/xrpc/"+client.NSIDCreateSession, s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/xrpc/"+client.NSIDRefreshSession, s.handleRefreshSession).Methods(http.MethodPost)
	r.HandleFunc("/xrpc/"+client.NSIDGetRecord, s.requireAccess(s.handleGetRecord)).Methods(http.MethodGet)
	r.HandleFunc("/xrpc/"+client.NSIDListRecords, s.requireAccess(s.handleListRecords)).Methods(http.MethodGet)
	r.HandleFunc("/xrpc/{nsid}", s.requireAccess(s.handleEcho)).Methods(http.MethodGet, http.MethodPost)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// MintToken signs an HS256 JWT with the given subject, scope and expiry
func MintToken(key []byte, subject, scope string, expiresAt time.Time) string {
	claims := jwt.MapClaims{
		"sub":   subject,
		"scope": scope,
		"iat":   time.Now().Unix(),
		"exp":   expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		panic(fmt.Sprintf("clienttest: failed to sign token: %v", err))
	}
	return token
}

// Script queues replies for nsid. Queued replies are served, in order, before
// the built-in behavior.
func (s *Server) Script(nsid string, replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[nsid] = append(s.scripts[nsid], replies...)
}

// Requests returns how many requests reached nsid
func (s *Server) Requests(nsid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[nsid]
}

// Authorizations returns the bearer tokens presented to nsid, in order
func (s *Server) Authorizations(nsid string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth[nsid]...)
}

// IssueSession mints a fresh credential pair, invalidating the previous one
func (s *Server) IssueSession() *client.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked()
}

// ExpireAccess invalidates the current access token; the refresh token stays valid
func (s *Server) ExpireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
}

// Current returns the credentials the service currently accepts
func (s *Server) Current() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.refresh
}

// PutRecords replaces the records of a collection
func (s *Server) PutRecords(repo, collection string, records ...StoredRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[repo+"|"+collection] = records
}

func (s *Server) issueLocked() *client.Session {
	s.generation++
	now := time.Now()
	s.access = MintToken(s.key, s.account.DID, fmt.Sprintf("com.atproto.access#%d", s.generation), now.Add(2*time.Hour))
	s.refresh = MintToken(s.key, s.account.DID, fmt.Sprintf("com.atproto.refresh#%d", s.generation), now.Add(90*24*time.Hour))
	return &client.Session{
		DID:    s.account.DID,
		Handle: s.account.Handle,
		JWT:    client.JWT{Access: s.access, Refresh: s.refresh},
	}
}

func (s *Server) sessionBody(session *client.Session) map[string]string {
	return map[string]string{
		"did":        session.DID,
		"handle":     session.Handle,
		"accessJwt":  session.JWT.Access,
		"refreshJwt": session.JWT.Refresh,
	}
}

// track counts requests and serves scripted replies
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nsid := strings.TrimPrefix(r.URL.Path, "/xrpc/")

		s.mu.Lock()
		s.requests[nsid]++
		s.auth[nsid] = append(s.auth[nsid], bearer(r))
		var reply *Reply
		if queue := s.scripts[nsid]; len(queue) > 0 {
			reply = &queue[0]
			s.scripts[nsid] = queue[1:]
		}
		s.mu.Unlock()

		if reply != nil {
			writeJSON(w, reply.Status, reply.Body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAccess(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		s.mu.Lock()
		valid := token != "" && token == s.access
		s.mu.Unlock()

		if !valid {
			writeError(w, http.StatusBadRequest, client.CodeExpiredToken, "Token has expired")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed body")
		return
	}
	if in.Identifier != s.account.Identifier || in.Password != s.account.Password {
		writeError(w, http.StatusUnauthorized, "AuthenticationRequired", "Invalid identifier or password")
		return
	}

	s.mu.Lock()
	session := s.issueLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sessionBody(session))
}

func (s *Server) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)

	s.mu.Lock()
	if token == "" || token != s.refresh {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "InvalidToken", "Token could not be verified")
		return
	}
	session := s.issueLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sessionBody(session))
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	repo, collection, rkey := q.Get("repo"), q.Get("collection"), q.Get("rkey")

	s.mu.Lock()
	records := s.records[repo+"|"+collection]
	s.mu.Unlock()

	for _, rec := range records {
		if rkey == "" || rec.RKey == rkey {
			writeJSON(w, http.StatusOK, envelope(repo, collection, rec))
			return
		}
	}
	writeError(w, http.StatusBadRequest, "RecordNotFound", "Could not locate record")
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	repo, collection, rkey := q.Get("repo"), q.Get("collection"), q.Get("rkey")

	s.mu.Lock()
	records := s.records[repo+"|"+collection]
	s.mu.Unlock()

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if rkey != "" && rec.RKey != rkey {
			continue
		}
		out = append(out, envelope(repo, collection, rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

// handleEcho answers any other method with what it received
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	var body any
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed body")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nsid":   mux.Vars(r)["nsid"],
		"method": r.Method,
		"query":  r.URL.Query(),
		"body":   body,
	})
}

func envelope(repo, collection string, rec StoredRecord) map[string]any {
	return map[string]any{
		"uri":   fmt.Sprintf("at://%s/%s/%s", repo, collection, rec.RKey),
		"cid":   rec.CID,
		"value": rec.Value,
	}
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if raw, ok := body.(string); ok {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(raw))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
