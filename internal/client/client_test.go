package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/client/clienttest"
)

type post struct {
	Text string `json:"text"`
}

const testCollection = "app.example.post"

// openClient starts a fake service with an issued session and opens a client on it
func openClient(t *testing.T) (*clienttest.Server, *clienttest.Storage, *client.Client) {
	t.Helper()

	srv := clienttest.NewServer(t)
	store := clienttest.NewStorage(srv.IssueSession())

	c, err := client.Open(context.Background(), srv.URL, store)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	return srv, store, c
}

func TestLogin_Success(t *testing.T) {
	srv := clienttest.NewServer(t)
	store := clienttest.NewStorage(nil)

	acct := clienttest.DefaultAccount
	if err := client.Login(context.Background(), srv.URL, acct.Identifier, acct.Password, store); err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}

	saved := store.Saved()
	if saved == nil {
		t.Fatal("expected session to be saved")
	}
	access, refresh := srv.Current()
	want := client.Session{
		DID:    acct.DID,
		Handle: acct.Handle,
		JWT:    client.JWT{Access: access, Refresh: refresh},
	}
	if *saved != want {
		t.Errorf("saved session = %+v, want %+v", *saved, want)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	srv := clienttest.NewServer(t)
	store := clienttest.NewStorage(nil)

	err := client.Login(context.Background(), srv.URL, clienttest.DefaultAccount.Identifier, "wrong", store)

	apiErr, ok := client.AsAPIError(err)
	if !ok {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "AuthenticationRequired" {
		t.Errorf("Code = %q, want %q", apiErr.Code, "AuthenticationRequired")
	}
	if apiErr.Message != "Invalid identifier or password" {
		t.Errorf("Message = %q, want server message unmodified", apiErr.Message)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusUnauthorized)
	}
	if store.Saves() != 0 {
		t.Errorf("Save called %d times, want 0", store.Saves())
	}
}

func TestLogin_UnexpectedStatus(t *testing.T) {
	tests := []struct {
		name     string
		reply    clienttest.Reply
		wantCode string
	}{
		{
			name:     "error envelope on bad request",
			reply:    clienttest.Reply{Status: http.StatusBadRequest, Body: map[string]string{"error": "InvalidRequest", "message": "identifier is required"}},
			wantCode: "InvalidRequest",
		},
		{
			name:     "plain text server error",
			reply:    clienttest.Reply{Status: http.StatusInternalServerError, Body: "upstream exploded"},
			wantCode: client.CodeUnexpectedStatus,
		},
		{
			name:     "empty rate limit response",
			reply:    clienttest.Reply{Status: http.StatusTooManyRequests},
			wantCode: client.CodeUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := clienttest.NewServer(t)
			srv.Script(client.NSIDCreateSession, tt.reply)
			store := clienttest.NewStorage(nil)

			err := client.Login(context.Background(), srv.URL, "alice.test", "hunter2", store)

			apiErr, ok := client.AsAPIError(err)
			if !ok {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if apiErr.StatusCode != tt.reply.Status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.reply.Status)
			}
			if store.Saves() != 0 {
				t.Errorf("Save called %d times, want 0", store.Saves())
			}
		})
	}
}

func TestLogin_StorageFailure(t *testing.T) {
	srv := clienttest.NewServer(t)
	saveErr := errors.New("disk full")
	store := clienttest.NewStorage(nil)
	store.SaveErr = saveErr

	err := client.Login(context.Background(), srv.URL, "alice.test", "hunter2", store)

	if !errors.Is(err, client.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
	if !errors.Is(err, saveErr) {
		t.Errorf("expected backend error in chain, got %v", err)
	}
	if _, ok := client.AsAPIError(err); ok {
		t.Error("storage failure must not look like an API error")
	}
}

func TestLogin_MissingTokens(t *testing.T) {
	srv := clienttest.NewServer(t)
	srv.Script(client.NSIDCreateSession, clienttest.Reply{
		Status: http.StatusOK,
		Body:   map[string]string{"did": "did:plc:x", "handle": "x.test", "accessJwt": "a"},
	})
	store := clienttest.NewStorage(nil)

	err := client.Login(context.Background(), srv.URL, "alice.test", "hunter2", store)
	if !errors.Is(err, client.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
	if store.Saves() != 0 {
		t.Errorf("Save called %d times, want 0", store.Saves())
	}
}

func TestLogin_TransportFailure(t *testing.T) {
	srv := clienttest.NewServer(t)
	srv.Close()

	err := client.Login(context.Background(), srv.URL, "alice.test", "hunter2", clienttest.NewStorage(nil))
	if !errors.Is(err, client.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestLogin_InvalidServiceURL(t *testing.T) {
	err := client.Login(context.Background(), "not a url", "alice.test", "hunter2", clienttest.NewStorage(nil))
	if err == nil {
		t.Fatal("expected error for invalid service URL")
	}
}

func TestOpen_NoSession(t *testing.T) {
	srv := clienttest.NewServer(t)

	_, err := client.Open(context.Background(), srv.URL, clienttest.NewStorage(nil))
	if !errors.Is(err, client.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
	if !errors.Is(err, client.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestOpen_AfterLogin(t *testing.T) {
	srv := clienttest.NewServer(t)
	store := clienttest.NewStorage(nil)

	if err := client.Login(context.Background(), srv.URL, "alice.test", "hunter2", store); err != nil {
		t.Fatalf("Login() unexpected error: %v", err)
	}
	c, err := client.Open(context.Background(), srv.URL, store)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	if got := c.Session(); got != *store.Saved() {
		t.Errorf("Session() = %+v, want %+v", got, *store.Saved())
	}
}

func TestGetRecord(t *testing.T) {
	srv, _, c := openClient(t)
	srv.PutRecords("did:plc:testuser123", testCollection,
		clienttest.StoredRecord{RKey: "3k2a", CID: "bafy1", Value: post{Text: "first"}},
		clienttest.StoredRecord{RKey: "3k2b", CID: "bafy2", Value: post{Text: "second"}},
	)

	got, err := client.GetRecord[post](context.Background(), c, "did:plc:testuser123", testCollection, "3k2b")
	if err != nil {
		t.Fatalf("GetRecord() unexpected error: %v", err)
	}
	if got.Text != "second" {
		t.Errorf("GetRecord() = %+v, want text %q", got, "second")
	}

	env, err := client.GetRecordEnvelope[post](context.Background(), c, "did:plc:testuser123", testCollection, "3k2a")
	if err != nil {
		t.Fatalf("GetRecordEnvelope() unexpected error: %v", err)
	}
	if env.URI != "at://did:plc:testuser123/app.example.post/3k2a" || env.CID != "bafy1" {
		t.Errorf("GetRecordEnvelope() = %+v", env)
	}
	if srv.Requests(client.NSIDRefreshSession) != 0 {
		t.Errorf("unexpected refresh")
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	srv, _, c := openClient(t)

	_, err := client.GetRecord[post](context.Background(), c, "did:plc:testuser123", testCollection, "missing")

	apiErr, ok := client.AsAPIError(err)
	if !ok {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "RecordNotFound" {
		t.Errorf("Code = %q, want RecordNotFound", apiErr.Code)
	}
	if srv.Requests(client.NSIDRefreshSession) != 0 {
		t.Errorf("non-expiry API errors must not trigger a refresh")
	}
	if srv.Requests(client.NSIDGetRecord) != 1 {
		t.Errorf("getRecord requests = %d, want 1", srv.Requests(client.NSIDGetRecord))
	}
}

func TestListRecords_NoRKey(t *testing.T) {
	srv, _, c := openClient(t)
	srv.PutRecords("did:plc:testuser123", testCollection,
		clienttest.StoredRecord{RKey: "b", CID: "bafy2", Value: post{Text: "zebra"}},
		clienttest.StoredRecord{RKey: "a", CID: "bafy1", Value: post{Text: "aardvark"}},
	)

	got, err := client.ListRecords[post](context.Background(), c, "did:plc:testuser123", testCollection, "")
	if err != nil {
		t.Fatalf("ListRecords() unexpected error: %v", err)
	}

	want := []post{{Text: "zebra"}, {Text: "aardvark"}}
	if len(got) != len(want) {
		t.Fatalf("ListRecords() returned %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListRecords()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestListRecords_Empty(t *testing.T) {
	_, _, c := openClient(t)

	got, err := client.ListRecords[post](context.Background(), c, "did:plc:testuser123", "app.example.none", "")
	if err != nil {
		t.Fatalf("ListRecords() unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListRecords() = %v, want empty", got)
	}
}

func TestCall_ExpiredTokenRefreshesOnce(t *testing.T) {
	srv, store, c := openClient(t)
	srv.PutRecords("did:plc:testuser123", testCollection,
		clienttest.StoredRecord{RKey: "a", CID: "bafy1", Value: post{Text: "hello"}},
	)
	before := c.Session()
	srv.ExpireAccess()

	got, err := client.GetRecord[post](context.Background(), c, "did:plc:testuser123", testCollection, "a")
	if err != nil {
		t.Fatalf("GetRecord() unexpected error: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("GetRecord() = %+v, want text %q", got, "hello")
	}

	if n := srv.Requests(client.NSIDGetRecord); n != 2 {
		t.Errorf("getRecord requests = %d, want 2", n)
	}
	if n := srv.Requests(client.NSIDRefreshSession); n != 1 {
		t.Errorf("refreshSession requests = %d, want 1", n)
	}

	// The refresh call authenticates with the refresh token, the retry with the new access token
	if auths := srv.Authorizations(client.NSIDRefreshSession); len(auths) != 1 || auths[0] != before.JWT.Refresh {
		t.Errorf("refresh presented %v, want the previous refresh token", auths)
	}
	access, refresh := srv.Current()
	auths := srv.Authorizations(client.NSIDGetRecord)
	if len(auths) != 2 || auths[0] != before.JWT.Access || auths[1] != access {
		t.Errorf("getRecord presented %v, want old then new access token", auths)
	}

	after := c.Session()
	if after.JWT.Access != access || after.JWT.Refresh != refresh {
		t.Errorf("live session not swapped to refreshed credentials")
	}
	if *store.Saved() != after {
		t.Errorf("stored session = %+v, want %+v", *store.Saved(), after)
	}
}

func TestCall_ExpiredTwiceDoesNotRefreshAgain(t *testing.T) {
	srv, _, c := openClient(t)
	expired := clienttest.Reply{
		Status: http.StatusBadRequest,
		Body:   map[string]string{"error": client.CodeExpiredToken, "message": "Token has expired"},
	}
	srv.Script(client.NSIDGetRecord, expired, expired)

	_, err := client.GetRecord[post](context.Background(), c, "did:plc:testuser123", testCollection, "a")

	if !client.IsExpiredToken(err) {
		t.Fatalf("expected ExpiredToken API error, got %v", err)
	}
	if errors.Is(err, client.ErrRefresh) {
		t.Errorf("second expiry must surface as an API error, not a refresh failure")
	}
	if n := srv.Requests(client.NSIDRefreshSession); n != 1 {
		t.Errorf("refreshSession requests = %d, want exactly 1", n)
	}
	if n := srv.Requests(client.NSIDGetRecord); n != 2 {
		t.Errorf("getRecord requests = %d, want 2", n)
	}
}

func TestCall_ExpiredTokenOnlyOnBadRequest(t *testing.T) {
	srv, _, c := openClient(t)
	srv.Script(client.NSIDGetRecord, clienttest.Reply{
		Status: http.StatusUnauthorized,
		Body:   map[string]string{"error": client.CodeExpiredToken, "message": "Token has expired"},
	})

	_, err := client.GetRecord[post](context.Background(), c, "did:plc:testuser123", testCollection, "a")

	if !client.IsExpiredToken(err) {
		t.Fatalf("expected ExpiredToken API error, got %v", err)
	}
	if n := srv.Requests(client.NSIDRefreshSession); n != 0 {
		t.Errorf("refreshSession requests = %d, want 0", n)
	}
}

func TestCall_RefreshStorageFailureKeepsSession(t *testing.T) {
	srv, store, c := openClient(t)
	before := c.Session()
	saveErr := errors.New("read-only filesystem")
	store.SetSaveErr(saveErr)
	srv.ExpireAccess()

	_, err := client.GetRecord[post](context.Background(), c, "did:plc:testuser123", testCollection, "a")

	if !errors.Is(err, client.ErrRefresh) {
		t.Errorf("expected ErrRefresh, got %v", err)
	}
	if !errors.Is(err, client.ErrStorage) {
		t.Errorf("expected ErrStorage in chain, got %v", err)
	}
	if !errors.Is(err, saveErr) {
		t.Errorf("expected backend error in chain, got %v", err)
	}
	if after := c.Session(); after != before {
		t.Errorf("Session() changed after failed save: got %+v, want %+v", after, before)
	}
	if n := srv.Requests(client.NSIDGetRecord); n != 1 {
		t.Errorf("getRecord requests = %d, want 1 (no retry after failed refresh)", n)
	}
}

func TestCall_RefreshRejected(t *testing.T) {
	srv, _, c := openClient(t)
	srv.Script(client.NSIDRefreshSession, clienttest.Reply{
		Status: http.StatusUnauthorized,
		Body:   map[string]string{"error": "ExpiredToken", "message": "Refresh token has expired"},
	})
	srv.ExpireAccess()

	_, err := client.GetRecord[post](context.Background(), c, "did:plc:testuser123", testCollection, "a")

	if !errors.Is(err, client.ErrRefresh) {
		t.Fatalf("expected ErrRefresh, got %v", err)
	}
	if !errors.Is(err, client.ErrTransport) {
		t.Errorf("expected refresh HTTP failure to be a transport error, got %v", err)
	}
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected *StatusError with 401, got %v", err)
	}
	if n := srv.Requests(client.NSIDGetRecord); n != 1 {
		t.Errorf("getRecord requests = %d, want 1", n)
	}
}

func TestCall_ServerErrorNotRetried(t *testing.T) {
	srv, _, c := openClient(t)
	srv.Script(client.NSIDListRecords, clienttest.Reply{Status: http.StatusBadGateway, Body: "bad gateway"})

	_, err := client.ListRecords[post](context.Background(), c, "did:plc:testuser123", testCollection, "")

	apiErr, ok := client.AsAPIError(err)
	if !ok {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != client.CodeUnexpectedStatus || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("got %+v, want UnexpectedStatus/502", apiErr)
	}
	if apiErr.Message != "bad gateway" {
		t.Errorf("Message = %q, want body text", apiErr.Message)
	}
	if n := srv.Requests(client.NSIDListRecords); n != 1 {
		t.Errorf("listRecords requests = %d, want 1", n)
	}
}

func TestCall_DecodeFailure(t *testing.T) {
	srv, _, c := openClient(t)
	srv.Script(client.NSIDGetRecord, clienttest.Reply{Status: http.StatusOK, Body: "<html>not json</html>"})

	_, err := client.GetRecord[post](context.Background(), c, "did:plc:testuser123", testCollection, "a")
	if !errors.Is(err, client.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestCall_TransportFailure(t *testing.T) {
	srv, _, c := openClient(t)
	srv.Close()

	err := c.Get(context.Background(), "app.example.ping", nil, nil)
	if !errors.Is(err, client.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestCall_ContextCanceled(t *testing.T) {
	_, _, c := openClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Get(ctx, "app.example.ping", nil, nil)
	if !errors.Is(err, client.ErrTransport) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled transport error, got %v", err)
	}
}

type echo struct {
	NSID   string              `json:"nsid"`
	Method string              `json:"method"`
	Query  map[string][]string `json:"query"`
	Body   map[string]any      `json:"body"`
}

func TestProcedure_PostsJSONBody(t *testing.T) {
	srv, _, c := openClient(t)
	srv.ExpireAccess()

	got, err := client.Procedure[echo](context.Background(), c, "app.example.createThing", map[string]any{"name": "widget"})
	if err != nil {
		t.Fatalf("Procedure() unexpected error: %v", err)
	}
	if got.Method != http.MethodPost || got.NSID != "app.example.createThing" {
		t.Errorf("Procedure() echoed %+v", got)
	}
	if got.Body["name"] != "widget" {
		t.Errorf("body not delivered, got %+v", got.Body)
	}
	// The retried POST carries the same body
	if n := srv.Requests("app.example.createThing"); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestQuery_SendsParams(t *testing.T) {
	_, _, c := openClient(t)

	got, err := client.Query[echo](context.Background(), c, "app.example.search", url.Values{"q": {"cats"}})
	if err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if got.Method != http.MethodGet || len(got.Query["q"]) != 1 || got.Query["q"][0] != "cats" {
		t.Errorf("Query() echoed %+v", got)
	}
}

func TestCall_UnsupportedMethod(t *testing.T) {
	srv, _, c := openClient(t)

	err := c.Call(context.Background(), http.MethodDelete, "app.example.thing", nil, nil, nil)
	if !errors.Is(err, client.ErrEncode) {
		t.Errorf("expected ErrEncode, got %v", err)
	}
	if n := srv.Requests("app.example.thing"); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestCall_UnencodableBody(t *testing.T) {
	srv, _, c := openClient(t)

	err := c.Post(context.Background(), "app.example.thing", map[string]any{"ch": make(chan int)}, nil)
	if !errors.Is(err, client.ErrEncode) {
		t.Errorf("expected ErrEncode, got %v", err)
	}
	if n := srv.Requests("app.example.thing"); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestWithOptions(t *testing.T) {
	srv := clienttest.NewServer(t)
	store := clienttest.NewStorage(srv.IssueSession())

	c, err := client.Open(context.Background(), srv.URL, store,
		client.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
		client.WithUserAgent("atrecord-test/0.1"),
		client.WithMetrics(),
	)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	if err := c.Get(context.Background(), "app.example.ping", nil, nil); err != nil {
		t.Errorf("Get() unexpected error: %v", err)
	}
}

func TestTokenSource(t *testing.T) {
	srv, _, c := openClient(t)

	tok, err := c.TokenSource().Token()
	if err != nil {
		t.Fatalf("Token() unexpected error: %v", err)
	}
	access, _ := srv.Current()
	if tok.AccessToken != access {
		t.Errorf("AccessToken does not match live session")
	}
	if tok.Expiry.Before(time.Now().Add(time.Hour)) {
		t.Errorf("Expiry = %v, want about two hours from now", tok.Expiry)
	}
	if !tok.Valid() {
		t.Error("token should be valid")
	}
}

func TestCall_EmptySuccessBody(t *testing.T) {
	srv, _, c := openClient(t)
	srv.Script("app.example.deleteThing", clienttest.Reply{Status: http.StatusOK})

	var out map[string]any
	if err := c.Post(context.Background(), "app.example.deleteThing", map[string]string{"id": "1"}, &out); err != nil {
		t.Errorf("Post() with empty response unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("out = %v, want untouched", out)
	}
}
