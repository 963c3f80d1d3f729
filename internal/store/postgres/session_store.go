// Package postgres stores sessions in a PostgreSQL table, keyed by name.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/pkg/metrics"
)

const backendName = "postgres"

// sessionRow represents a session as stored in the database
// Schema: name (PK), did, handle, access_jwt, refresh_jwt, created_at, updated_at
type sessionRow struct {
	Name       string    `db:"name"`
	DID        string    `db:"did"`
	Handle     string    `db:"handle"`
	AccessJWT  string    `db:"access_jwt"`
	RefreshJWT string    `db:"refresh_jwt"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r *sessionRow) toSession() *client.Session {
	return &client.Session{
		DID:    r.DID,
		Handle: r.Handle,
		JWT: client.JWT{
			Access:  r.AccessJWT,
			Refresh: r.RefreshJWT,
		},
	}
}

// SessionStore implements client.Storage on one row of xrpc_sessions
type SessionStore struct {
	db   *sqlx.DB
	name string
}

// NewSessionStore creates a store for the named session.
// The schema must already be migrated.
func NewSessionStore(db *sqlx.DB, name string) *SessionStore {
	if name == "" {
		name = "default"
	}
	return &SessionStore{db: db, name: name}
}

// Open connects, migrates the schema, and returns a store for the named session
func Open(dsn, name string) (*SessionStore, *Connection, error) {
	conn, err := NewConnection(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.RunMigrations(); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return NewSessionStore(conn.DB, name), conn, nil
}

// Load retrieves the session row
func (s *SessionStore) Load(ctx context.Context) (session *client.Session, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "load", time.Since(start), err)
	}()

	query := `
		SELECT name, did, handle, access_jwt, refresh_jwt, created_at, updated_at
		FROM xrpc_sessions
		WHERE name = $1
	`

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, query, s.name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, client.ErrNoSession
		}
		return nil, fmt.Errorf("failed to get session %s: %w", s.name, err)
	}
	return row.toSession(), nil
}

// Save upserts the session row
func (s *SessionStore) Save(ctx context.Context, session *client.Session) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "save", time.Since(start), err)
	}()

	if session == nil {
		return client.ErrNilSession
	}

	query := `
		INSERT INTO xrpc_sessions (name, did, handle, access_jwt, refresh_jwt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			did = EXCLUDED.did,
			handle = EXCLUDED.handle,
			access_jwt = EXCLUDED.access_jwt,
			refresh_jwt = EXCLUDED.refresh_jwt,
			updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		s.name,
		session.DID,
		session.Handle,
		session.JWT.Access,
		session.JWT.Refresh,
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.name, err)
	}
	return nil
}

// Clear deletes the session row
func (s *SessionStore) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "clear", time.Since(start), err)
	}()

	query := `DELETE FROM xrpc_sessions WHERE name = $1`
	if _, err := s.db.ExecContext(ctx, query, s.name); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", s.name, err)
	}
	return nil
}

// UpdatedAt returns when the session row was last written
func (s *SessionStore) UpdatedAt(ctx context.Context) (time.Time, error) {
	var updated time.Time
	err := s.db.GetContext(ctx, &updated, `SELECT updated_at FROM xrpc_sessions WHERE name = $1`, s.name)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, client.ErrNoSession
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get session %s: %w", s.name, err)
	}
	return updated, nil
}
