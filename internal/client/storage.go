package client

import "context"

// Storage persists the current Session.
// Different implementations can store sessions in memory, files, databases, etc.
// The client relies only on overwrite-on-save and read-your-last-write.
type Storage interface {
	// Load returns the last saved session, or ErrNoSession if none exists
	Load(ctx context.Context) (*Session, error)

	// Save replaces the stored session
	Save(ctx context.Context, session *Session) error
}

// Clearer is implemented by storage backends that can forget a session (logout)
type Clearer interface {
	Clear(ctx context.Context) error
}
