// Package redis provides a Redis-backed session storage, so several hosts
// can share one login.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/pkg/metrics"
)

const backendName = "redis"

// Config contains configuration options for the Redis storage
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "atrecord:session:"
	KeyPrefix string

	// Name selects which session under the prefix this storage holds
	// Default: "default"
	Name string
}

// Storage implements client.Storage using Redis
type Storage struct {
	client *redis.Client
	key    string
}

// New creates a new Redis-based storage instance
func New(config Config) (*Storage, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "atrecord:session:"
	}
	if config.Name == "" {
		config.Name = "default"
	}

	return &Storage{
		client: config.Client,
		key:    config.KeyPrefix + config.Name,
	}, nil
}

// Load retrieves the session
func (s *Storage) Load(ctx context.Context) (session *client.Session, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "load", time.Since(start), err)
	}()

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, client.ErrNoSession
		}
		return nil, fmt.Errorf("failed to get key %s: %w", s.key, err)
	}

	session = &client.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored session: %w", err)
	}
	return session, nil
}

// Save overwrites the session. The key never expires; the service decides
// when the refresh token stops working.
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
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the session key
func (s *Storage) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "clear", time.Since(start), err)
	}()

	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", s.key, err)
	}
	return nil
}

// Close closes the Redis client
func (s *Storage) Close() error {
	return s.client.Close()
}
