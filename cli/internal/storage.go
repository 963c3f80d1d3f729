package cli

import (
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/config"
	"github.com/devilmonastery/atrecord/internal/store/file"
	"github.com/devilmonastery/atrecord/internal/store/keychain"
	"github.com/devilmonastery/atrecord/internal/store/memory"
	"github.com/devilmonastery/atrecord/internal/store/postgres"
	redisstore "github.com/devilmonastery/atrecord/internal/store/redis"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStorage builds the session storage selected by the context.
// The returned Closer releases backend connections.
func openStorage(name string, ctx *config.Context) (client.Storage, io.Closer, error) {
	switch ctx.Storage.Backend {
	case config.BackendFile:
		dir, err := ctx.SessionDir()
		if err != nil {
			return nil, nil, err
		}
		s, err := file.New(dir, name)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil

	case config.BackendMemory:
		return memory.New(), nopCloser{}, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: ctx.Storage.RedisAddr})
		s, err := redisstore.New(redisstore.Config{
			Client:    rdb,
			KeyPrefix: ctx.Storage.RedisKeyPrefix,
			Name:      name,
		})
		if err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return s, s, nil

	case config.BackendPostgres:
		s, conn, err := postgres.Open(ctx.Storage.PostgresDSN, name)
		if err != nil {
			return nil, nil, err
		}
		return s, conn, nil

	case config.BackendKeychain:
		if !keychain.IsSupported() {
			return nil, nil, fmt.Errorf("storage backend %q: %w", config.BackendKeychain, keychain.ErrNotSupported)
		}
		return keychain.New(name), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", ctx.Storage.Backend)
	}
}

// clientOptions are the options every command opens its client with
func clientOptions(cliCtx *CliContext) []client.Option {
	return []client.Option{
		client.WithLogger(cliCtx.Logger),
		client.WithUserAgent("atrecord-cli/" + Version),
		client.WithMetrics(),
	}
}
