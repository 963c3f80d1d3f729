package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// EnvOverrides are environment variables that take precedence over the
// selected context for one invocation. They are never written back.
type EnvOverrides struct {
	Context        string `env:"ATRECORD_CONTEXT"`
	ServiceURL     string `env:"ATRECORD_SERVICE_URL"`
	Identifier     string `env:"ATRECORD_IDENTIFIER"`
	StorageBackend string `env:"ATRECORD_STORAGE_BACKEND"`
	StoragePath    string `env:"ATRECORD_STORAGE_PATH"`
	RedisAddr      string `env:"ATRECORD_REDIS_ADDR"`
	RedisKeyPrefix string `env:"ATRECORD_REDIS_KEY_PREFIX"`
	PostgresDSN    string `env:"ATRECORD_POSTGRES_DSN"`
}

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultPath returns the path to the config file, ~/.atrecord
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".atrecord"), nil
}

// Load reads the configuration at path. A missing file is created with
// DefaultConfig.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document, expanding ${VAR} references
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure we have a valid current context
	if cfg.CurrentContext == "" && len(cfg.Contexts) > 0 {
		cfg.CurrentContext = cfg.ContextNames()[0]
	}

	for _, name := range cfg.ContextNames() {
		if cfg.Contexts[name] == nil {
			return nil, fmt.Errorf("context %q is empty", name)
		}
		if err := cfg.Contexts[name].Validate(); err != nil {
			return nil, fmt.Errorf("context %q: %w", name, err)
		}
	}
	return &cfg, nil
}

// Save writes the configuration to path with owner-only permissions
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnvOverrides decodes the ATRECORD_* environment variables
func LoadEnvOverrides() (EnvOverrides, error) {
	var env EnvOverrides
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return EnvOverrides{}, fmt.Errorf("failed to decode environment: %w", err)
	}
	return env, nil
}

// Resolve returns the effective context for this invocation: the named
// context (or ATRECORD_CONTEXT, or the current one) with environment
// overrides applied. The stored configuration is not modified.
func (c *Config) Resolve(name string, env EnvOverrides) (string, *Context, error) {
	if name == "" {
		name = env.Context
	}
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return "", nil, fmt.Errorf("no current context set")
	}

	stored, ok := c.Contexts[name]
	if !ok {
		return "", nil, fmt.Errorf("context %q not found", name)
	}

	ctx := *stored
	env.apply(&ctx)
	if err := ctx.Validate(); err != nil {
		return "", nil, fmt.Errorf("context %q: %w", name, err)
	}
	return name, &ctx, nil
}

func (env EnvOverrides) apply(ctx *Context) {
	if env.ServiceURL != "" {
		ctx.Service.URL = env.ServiceURL
	}
	if env.Identifier != "" {
		ctx.Identifier = env.Identifier
	}
	if env.StorageBackend != "" {
		ctx.Storage.Backend = env.StorageBackend
	}
	if env.StoragePath != "" {
		ctx.Storage.Path = env.StoragePath
	}
	if env.RedisAddr != "" {
		ctx.Storage.RedisAddr = env.RedisAddr
	}
	if env.RedisKeyPrefix != "" {
		ctx.Storage.RedisKeyPrefix = env.RedisKeyPrefix
	}
	if env.PostgresDSN != "" {
		ctx.Storage.PostgresDSN = env.PostgresDSN
	}
}
