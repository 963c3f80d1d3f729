package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Storage backend names
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendKeychain = "keychain"
)

// Backends lists the storage backends a context may select
var Backends = []string{BackendFile, BackendMemory, BackendRedis, BackendPostgres, BackendKeychain}

// StorageConfig selects where a context keeps its session
type StorageConfig struct {
	Backend        string `yaml:"backend"`
	Path           string `yaml:"path,omitempty"`
	RedisAddr      string `yaml:"redis_addr,omitempty"`
	RedisKeyPrefix string `yaml:"redis_key_prefix,omitempty"`
	PostgresDSN    string `yaml:"postgres_dsn,omitempty"`
}

// Context represents a named configuration context (like kubectl contexts)
type Context struct {
	Service struct {
		URL string `yaml:"url"`
	} `yaml:"service"`
	Identifier string        `yaml:"identifier,omitempty"`
	Storage    StorageConfig `yaml:"storage"`
	Rendering  struct {
		Theme string `yaml:"theme"`
	} `yaml:"rendering"`
}

// Config represents the CLI configuration with multiple contexts
type Config struct {
	CurrentContext string              `yaml:"current-context"`
	Contexts       map[string]*Context `yaml:"contexts"`
}

// NewContext returns a context for serviceURL with file storage and auto theme
func NewContext(serviceURL string) *Context {
	ctx := &Context{}
	ctx.Service.URL = serviceURL
	ctx.Storage.Backend = BackendFile
	ctx.Rendering.Theme = "auto"
	return ctx
}

// DefaultConfig returns the default configuration with "bsky" and "local" contexts
func DefaultConfig() *Config {
	return &Config{
		CurrentContext: "bsky",
		Contexts: map[string]*Context{
			"bsky":  NewContext("https://bsky.social"),
			"local": NewContext("http://localhost:2583"),
		},
	}
}

// GetCurrentContext returns the current active context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}

	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context %q not found", c.CurrentContext)
	}

	return ctx, nil
}

// SetCurrentContext sets the current active context
func (c *Config) SetCurrentContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	c.CurrentContext = name
	return nil
}

// AddContext adds or updates a context
func (c *Config) AddContext(name string, ctx *Context) error {
	if name == "" {
		return fmt.Errorf("context name is required")
	}
	if err := ctx.Validate(); err != nil {
		return fmt.Errorf("context %q: %w", name, err)
	}
	if c.Contexts == nil {
		c.Contexts = make(map[string]*Context)
	}
	c.Contexts[name] = ctx
	return nil
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if name == c.CurrentContext {
		return fmt.Errorf("cannot delete current context %q", name)
	}
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q does not exist", name)
	}
	delete(c.Contexts, name)
	return nil
}

// ContextNames returns the context names in sorted order
func (c *Config) ContextNames() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the context can be used to build a client
func (ctx *Context) Validate() error {
	if ctx.Service.URL == "" {
		return fmt.Errorf("service.url is required")
	}

	switch ctx.Storage.Backend {
	case BackendFile, BackendMemory, BackendKeychain:
	case BackendRedis:
		if ctx.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis backend")
		}
	case BackendPostgres:
		if ctx.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres backend")
		}
	case "":
		return fmt.Errorf("storage.backend is required")
	default:
		return fmt.Errorf("unknown storage.backend %q (want one of %v)", ctx.Storage.Backend, Backends)
	}

	switch ctx.Rendering.Theme {
	case "", "auto", "dark", "light", "notty":
	default:
		return fmt.Errorf("unknown rendering.theme %q", ctx.Rendering.Theme)
	}
	return nil
}

// SessionDir returns where the file backend keeps sessions for this context
func (ctx *Context) SessionDir() (string, error) {
	if ctx.Storage.Path != "" {
		return ctx.Storage.Path, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "atrecord", "sessions"), nil
}
