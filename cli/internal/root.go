package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/atrecord/internal/config"
	"github.com/devilmonastery/atrecord/internal/pkg/idgen"
	"github.com/devilmonastery/atrecord/internal/pkg/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const cliContextKey contextKey = "cliContext"

// Version is reported in the User-Agent header
var Version = "dev"

// CliContext holds shared CLI context
type CliContext struct {
	Config      *config.Config
	ConfigPath  string
	ContextName string
	Context     *config.Context
	Logger      *slog.Logger
}

// Global flags
var (
	logLevel      string
	logFile       string
	logToStderr   bool
	alsoLogStderr bool
	logFormat     string

	configPath  string
	contextName string
	metricsFile string
	nodeID      int64
)

// NewRootCommand creates the root cobra command
func NewRootCommand() *cobra.Command {
	var ctx CliContext

	rootCmd := &cobra.Command{
		Use:           "atrecord",
		Short:         "CLI for reading records from an XRPC service",
		Long:          `A command line interface for logging in to an XRPC service and reading repository records.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors (main.go handles it)
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			if cmd.Flags().Changed("node-id") {
				if err := idgen.Initialize(nodeID); err != nil {
					return fmt.Errorf("invalid --node-id %d: %w", nodeID, err)
				}
			}

			ctx.Logger = slog.Default().With("component", "cli")
			ctx.Logger.Debug("CLI started", "command", cmd.Name())

			path := configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx.Config = cfg
			ctx.ConfigPath = path

			// Config commands manage contexts and must work even when the
			// current one is broken
			if !isConfigCommand(cmd) {
				env, err := config.LoadEnvOverrides()
				if err != nil {
					return err
				}
				name, resolved, err := cfg.Resolve(contextName, env)
				if err != nil {
					return err
				}
				ctx.ContextName = name
				ctx.Context = resolved
				ctx.Logger = logger.WithContext(ctx.Logger, name)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, &ctx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if metricsFile != "" {
				if err := prometheus.WriteToTextfile(metricsFile, prometheus.DefaultGatherer); err != nil {
					return fmt.Errorf("failed to write metrics: %w", err)
				}
			}
			return logger.Close()
		},
	}

	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newRecordCommand())
	rootCmd.AddCommand(newCallCommand())
	rootCmd.AddCommand(newConfigCommand())

	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path (if specified, logs to file instead of stderr)")
	rootCmd.PersistentFlags().BoolVar(&logToStderr, "logtostderr", false,
		"Log to stderr (default behavior unless --log-file specified)")
	rootCmd.PersistentFlags().BoolVar(&alsoLogStderr, "alsologtostderr", false,
		"Log to both file and stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log format (text, json)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default ~/.atrecord)")
	rootCmd.PersistentFlags().StringVar(&contextName, "context", "",
		"Context to use instead of the current one")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "",
		"Write prometheus metrics for this invocation to a textfile")
	rootCmd.PersistentFlags().Int64Var(&nodeID, "node-id", 0,
		"Snowflake node ID for call IDs (default derived from the process ID)")

	return rootCmd
}

func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}

// setupLogging configures the global logger based on CLI flags
func setupLogging() error {
	// Default to stderr logging unless file is specified
	stderr := logToStderr || logFile == ""

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   stderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)
	return nil
}

// getCliContext extracts the CLI context from the command context
func getCliContext(cmd *cobra.Command) *CliContext {
	return cmd.Context().Value(cliContextKey).(*CliContext)
}
