package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level         slog.Level
	LogFile       string
	LogToStderr   bool
	AlsoLogStderr bool
	Format        string // "json" or "text"

	// Rotation for LogFile. Zero values mean 10MB and 3 backups.
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

var (
	// fileWriter is the rotating log file, if any, for Close
	fileWriter   io.WriteCloser
	fileWriterMu sync.Mutex
)

// SetupLogger creates a configured slog logger
func SetupLogger(cfg Config) (*slog.Logger, error) {
	var writers []io.Writer

	// File output (default), rotated by size
	if cfg.LogFile != "" {
		dir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}

		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}

		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    maxSize,    // megabytes
			MaxBackups: maxBackups, // number of backups
			MaxAge:     0,          // don't delete old files based on age
			Compress:   cfg.Compress,
		}
		setFileWriter(lj)
		writers = append(writers, lj)
	}

	// Stderr output
	if cfg.LogToStderr || cfg.AlsoLogStderr {
		writers = append(writers, os.Stderr)
	}

	var handler slog.Handler
	writer := io.MultiWriter(writers...)

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: true, // Always add source file and line number
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler), nil
}

func setFileWriter(w io.WriteCloser) {
	fileWriterMu.Lock()
	defer fileWriterMu.Unlock()
	if fileWriter != nil {
		_ = fileWriter.Close()
	}
	fileWriter = w
}

// Close flushes and closes the log file opened by SetupLogger
func Close() error {
	fileWriterMu.Lock()
	defer fileWriterMu.Unlock()
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// ParseLevel converts a string to slog.Level
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithCommand tags a logger with the CLI command being run
func WithCommand(logger *slog.Logger, cmd string) *slog.Logger {
	return logger.With("command", cmd)
}

// WithContext tags a logger with the configuration context in use
func WithContext(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("context", name)
}

func WithDuration(logger *slog.Logger, duration time.Duration) *slog.Logger {
	return logger.With("duration_ms", duration.Milliseconds())
}

// TokenPrefix shortens a credential for debug logs
func TokenPrefix(token string) string {
	const n = 30
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}

// GetDefaultLogFile returns the default log file path for a component
func GetDefaultLogFile(component string) string {
	configDir, _ := os.UserConfigDir()
	if configDir == "" {
		configDir = "."
	}
	logDir := filepath.Join(configDir, "atrecord")
	return filepath.Join(logDir, component+".log")
}
