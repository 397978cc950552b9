// Package logger sets up the application's zerolog output: console (or
// JSON) plus an optional size-rotated log file.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	Path       string // directory for log files; empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger wraps zerolog together with its file rotator.
type Logger struct {
	zerolog.Logger
	rotator *lumberjack.Logger
}

// New creates a logger. When run via "go run" the level is bumped to debug
// unless something more verbose is configured.
func New(cfg Config) *Logger {
	var out io.Writer = os.Stdout
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level := parseLevel(cfg.Level)
	if isDevBuild() && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	rotator := fileRotator(cfg)
	if rotator != nil {
		out = io.MultiWriter(out, rotator)
	}

	log := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{Logger: log, rotator: rotator}
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// WithComponent returns a sub-logger tagged with a component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:  l.Logger.With().Str("component", component).Logger(),
		rotator: l.rotator,
	}
}

// fileRotator returns a size-rotated file writer, or nil when file logging
// is disabled or the directory cannot be created.
func fileRotator(cfg Config) *lumberjack.Logger {
	if cfg.Path == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Path, "castarr.log"),
		MaxSize:    atLeast(cfg.MaxSizeMB, 10),
		MaxBackups: atLeast(cfg.MaxBackups, 5),
		MaxAge:     atLeast(cfg.MaxAgeDays, 30),
		LocalTime:  true,
	}
}

func atLeast(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func parseLevel(s string) zerolog.Level {
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// isDevBuild reports whether the binary runs out of go-build's temporary
// directory, i.e. via "go run".
func isDevBuild() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	return strings.Contains(exe, "go-build")
}
