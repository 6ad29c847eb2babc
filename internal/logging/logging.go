// Package logging builds the process logger: zap JSON records written to a rotating file,
// exposed to the rest of the program as a logr.Logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures New.
type Config struct {
	// File is the log file path. Empty means DefaultPath().
	File string
	// Level is a zap level name: debug, info, warn or error.
	Level string
	// Stderr also writes records to stderr.
	Stderr bool

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultPath returns ~/.local/state/netpulse/netpulse.log, or a relative path when the
// home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "netpulse.log"
	}
	return filepath.Join(home, ".local", "state", "netpulse", "netpulse.log")
}

// New returns a logger and a func that flushes and closes it.
func New(cfg Config) (logr.Logger, func(), error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return logr.Discard(), func() {}, fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	path := cfg.File
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("create log dir: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(cfg.MaxSizeMB, 20),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 14),
	}

	var out io.Writer = rotator
	if cfg.Stderr {
		out = io.MultiWriter(rotator, os.Stderr)
	}

	zapLogger := build(zapcore.AddSync(out), level)
	cleanup := func() {
		_ = zapLogger.Sync()
		_ = rotator.Close()
	}
	return zapr.NewLogger(zapLogger), cleanup, nil
}

// NewWriter logs to w; used by tests and by callers that manage their own output.
func NewWriter(w io.Writer, level zapcore.Level) logr.Logger {
	return zapr.NewLogger(build(zapcore.AddSync(w), level))
}

func build(ws zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, zap.NewAtomicLevelAt(level))
	return zap.New(core)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
