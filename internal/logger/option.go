package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// logFilePermissions restricts the log file to the current user.
	logFilePermissions = 0o600
	// logDirectoryPermissions is used when the log file directory is missing.
	logDirectoryPermissions = 0o755
)

// coreWithLevel wraps a zapcore.Core and overrides its level.
type coreWithLevel struct {
	zapcore.Core

	// level is the minimum level accepted by this core.
	level zapcore.Level
}

// Enabled reports whether l passes the overridden level.
func (c *coreWithLevel) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check adds the core to ce when the entry level is enabled.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *coreWithLevel) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With keeps the overridden level on derived cores.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{
		c.Core.With(fields),
		c.level,
	}
}

// WithLevel returns an option that pins the logger to lvl regardless of the shared level.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(
		func(core zapcore.Core) zapcore.Core {
			return &coreWithLevel{core, lvl}
		})
}

// WithFileOutput returns an option that duplicates every entry into an
// append-only file at path. The caller owns the returned closer.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithFileOutput(path string) (zap.Option, io.Closer, error) {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), logDirectoryPermissions); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePermissions)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	fileCore := zapcore.NewCore(
		newConsoleEncoder(zapcore.CapitalLevelEncoder),
		zapcore.AddSync(file),
		defaultLevel,
	)

	option := zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})

	return option, file, nil
}
