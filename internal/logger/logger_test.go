package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContext_FallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithKV_WritesFields checks that context-scoped fields reach the output.
func TestWithKV_WritesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), NewWithWriter(&buf, zapcore.DebugLevel))
	ctx = WithName(ctx, "installer")
	ctx = WithKV(ctx, "artifact", "widget.jar")

	InfoKV(ctx, "Backup created", "path", "backups/backup-1-widget.jar")

	out := buf.String()
	require.Contains(t, out, "installer")
	require.Contains(t, out, "Backup created")
	require.Contains(t, out, "widget.jar")
}

// TestWithFileOutput_AppendsToFile verifies that entries are teed into the log file.
func TestWithFileOutput_AppendsToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "updater.log")

	option, closer, err := WithFileOutput(path)
	require.NoError(t, err)

	var console bytes.Buffer

	l := NewWithWriter(&console, zapcore.DebugLevel, option)
	l.Infow("Update check ran", "result", "NO_UPDATE")
	require.NoError(t, l.Sync())
	require.NoError(t, closer.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "Update check ran")
	require.Contains(t, console.String(), "Update check ran")
}
