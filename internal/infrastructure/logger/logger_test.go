package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("development config", func(t *testing.T) {
		l, err := New(ConfigFor("development"))
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("production config uses json", func(t *testing.T) {
		cfg := ConfigFor("production")
		assert.Equal(t, "json", cfg.Format)
		l, err := New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("unwritable file output is an error", func(t *testing.T) {
		_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "billing.log")})
		require.Error(t, err)
	})

	t.Run("writes to file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "billing.log")
		l, err := New(&Config{Level: "info", Format: "json", Output: path})
		require.NoError(t, err)

		l.Info("payment recorded")
		require.NoError(t, l.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "payment recorded")
	})

	t.Run("extra cores receive entries", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		l, err := New(&Config{Level: "warn", Format: "json", Output: "stderr"}, core)
		require.NoError(t, err)

		l.Info("bridged")
		require.Len(t, recorded.All(), 1)
		assert.Equal(t, "bridged", recorded.All()[0].Message)
	})
}
