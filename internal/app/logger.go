package app

import (
	"io"
	"log/slog"
	"strings"

	"github.com/vk/flowgrid/internal/workspace"
)

const redacted = "[redacted]"

// newLogger builds an isolated logger. Unknown levels fall back to info and
// any attribute named after a credential key is masked.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level, ReplaceAttr: redactCredentials}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}

func redactCredentials(_ []string, a slog.Attr) slog.Attr {
	if isCredentialKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isCredentialKey(key string) bool {
	if _, ok := workspace.EnvVars[key]; ok {
		return true
	}
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, "apikey") || strings.HasSuffix(lower, "api_key")
}
