// Package logging builds the structured logger shared by the binaries.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vanshika/fintrace/amlwatch/internal/config"
)

// ServiceName is attached to every record.
const ServiceName = "amlwatch"

// sensitiveKeys hold card numbers; only their last four characters are logged.
var sensitiveKeys = map[string]struct{}{
	"cc_num":      {},
	"card_number": {},
	"cardNum":     {},
}

// New builds a slog.Logger writing to stdout.
func New(cfg config.LoggingConfig) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg)
}

// NewWithWriter builds a slog.Logger configured according to cfg that
// writes to w.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.IncludeCaller,
		ReplaceAttr: maskSensitive,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("service", ServiceName)
}

func maskSensitive(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[a.Key]; !ok {
		return a
	}
	v := a.Value.Resolve().String()
	if len(v) <= 4 {
		return slog.String(a.Key, strings.Repeat("*", len(v)))
	}
	return slog.String(a.Key, strings.Repeat("*", len(v)-4)+v[len(v)-4:])
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
