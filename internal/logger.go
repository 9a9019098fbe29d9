package internal

import (
	"io"
	"log/slog"
	"time"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger builds the process logger. Prod writes JSON with UTC
// timestamps for the log shipper; dev writes text. Debug also records the
// call site. Unknown levels fall back to info.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	lvl, ok := logLevels[level]
	if !ok && level != "" {
		slog.Default().Warn("Invalid log level. Using default level: info", slog.String("value", level))
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var h slog.Handler
	if env == "prod" {
		opts.ReplaceAttr = utcTimestamps
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("app", "motorworks")
}

func utcTimestamps(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
	}
	return a
}
