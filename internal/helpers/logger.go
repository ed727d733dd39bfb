package helpers

import (
	"log/slog"
	"os"
)

// SetupLogger returns the handler to keep and a logger grouped under component and, when
// non-empty, group. A nil handler falls back to a text handler on stderr.
func SetupLogger(handler slog.Handler, component string, group string) (slog.Handler, *slog.Logger) {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}).
			WithGroup(component)
	}

	logger := slog.New(handler)
	if group != "" {
		logger = slog.New(handler.WithGroup(group))
	}
	return handler, logger
}
