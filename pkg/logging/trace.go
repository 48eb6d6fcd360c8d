package logging

import (
	"context"
	"log/slog"
)

// LevelTrace sits below DEBUG. It carries per-query payloads (Overpass QL,
// cache keys) and is enabled with level "TRACE".
const LevelTrace = slog.LevelDebug - 4

// Trace logs at LevelTrace.
func Trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}
