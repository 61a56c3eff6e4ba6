package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger for the given level ("debug", "info", "warn",
// "error"). Format is "json" or "console"; anything else falls back to
// console output.
func New(level, format string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		lvl = parsed
	}

	cfg := zap.NewProductionConfig()
	if format != "json" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// WithSession scopes a logger to one call session.
func WithSession(log *zap.Logger, sessionID string, meetingID string) *zap.Logger {
	return log.With(
		zap.String("session_id", sessionID),
		zap.String("meeting_id", meetingID),
	)
}
