package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop() // usable before Init so early failures still log nowhere safely
)

// Init builds the process-wide logger at the given level. An unrecognised
// level string falls back to info rather than erroring, so a config typo
// cannot silence the engine.
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	global = built
	mu.Unlock()
	return nil
}

// Logger returns the configured process-wide logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered log entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger annotated with the engine module name
// (authz, roles, violations, audit, ...).
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Tenant is the standard field for the tenant a log line concerns. Decision
// and mutation paths use it so tenant-scoped log queries line up.
func Tenant(tenantID string) zap.Field {
	return zap.String("tenant_id", tenantID)
}

// Subject is the standard field for the user a decision or mutation is about.
func Subject(userID string) zap.Field {
	return zap.String("user_id", userID)
}

// Info logs an informational message using the process-wide logger.
func Info(msg string, fields ...zap.Field) {
	Logger().Info(msg, fields...)
}

// Error logs an error message using the process-wide logger.
func Error(msg string, fields ...zap.Field) {
	Logger().Error(msg, fields...)
}

// Warn logs a warning message using the process-wide logger.
func Warn(msg string, fields ...zap.Field) {
	Logger().Warn(msg, fields...)
}

// Debug logs a debug message using the process-wide logger.
func Debug(msg string, fields ...zap.Field) {
	Logger().Debug(msg, fields...)
}
