package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// InitLogger initializes structured logger. Production uses JSON output at info level,
// everything else the development console encoder.
func InitLogger(env, serviceName string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger = logger.With(zap.String("service", serviceName), zap.String("env", env))

	// Replace global logger
	zap.ReplaceGlobals(logger)

	return logger, nil
}

// SyncLogger flushes buffered entries. Sync errors on stdout/stderr are not actionable and are dropped.
func SyncLogger(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
