// pkg/logger/logger.go

package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// L returns the process-wide logger, or nil if none has been installed yet.
func L() *zap.Logger {
	return log
}

// SetLogger installs the given logger as the package default.
func SetLogger(l *zap.Logger) {
	log = l
}

// DefaultConsoleEncoderConfig returns the encoder config used for human-facing
// console output.
func DefaultConsoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

// ParseLogLevel maps a LOG_LEVEL environment value to a zap level.
// Unknown or empty values default to Info.
func ParseLogLevel(level string) zapcore.Level {
	switch level {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Initialize builds a logger from the given config and installs it globally.
func Initialize(cfg zap.Config) {
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	zap.ReplaceGlobals(logger)
	SetLogger(logger)

	logger.Info("Logger initialized", zap.String("log_level", cfg.Level.String()))
}

// GetLogger returns the installed logger, installing a console fallback if
// nothing has been initialized yet.
func GetLogger() *zap.Logger {
	l := L()
	if l == nil {
		fallback := NewFallbackLogger()
		zap.ReplaceGlobals(fallback)
		SetLogger(fallback)
		return fallback
	}
	return l
}

// Sync flushes any buffered log entries. Called on process exit.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
