// Package logger builds the service's zap logger.
//
// Every entry carries service=docker-run. Entries about one run are scoped
// with ForRun and carry container_name and image, then container once the
// daemon assigned an id. Failed runs add code and state.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/johnnyeric/docker-run/config"
)

// ServiceName is attached to every log entry
const ServiceName = "docker-run"

// Field keys shared by every log entry about a run
const (
	FieldContainerName = "container_name"
	FieldImage         = "image"
	FieldContainer     = "container"
	FieldCode          = "code"
	FieldState         = "state"
)

// ForRun scopes l to one run.
func ForRun(l *zap.Logger, containerName, image string) *zap.Logger {
	return l.With(zap.String(FieldContainerName, containerName), zap.String(FieldImage, image))
}

// WithContainer adds the daemon-assigned container id.
func WithContainer(l *zap.Logger, id string) *zap.Logger {
	return l.With(zap.String(FieldContainer, id))
}

// NewFromConfig builds the logger described by cfg.Logging
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.Logging.Mode, cfg.Logging.Level)
}

// New builds a JSON production logger (ISO8601 "timestamp", durations in
// milliseconds) or a colored development logger, at the given level.
func New(mode, level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch mode {
	case "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	default:
		return nil, fmt.Errorf("invalid logging mode: %s, must be 'production' or 'development'", mode)
	}

	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging level: %s, must be one of 'debug', 'info', 'warn', 'error', 'dpanic', 'panic', 'fatal'", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.InitialFields = map[string]any{"service": ServiceName}

	return cfg.Build()
}
