// Package logging builds the process zap logger: JSON lines on stdout tagged with service and env.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SystemTraceID and SystemSpanID mark lines that belong to no request, such as startup and shutdown.
const (
	SystemTraceID = "system"
	SystemSpanID  = "system"
)

type options struct {
	level zapcore.Level
	file  string
}

type Option func(*options) error

// WithLevel parses "debug", "info", "warn" or "error". An empty string keeps info.
func WithLevel(level string) Option {
	return func(o *options) error {
		if level == "" {
			return nil
		}
		l, err := zapcore.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		o.level = l
		return nil
	}
}

// WithFile duplicates output to path, creating its directory.
func WithFile(path string) Option {
	return func(o *options) error {
		if path == "" {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		o.file = path
		return nil
	}
}

func NewLogger(service, env string, opts ...Option) (*zap.Logger, error) {
	o := options{level: zapcore.InfoLevel}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(o.level)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if o.file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, o.file)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.InitialFields = map[string]any{"service": service, "env": env}
	if env == "dev" {
		cfg.Sampling = nil
	}
	return cfg.Build()
}

// WithTrace pins trace_id and span_id on l; blanks become "unknown" so the keys are always present.
func WithTrace(l *zap.Logger, traceID, spanID string) *zap.Logger {
	if l == nil {
		l = zap.L()
	}
	if traceID == "" {
		traceID = "unknown"
	}
	if spanID == "" {
		spanID = "unknown"
	}
	return l.With(zap.String("trace_id", traceID), zap.String("span_id", spanID))
}
