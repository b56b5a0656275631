// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// ServiceName is attached to every entry.
const ServiceName = "govscout-crawler"

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	// Lambda and container log collectors both read stdout.
	cfg.OutputPaths = []string{"stdout"}
	cfg.InitialFields = map[string]any{"service": ServiceName}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// ForInvocation tags logger with the invocation's request id and, when
// present, its trace header.
func ForInvocation(logger *zap.Logger, inv crawler.Invocation) *zap.Logger {
	fields := []zap.Field{zap.String("request_id", inv.RequestID)}
	if inv.TraceID != "" {
		fields = append(fields, zap.String("trace_id", inv.TraceID))
	}
	return logger.With(fields...)
}
