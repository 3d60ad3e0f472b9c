package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger: human readable in development, JSON otherwise.
func NewLogger(s *Settings) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if s.Dev() {
		cfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
