package log

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"factor-backtest/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Encoding: "json"})
	if err != nil {
		t.Fatalf("NewLogger returned error: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Errorf("expected debug level enabled")
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, err := NewLogger(config.LoggingConfig{Level: "verbose"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
