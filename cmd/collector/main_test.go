package main

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/onchainbill/collector/internal/config"
)

func TestInitLoggerHonorsConfiguredLevel(t *testing.T) {
	logger := initLogger(config.LoggerConfig{Level: "warn"})
	defer logger.Sync()

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled with LOG_LEVEL=warn")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn disabled with LOG_LEVEL=warn")
	}
}

func TestInitLoggerFallsBackToInfo(t *testing.T) {
	logger := initLogger(config.LoggerConfig{Level: "nonsense"})
	defer logger.Sync()

	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info disabled under fallback level")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug enabled under fallback level")
	}
}
