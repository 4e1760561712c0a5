package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	t.Setenv(LevelEnv, "")

	logger, err := New("release", "warn")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled at warn level")
	}

	if _, err := New("debug", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLevelEnvOverrides(t *testing.T) {
	t.Setenv(LevelEnv, "debug")

	logger, err := New("release", "error")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("environment level should enable debug")
	}
}
