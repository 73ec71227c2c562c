package logger

import "testing"

func TestSetLevelAndGetLevel(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warning", LevelWarning},
		{"error", LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLevel(tt.level)
			if GetLevel() != tt.level {
				t.Errorf("GetLevel() = %v, want %v", GetLevel(), tt.level)
			}
		})
	}
	SetLevel(LevelWarning)
}

func TestLogLevelOrdering(t *testing.T) {
	if LevelDebug >= LevelInfo {
		t.Error("LevelDebug should be less than LevelInfo")
	}
	if LevelInfo >= LevelWarning {
		t.Error("LevelInfo should be less than LevelWarning")
	}
	if LevelWarning >= LevelError {
		t.Error("LevelWarning should be less than LevelError")
	}
}

func TestLoggingFunctionsDoNotPanic(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(LevelDebug)
	Info("backend %s connected", "filesystem")
	Success("backend %s healthy", "filesystem")
	Debug("sse event %q received", "endpoint")

	SetLevel(LevelWarning)
	Warning("health ping failed for %s: %v", "filesystem", "timeout")

	SetLevel(LevelError)
	Error("backend %s disconnected: %v", "filesystem", "EOF")
}

func TestLogLevelFiltering(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	t.Run("info suppressed at warning level", func(t *testing.T) {
		SetLevel(LevelWarning)
		Info("this should be suppressed")
	})

	t.Run("debug suppressed at info level", func(t *testing.T) {
		SetLevel(LevelInfo)
		Debug("this should be suppressed")
	})

	t.Run("warning suppressed at error level", func(t *testing.T) {
		SetLevel(LevelError)
		Warning("this should be suppressed")
	})
}

func TestColorConstants(t *testing.T) {
	colors := map[string]string{
		"ColorReset":  ColorReset,
		"ColorRed":    ColorRed,
		"ColorGreen":  ColorGreen,
		"ColorYellow": ColorYellow,
		"ColorBlue":   ColorBlue,
		"ColorCyan":   ColorCyan,
	}
	for name, color := range colors {
		if color == "" {
			t.Errorf("%s should not be empty", name)
		}
	}
}
