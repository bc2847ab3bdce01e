package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelWarn, zerolog.WarnLevel},
		{" WARNING ", zerolog.WarnLevel},
		{"Error", zerolog.ErrorLevel},
		{LevelDisabled, zerolog.Disabled},
		{"off", zerolog.Disabled},
		{"none", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings("debug", true)

	if cfg.Level != LevelDebug {
		t.Errorf("Level = %q, want %q", cfg.Level, LevelDebug)
	}
	if !cfg.Pretty {
		t.Error("Pretty = false, want true")
	}
	if cfg.Output == nil {
		t.Error("Output should default to stderr")
	}
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := FromSettings("warn", false)
	cfg.Output = buf
	Setup(cfg)
	defer Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}})

	logger := NewLogger("walker")
	logger.Info().Msg("page fetched")
	logger.Warn().Msg("retrying page")

	output := buf.String()
	if strings.Contains(output, "page fetched") {
		t.Error("Info message should be filtered out at Warn level")
	}
	if !strings.Contains(output, "retrying page") || !strings.Contains(output, `"component":"walker"`) {
		t.Errorf("Expected warn line with component, got %q", output)
	}
}

func TestWithRun(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := WithRun(NewLogger("pipeline"), "run-123")
	logger.Info().Msg("run started")

	output := buf.String()
	if !strings.Contains(output, `"run_id":"run-123"`) {
		t.Errorf("Expected output to contain run_id, got %q", output)
	}
	if !strings.Contains(output, `"component":"pipeline"`) {
		t.Errorf("Expected output to contain component, got %q", output)
	}
}

func TestSetup_Disabled(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelDisabled, Output: buf})
	defer Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}})

	logger.Error().Msg("should not appear")

	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}
