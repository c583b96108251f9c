package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_WritesToLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "fbshell.log")

	cfg := &Config{
		Level:       "info",
		Format:      "json",
		LogFile:     logPath,
		StderrMode:  "off",
		SessionID:   "session-test",
		CommandPath: "fbshell run",
		Version:     "test",
		Commit:      "abc123",
	}

	logger, cleanup, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("hello from test")

	if cleanup != nil {
		if closeErr := cleanup(); closeErr != nil {
			t.Fatalf("cleanup() error = %v", closeErr)
		}
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile(%q) error = %v", logPath, err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("log record is not JSON: %v", err)
	}

	if record["session.id"] != "session-test" {
		t.Errorf("session.id = %v, want session-test", record["session.id"])
	}
	if record["command.path"] != "fbshell run" {
		t.Errorf("command.path = %v, want fbshell run", record["command.path"])
	}
}

func TestNewLogger_NoSinksConfigured(t *testing.T) {
	cfg := &Config{
		Level:          "info",
		Format:         "json",
		StderrMode:     "auto",
		InteractiveTTY: true, // auto disables stderr on a terminal
	}

	if _, _, err := NewLogger(cfg); err == nil {
		t.Fatal("NewLogger() should fail with no sinks configured")
	}
}

func TestNewLogger_InvalidInputs(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"bad level", &Config{Level: "loud", StderrMode: "on"}},
		{"bad format", &Config{Format: "xml", StderrMode: "on"}},
		{"bad stderr mode", &Config{StderrMode: "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := NewLogger(tt.cfg); err == nil {
				t.Fatalf("NewLogger(%+v) should fail", tt.cfg)
			}
		})
	}
}

func TestShouldEnableStderr(t *testing.T) {
	tests := []struct {
		mode        string
		interactive bool
		want        bool
	}{
		{"auto", true, false},
		{"auto", false, true},
		{"", false, true},
		{"on", true, true},
		{"off", false, false},
		{"  ON  ", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode+"/"+map[bool]string{true: "tty", false: "notty"}[tt.interactive], func(t *testing.T) {
			got, err := shouldEnableStderr(tt.mode, tt.interactive)
			if err != nil {
				t.Fatalf("shouldEnableStderr(%q) error = %v", tt.mode, err)
			}
			if got != tt.want {
				t.Errorf("shouldEnableStderr(%q, %v) = %v, want %v", tt.mode, tt.interactive, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, level := range []string{"", "info", "debug", "warn", "warning", "error", "  ERROR "} {
		if _, err := parseLevel(level); err != nil {
			t.Errorf("parseLevel(%q) error = %v", level, err)
		}
	}

	if _, err := parseLevel("verbose"); err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("parseLevel(verbose) error = %v, want invalid log level", err)
	}
}
