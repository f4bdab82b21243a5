package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want LogLevel
	}{
		{"silent", LogLevelSilent},
		{"error", LogLevelError},
		{"info", LogLevelInfo},
		{"verbose", LogLevelVerbose},
		{"debug", LogLevelDebug},
		{"", LogLevelInfo},
		{"bogus", LogLevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q): got %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFileLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cipmaster.log")
	logger, err := NewLogger(LogLevelDebug, path)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("session registered: 0x%08X", uint32(0x12345678))
	logger.Debug("low level detail")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "INFO: session registered: 0x12345678") {
		t.Errorf("info line missing from log file: %q", content)
	}
	if !strings.Contains(content, "DEBUG: low level detail") {
		t.Errorf("debug line missing from log file: %q", content)
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cipmaster.log")
	logger, err := NewLogger(LogLevelError, path)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("should be filtered")
	logger.Error("should be kept")
	logger.Close()

	data, _ := os.ReadFile(path)
	content := string(data)
	if strings.Contains(content, "should be filtered") {
		t.Errorf("info line leaked past error level: %q", content)
	}
	if !strings.Contains(content, "ERROR: should be kept") {
		t.Errorf("error line missing: %q", content)
	}
}

func TestSetLevel(t *testing.T) {
	logger, err := NewLogger(LogLevelInfo, "")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.SetLevel(LogLevelDebug)
	if logger.GetLevel() != LogLevelDebug {
		t.Errorf("level: got %d, want debug", logger.GetLevel())
	}
}
