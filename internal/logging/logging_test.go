package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unklstewy/ads-routes/pkg/config"
)

// TestDebugf tests that debug output is gated.
func TestDebugf(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	var buf bytes.Buffer

	Setup(false, config.LoggingConfig{Level: "info"})
	log.SetOutput(&buf)
	Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}

	Setup(true, config.LoggingConfig{Level: "info"})
	log.SetOutput(&buf)
	Debugf("shown %d", 2)
	if !strings.Contains(buf.String(), "[debug] shown 2") {
		t.Errorf("Expected debug line, got %q", buf.String())
	}
	if !Debug() {
		t.Error("Debug() should be true")
	}

	Setup(false, config.LoggingConfig{Level: "debug"})
	if !Debug() {
		t.Error("Level debug should enable debug logging")
	}
}

// TestSetupFile tests teeing into a log file.
func TestSetupFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "ads-routes.log")
	closer := Setup(false, config.LoggingConfig{Level: "info", File: path, MaxSizeMB: 1})
	log.Printf("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Log file missing message: %q", data)
	}
}
