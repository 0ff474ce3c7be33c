package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// setupTestDir points the package at a temporary log directory and resets the
// process-scoped global state, restoring it on cleanup.
func setupTestDir(t *testing.T) (cleanup func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "wxcrawl-logging-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	// Save original state
	origLogDir := logDir
	origInitErr := initErr
	origProcessID := processID

	// Point at the temp directory and mark initialization as already done so
	// initLogDirectory does not override it.
	logDir = tempDir
	initErr = nil
	initOnce = sync.Once{}
	initOnce.Do(func() {})
	processID = ""
	processIDOnce = sync.Once{}

	return func() {
		logDir = origLogDir
		initErr = origInitErr
		initOnce = sync.Once{}
		initOnce.Do(func() {})
		processID = origProcessID
		processIDOnce = sync.Once{}
		processIDOnce.Do(func() {})

		os.RemoveAll(tempDir)
	}
}

func TestNewLogger(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("test-component")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.component != "test-component" {
		t.Errorf("Expected component 'test-component', got %q", logger.component)
	}
	if logger.processID == "" {
		t.Error("Expected non-empty process ID")
	}
	if logger.logPath == "" {
		t.Error("Expected non-empty log path")
	}
	if _, err := os.Stat(logger.logPath); os.IsNotExist(err) {
		t.Errorf("Log file does not exist at %s", logger.logPath)
	}
}

func TestLoggerFormatting(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("formatter")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Debugf("debug %d", 1)
	logger.Infof("info %s", "msg")
	logger.Warnf("warn")
	logger.Errorf("error")

	data, err := os.ReadFile(logger.logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"[formatter] [DEBUG] debug 1",
		"[formatter] [INFO] info msg",
		"[formatter] [WARN] warn",
		"[formatter] [ERROR] error",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Log missing %q:\n%s", want, content)
		}
	}
}

func TestComponentsShareLogFile(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	a, err := NewLogger("component-a")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer a.Close()

	b, err := NewLogger("component-b")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer b.Close()

	if a.logPath != b.logPath {
		t.Errorf("Components should share one file per process: %q vs %q", a.logPath, b.logPath)
	}

	a.Infof("from a")
	b.Infof("from b")

	data, err := os.ReadFile(a.logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "from a") || !strings.Contains(string(data), "from b") {
		t.Errorf("Shared log file missing entries:\n%s", data)
	}
}

func TestLogFileName(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("naming")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	base := filepath.Base(logger.logPath)
	if !strings.HasSuffix(base, "-wxcrawl.log") {
		t.Errorf("Unexpected log file name %q", base)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	logger, err := NewLogger("closer")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestGetLogDirectory(t *testing.T) {
	cleanup := setupTestDir(t)
	defer cleanup()

	dir, err := GetLogDirectory()
	if err != nil {
		t.Fatalf("GetLogDirectory() error: %v", err)
	}
	if dir != logDir {
		t.Errorf("GetLogDirectory() = %q, want %q", dir, logDir)
	}
}
