package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(true) returned nil logger")
		}
		_ = logger.Sync()
	})

	t.Run("production mode returns production logger", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(false) returned nil logger")
		}
		_ = logger.Sync()
	})
}

func TestNewFileLogger_writesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "loomi.log")
	logger, err := NewFileLogger(false, FileLogOptions{Path: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	logger.Info("hello file")
	_ = logger.Sync()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log output in file")
	}
}

func TestNewFileLogger_noPath(t *testing.T) {
	logger, err := NewFileLogger(true, FileLogOptions{})
	if err != nil || logger == nil {
		t.Fatalf("NewFileLogger without path: %v", err)
	}
}
