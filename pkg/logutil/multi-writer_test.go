package logutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestMultiWriter(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "test.log")

	lg, wr, logFile, err := NewWithStderrWriter("info", []string{fpath})
	if err != nil {
		t.Fatal(err)
	}
	defer logFile.Close()

	lg.Info("hello", zap.String("a", "b"))
	fmt.Fprintln(wr, "hello stderr")
	logFile.Sync()

	d, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(d), "hello") {
		t.Fatalf("expected log file to contain %q, got %q", "hello", string(d))
	}
}

func TestMultiWriterNoLogFile(t *testing.T) {
	if _, _, _, err := NewWithStderrWriter("info", []string{"stderr"}); err == nil {
		t.Fatal("expected error when no .log output is configured")
	}
}
