package spinner

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinner(t *testing.T) {
	buf := new(bytes.Buffer)
	s := New(buf, "training model_0")
	s.Restart()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	if buf.Len() == 0 {
		t.Fatal("expected spinner output")
	}
	if s.sp == nil && !strings.Contains(buf.String(), "training model_0") {
		t.Fatalf("expected fallback output to contain suffix, got %q", buf.String())
	}
}
