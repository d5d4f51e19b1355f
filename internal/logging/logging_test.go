package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/hairlessvillager/region-diff/internal/config"
)

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	lg := New(config.LogDebug, &buf)

	lg.Verbosef("a %d", 1)
	lg.Debugf("b %d", 2)
	lg.Tracef("c %d", 3)

	out := buf.String()
	if !strings.Contains(out, "a 1") {
		t.Fatalf("expected Verbosef output at LogDebug level, got %q", out)
	}
	if !strings.Contains(out, "b 2") {
		t.Fatalf("expected Debugf output at LogDebug level, got %q", out)
	}
	if strings.Contains(out, "c 3") {
		t.Fatalf("Tracef should be suppressed below LogTrace, got %q", out)
	}
}

func TestLogNoneSuppressesEverything(t *testing.T) {
	var buf bytes.Buffer
	lg := New(config.LogNone, &buf)
	lg.Verbosef("should not appear")
	lg.Debugf("should not appear")
	lg.Tracef("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output at LogNone, got %q", buf.String())
	}
}

func TestNilLoggerIsANoop(t *testing.T) {
	var lg *Logger
	lg.Verbosef("%d", 1)
	lg.Debugf("%d", 1)
	lg.Tracef("%d", 1)
}

func TestDefaultWriterIsStderr(t *testing.T) {
	lg := New(config.LogNone, nil)
	if lg.l == nil {
		t.Fatal("expected a non-nil underlying log.Logger")
	}
	if lg.l.Writer() != os.Stderr {
		t.Fatalf("default writer = %v, want os.Stderr", lg.l.Writer())
	}
}
