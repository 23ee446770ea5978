package util

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
)

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Printf(format string, v ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func TestRequestLoggerFormatsPrefix(t *testing.T) {
	cl := &captureLogger{}
	req := httptest.NewRequest("POST", "/recipes/carbonara/media", nil)

	rl := WithRequest(cl, req, "alice")
	rl.Infof("attached %d files", 2)

	if len(cl.lines) != 1 {
		t.Fatalf("expected one log line, got %d", len(cl.lines))
	}
	line := cl.lines[0]
	if !strings.Contains(line, "INFO") || !strings.Contains(line, "POST /recipes/carbonara/media") {
		t.Fatalf("missing request context in %q", line)
	}
	if !strings.Contains(line, "(alice)") {
		t.Fatalf("missing user in %q", line)
	}
	if !strings.Contains(line, "attached 2 files") {
		t.Fatalf("missing message in %q", line)
	}
}

func TestRequestLoggerOmitsEmptyUser(t *testing.T) {
	cl := &captureLogger{}
	req := httptest.NewRequest("GET", "/recipes/stew", nil)

	WithRequest(cl, req, "").Errorf("boom")

	if len(cl.lines) != 1 || strings.Contains(cl.lines[0], "()") {
		t.Fatalf("unexpected log output %v", cl.lines)
	}
}

func TestLoggerContextRoundTrip(t *testing.T) {
	cl := &captureLogger{}
	req := httptest.NewRequest("GET", "/", nil)
	rl := WithRequest(cl, req, "bob")

	ctx := ContextWithLogger(context.Background(), rl)
	if got := FromContext(ctx); got != rl {
		t.Fatalf("expected the stored logger back, got %v", got)
	}

	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil for a bare context, got %v", got)
	}
}
