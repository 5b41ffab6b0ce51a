package logx

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureSink) SendLog(_ context.Context, level, text string) error {
	c.mu.Lock()
	c.lines = append(c.lines, level+": "+text)
	c.mu.Unlock()
	return nil
}

func (c *captureSink) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("dropped", String("k", "v"))
	l.With(Int("n", 1)).Error("dropped too")
}

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "DEBUG").With(String("comp", "test"))
	l.Info("hello", Int("n", 3), Err(nil))

	out := buf.String()
	for _, want := range []string{`"comp":"test"`, `"n":3`, `"message":"hello"`, `"caller":"logging_test.go:`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %s", out, want)
		}
	}
	if strings.Contains(out, `"err"`) {
		t.Fatalf("nil error must not be written: %s", out)
	}
}

func TestNotifySinkHonorsMinLevel(t *testing.T) {
	sink := &captureSink{}
	svc, log := New(Config{Level: "DEBUG", Notify: NotifyConfig{Enabled: true, MinLevel: "WARN", RatePerSec: 100}}, sink)
	defer svc.Close()

	log.Info("quiet")
	log.Warn("loud", String("applet", "tray"))

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("sink lines = %v, want exactly the warn line", got)
	}
	if !strings.HasPrefix(got[0], "warn: loud") || !strings.Contains(got[0], "applet=tray") {
		t.Fatalf("unexpected sink line %q", got[0])
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	if parseLevel("warning", LevelInfo) != LevelWarn {
		t.Fatal("warning should map to warn")
	}
	if parseLevel("bogus", LevelError) != LevelError {
		t.Fatal("unknown level should use default")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate(strings.Repeat("x", 50), 20); len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q", got)
	}
	if truncate("short", 20) != "short" {
		t.Fatal("short strings stay unchanged")
	}
}
