package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func capture(t *testing.T, verbosity int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(zapcore.AddSync(&buf))
	SetVerbosity(verbosity)
	t.Cleanup(func() {
		SetOutput(zapcore.Lock(os.Stderr))
		SetVerbosity(int(Info))
	})
	return &buf
}

func TestVerbosityGating(t *testing.T) {
	tests := []struct {
		verbosity int
		want      []string
		hidden    []string
	}{
		{0, []string{"event=err"}, []string{"event=info", "event=debug", "event=trace"}},
		{1, []string{"event=err", "event=info"}, []string{"event=debug", "event=trace"}},
		{2, []string{"event=err", "event=info", "event=debug"}, []string{"event=trace"}},
		{3, []string{"event=err", "event=info", "event=debug", "[TRACE] event=trace"}, nil},
	}
	for _, tt := range tests {
		buf := capture(t, tt.verbosity)
		Errorf("event=err code=%d", 1)
		Infof("event=info")
		Debugf("event=debug")
		Tracef("event=trace")
		Sync()

		out := buf.String()
		for _, w := range tt.want {
			if !strings.Contains(out, w) {
				t.Errorf("verbosity %d: missing %q in\n%s", tt.verbosity, w, out)
			}
		}
		for _, h := range tt.hidden {
			if strings.Contains(out, h) {
				t.Errorf("verbosity %d: unexpected %q in\n%s", tt.verbosity, h, out)
			}
		}
	}
}

func TestLevelsAndCaller(t *testing.T) {
	buf := capture(t, int(Debug))
	Errorf("event=boom")
	Infof("event=hello")
	Debugf("event=detail")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for i, level := range []string{"ERROR", "INFO", "DEBUG"} {
		if !strings.Contains(lines[i], level) {
			t.Errorf("line %d = %q, want level %s", i, lines[i], level)
		}
		if !strings.Contains(lines[i], "logger_test.go") {
			t.Errorf("line %d = %q, want caller from the test file", i, lines[i])
		}
	}
}

func TestSetVerbosityClamps(t *testing.T) {
	capture(t, 1)
	SetVerbosity(-4)
	if Verbosity() != Error {
		t.Fatalf("Verbosity() = %v, want Error", Verbosity())
	}
	SetVerbosity(42)
	if Verbosity() != Trace {
		t.Fatalf("Verbosity() = %v, want Trace", Verbosity())
	}
}
