package logger_i

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func testLogger(buf *bytes.Buffer) *Logger {
	return &Logger{inner: slog.New(slog.NewTextHandler(buf, nil))}
}

func TestWith_ReturnsAttachedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := testLogger(&buf)

	withTrace := base.With("traceId", "trace-123")
	withTrace.Info("processing")

	if !strings.Contains(buf.String(), "traceId=trace-123") {
		t.Errorf("attached attribute missing from output: %q", buf.String())
	}
}

func TestWith_DoesNotMutateReceiver(t *testing.T) {
	var buf bytes.Buffer
	base := testLogger(&buf)

	// the returned logger carries the attrs, the receiver must not
	_ = base.With("traceId", "trace-123")
	base.Info("no trace here")

	if strings.Contains(buf.String(), "trace-123") {
		t.Errorf("With mutated the receiver: %q", buf.String())
	}
}
