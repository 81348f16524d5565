package app

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandler_RendersKeyValueLine(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	log := slog.New(h)

	log.Info("http.request", "method", "GET", "path", "/healthz", "status", 200)

	line := buf.String()
	for _, want := range []string{"msg=http.request", "[INFO]", "method=GET", "path=/healthz", "status=200"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("color disabled but line has ANSI codes: %q", line)
	}
}

func TestPrettyHandler_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestPrettyHandler_GroupsFlattenIntoDottedKeys(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	log := slog.New(newPrettyHandler(&buf, nil, false))

	log.WithGroup("db").Info("query", "table", "messages")

	if !strings.Contains(buf.String(), "db.table=messages") {
		t.Fatalf("line %q missing dotted group key", buf.String())
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "", want: `""`},
		{in: "two words", want: `"two words"`},
		{in: `k=v`, want: `"k=v"`},
	}
	for _, tc := range cases {
		if got := quoteIfNeeded(tc.in); got != tc.want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestLevelTag_NoColor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "[DEBUG]"},
		{slog.LevelInfo, "[INFO]"},
		{slog.LevelWarn, "[WARN]"},
		{slog.LevelError, "[ERROR]"},
	}
	for _, tc := range cases {
		if got := levelTag(tc.level, false); got != tc.want {
			t.Fatalf("levelTag(%v)=%q want=%q", tc.level, got, tc.want)
		}
	}
}

func TestValueToString_CoversKinds(t *testing.T) {
	t.Parallel()

	if got := valueToString(slog.Int64Value(42)); got != "42" {
		t.Fatalf("int64: %q", got)
	}
	if got := valueToString(slog.BoolValue(true)); got != "true" {
		t.Fatalf("bool: %q", got)
	}
	if got := valueToString(slog.DurationValue(1500 * time.Millisecond)); got != "1.5s" {
		t.Fatalf("duration: %q", got)
	}
}
