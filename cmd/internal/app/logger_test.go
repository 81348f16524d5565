package app

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "uppercase", in: "INFO", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning alias", in: "warning", want: slog.LevelWarn},
		{name: "padded from env", in: "  Error  ", want: slog.LevelError},
		{name: "unknown falls back to info", in: "verbose", want: slog.LevelInfo},
		{name: "empty falls back to info", in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := parseLogLevel(tc.in); got != tc.want {
				t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
			}
		})
	}
}
