package app

import (
	"testing"
	"time"
)

func TestEnvHelpers_Defaults(t *testing.T) {
	if got := EnvString("SOUQ_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("EnvString default = %q", got)
	}
	if got := EnvBool("SOUQ_TEST_UNSET", true); !got {
		t.Fatal("EnvBool default lost")
	}
	if got := EnvInt("SOUQ_TEST_UNSET", 42); got != 42 {
		t.Fatalf("EnvInt default = %d", got)
	}
	if got := EnvDuration("SOUQ_TEST_UNSET", 15*time.Minute); got != 15*time.Minute {
		t.Fatalf("EnvDuration default = %v", got)
	}
	if got := EnvCSV("SOUQ_TEST_UNSET"); got != nil {
		t.Fatalf("EnvCSV default = %v, want nil", got)
	}
}

func TestEnvHelpers_ParseAndReject(t *testing.T) {
	t.Setenv("SOUQ_HTTP_ADDR", "  :9090  ")
	if got := EnvString("SOUQ_HTTP_ADDR", ":8080"); got != ":9090" {
		t.Fatalf("EnvString = %q, want trimmed value", got)
	}

	t.Setenv("SOUQ_DB_MIGRATE", "false")
	if got := EnvBool("SOUQ_DB_MIGRATE", true); got {
		t.Fatal("EnvBool did not pick up explicit false")
	}

	t.Setenv("SOUQ_DB_MAX_CONNS", "25")
	if got := EnvInt32("SOUQ_DB_MAX_CONNS", 10); got != 25 {
		t.Fatalf("EnvInt32 = %d, want 25", got)
	}

	// Zero and negative values are rejected in favor of the default.
	t.Setenv("SOUQ_PUSH_SEND_QUEUE", "-5")
	if got := EnvInt("SOUQ_PUSH_SEND_QUEUE", 256); got != 256 {
		t.Fatalf("EnvInt accepted negative: %d", got)
	}
	t.Setenv("SOUQ_SWEEP_INTERVAL", "not-a-duration")
	if got := EnvDuration("SOUQ_SWEEP_INTERVAL", time.Hour); got != time.Hour {
		t.Fatalf("EnvDuration accepted garbage: %v", got)
	}
}

func TestEnvCSV_SplitsAndTrims(t *testing.T) {
	t.Setenv("SOUQ_CORS_ALLOWED_ORIGINS", " https://app.souq.example , http://localhost:* ,, ")

	got := EnvCSV("SOUQ_CORS_ALLOWED_ORIGINS")
	want := []string{"https://app.souq.example", "http://localhost:*"}
	if len(got) != len(want) {
		t.Fatalf("EnvCSV = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("EnvCSV[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
