package instance

import "testing"

func TestIDPrefersWorkerID(t *testing.T) {
	t.Setenv("WORKER_ID", "worker-7")
	if got := ID("worker"); got != "worker-7" {
		t.Fatalf("expected worker-7, got %q", got)
	}
}

func TestIDFallsBack(t *testing.T) {
	t.Setenv("WORKER_ID", "")
	if got := ID("cron-worker"); got == "" {
		t.Fatal("expected a non-empty id")
	}
}
