package worker_test

import (
	"strings"
	"testing"

	"limpet/internal/worker"
)

func TestRunCountsPrimesAndEmitsProgress(t *testing.T) {
	var buf strings.Builder
	err := worker.Run(&buf, worker.Options{PrimeLimit: 100, ProgressEvery: 25})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	// 25 primes below 100.
	if !strings.HasPrefix(last, "done primes=25 limit=100") {
		t.Fatalf("unexpected summary line: %q", last)
	}

	progress := 0
	for _, line := range lines[:len(lines)-1] {
		if !strings.HasPrefix(line, "progress checked=") {
			t.Fatalf("unexpected progress line: %q", line)
		}
		progress++
	}
	if progress != 3 {
		t.Fatalf("progress lines = %d, want 3", progress)
	}
}

func TestRunRejectsDegenerateOptions(t *testing.T) {
	var buf strings.Builder
	if err := worker.Run(&buf, worker.Options{PrimeLimit: 1, ProgressEvery: 10}); err == nil {
		t.Fatal("expected error for tiny prime limit")
	}
	if err := worker.Run(&buf, worker.Options{PrimeLimit: 10, ProgressEvery: 0}); err == nil {
		t.Fatal("expected error for zero progress interval")
	}
}
