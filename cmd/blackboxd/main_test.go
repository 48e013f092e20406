package main

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestRun_InitializesAndStopsOnSignal exercises the daemon's wiring
// path end to end against a temp-dir black box, then confirms a
// shutdown signal stops it promptly.
func TestRun_InitializesAndStopsOnSignal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SEREBO_BLACKBOX_PATH", filepath.Join(dir, "blackbox.sdb"))

	shutdown := make(chan os.Signal, 1)
	done := make(chan error, 1)

	go func() {
		done <- run(zerolog.Nop(), shutdown)
	}()

	shutdown <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() returned an error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not stop within the timeout after a shutdown signal")
	}
}
