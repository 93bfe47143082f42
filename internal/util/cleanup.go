package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// SetupInterruptHandler cancels the run on SIGINT or SIGTERM and removes
// partially written output from outputDir. The returned func stops listening.
func SetupInterruptHandler(cancel context.CancelFunc, outputDir string) (stop func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sig:
			fmt.Fprintln(os.Stderr, "\nInterrupt received. Cleaning up...")
			cancel()
			if outputDir != "" {
				CleanupTempFiles(outputDir)
			}
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sig)
		close(done)
	}
}

// CleanupTempFiles removes leftovers of interrupted atomic writes.
func CleanupTempFiles(outputDir string) []string {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil
	}

	var removed []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), TempSuffix) {
			continue
		}

		full := filepath.Join(outputDir, e.Name())
		if err := os.Remove(full); err != nil {
			fmt.Fprintf(os.Stderr, "Error cleaning up %s: %v\n", full, err)
			continue
		}
		removed = append(removed, full)
	}

	return removed
}

// RemoveIfEmpty deletes dir when nothing was written into it.
func RemoveIfEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return false
	}

	return os.Remove(dir) == nil
}
