package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinytelemetry/logwatch/internal/loggen"
)

func TestRunScenarioToDirectory(t *testing.T) {
	dir := t.TempDir()
	err := run(context.Background(), options{scenario: "brute_force", dir: dir, seed: 1, speed: 0})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, loggen.AuthLog))
	if err != nil {
		t.Fatalf("read auth.log: %v", err)
	}
	if got := strings.Count(string(data), "Failed password"); got < 6 {
		t.Fatalf("auth.log has %d failed logins, want at least 6", got)
	}
}

func TestRunOnceWritesAllFiles(t *testing.T) {
	dir := t.TempDir()
	if err := run(context.Background(), options{mode: loggen.ModeOnce, dir: dir, seed: 2, speed: 0, reset: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, name := range []string{loggen.AuthLog, loggen.ApacheLog, loggen.WindowsLog} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", name)
		}
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	if err := run(context.Background(), options{mode: loggen.ModeOnce, dir: t.TempDir(), speed: -1}); err == nil {
		t.Fatal("expected error for negative speed")
	}
	if err := run(context.Background(), options{scenario: "unknown", dir: t.TempDir()}); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
	if err := run(context.Background(), options{mode: "chaos", dir: t.TempDir()}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
