package main

import (
	"strings"
	"testing"

	"github.com/4thel00z/contexthub/internal"
)

func TestMemoryTTLCmd(t *testing.T) {
	dir := syncedWorkspace(t, "feat: one", "feat: two")

	out, err := runCmd(t, "memory", "ttl", "--dir", dir)
	if err != nil {
		t.Fatalf("memory ttl: %v", err)
	}
	if !strings.Contains(out, "TTL memory (2 entries)") || !strings.Contains(out, "Adds a file.") {
		t.Errorf("unexpected listing:\n%s", out)
	}

	out, err = runCmd(t, "memory", "ttl", "--dir", dir, "--clear")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !strings.Contains(out, "TTL memory cleared (2 entries)") {
		t.Errorf("unexpected clear output:\n%s", out)
	}

	out, err = runCmd(t, "memory", "ttl", "--dir", dir)
	if err != nil {
		t.Fatalf("memory ttl: %v", err)
	}
	if !strings.Contains(out, "No TTL memory stored.") {
		t.Errorf("expected empty listing:\n%s", out)
	}

	out, err = runCmd(t, "context", "--dir", dir)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !strings.Contains(out, "2 of 2 entries") {
		t.Errorf("clearing ttl memory must keep global context:\n%s", out)
	}
}

func TestMemoryTTLCmdSetTTL(t *testing.T) {
	dir := setupWorkspace(t, "", "feat: one")

	out, err := runCmd(t, "memory", "ttl", "--dir", dir, "--set-ttl", "3")
	if err != nil {
		t.Fatalf("set-ttl: %v", err)
	}
	if !strings.Contains(out, "TTL set to 3 days") {
		t.Errorf("unexpected output: %s", out)
	}

	cfg, err := internal.LoadConfig(internal.NewWorkspace(dir))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Context.TTLDays != 3 {
		t.Errorf("expected ttl_days 3, got %d", cfg.Context.TTLDays)
	}

	if _, err := runCmd(t, "memory", "ttl", "--dir", dir, "--set-ttl", "0"); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestMemoryTTLCmdConflictingFlags(t *testing.T) {
	dir := setupWorkspace(t, "", "feat: one")

	if _, err := runCmd(t, "memory", "ttl", "--dir", dir, "--clear", "--set-ttl", "3"); err == nil {
		t.Error("expected error for --clear with --set-ttl")
	}
}
