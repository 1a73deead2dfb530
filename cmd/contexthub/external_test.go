package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeExecutable(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), mode); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverExternals(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	writeExecutable(t, filepath.Join(first, "contexthub-zeta"), 0755)
	writeExecutable(t, filepath.Join(second, "contexthub-zeta"), 0755)
	writeExecutable(t, filepath.Join(second, "contexthub-alpha"), 0755)
	writeExecutable(t, filepath.Join(second, "contexthub-notes"), 0644)
	writeExecutable(t, filepath.Join(second, "contexthub-sync"), 0755)
	writeExecutable(t, filepath.Join(second, "other-tool"), 0755)

	got := discoverExternals(first + string(os.PathListSeparator) + second)

	if len(got) != 2 {
		t.Fatalf("expected 2 commands, got %v", got)
	}
	if got[0].Name != "alpha" || got[1].Name != "zeta" {
		t.Errorf("expected [alpha zeta], got %v", got)
	}
	if got[1].Path != filepath.Join(first, "contexthub-zeta") {
		t.Errorf("earlier PATH entry should win, got %s", got[1].Path)
	}
}

func TestListExternalCommands(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, filepath.Join(dir, "contexthub-report"), 0755)
	t.Setenv("PATH", dir)

	got := listExternalCommands()
	if strings.Join(got, ",") != "report" {
		t.Errorf("expected [report], got %v", got)
	}
}

func TestFindExternalMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := findExternal("nothing")
	if err == nil {
		t.Fatal("expected error for missing external command")
	}
	if !strings.Contains(err.Error(), "contexthub-nothing") {
		t.Errorf("error should name the binary, got %v", err)
	}
}

func envValue(env []string, key string) (string, bool) {
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, key+"="); ok {
			return v, true
		}
	}
	return "", false
}

func TestExternalEnv(t *testing.T) {
	dir := setupRepo(t, "one")
	origWd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	env := externalEnv("1.2.3")

	if v, _ := envValue(env, "CONTEXTHUB_VERSION"); v != "1.2.3" {
		t.Errorf("CONTEXTHUB_VERSION = %q", v)
	}
	if v, _ := envValue(env, "CONTEXTHUB_DB"); !strings.HasSuffix(v, filepath.Join(".contexthub", "context.db")) {
		t.Errorf("CONTEXTHUB_DB = %q", v)
	}
	if _, ok := envValue(env, "CONTEXTHUB_ROOT"); !ok {
		t.Error("CONTEXTHUB_ROOT not set")
	}
	if _, ok := envValue(env, "CONTEXTHUB_BIN"); !ok {
		t.Error("CONTEXTHUB_BIN not set")
	}
}

func TestExternalEnvOutsideRepository(t *testing.T) {
	origWd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	env := externalEnv("1.2.3")

	if _, ok := envValue(env, "CONTEXTHUB_ROOT"); ok {
		t.Error("CONTEXTHUB_ROOT should not be set outside a repository")
	}
	if v, _ := envValue(env, "CONTEXTHUB_VERSION"); v != "1.2.3" {
		t.Errorf("CONTEXTHUB_VERSION = %q", v)
	}
}
