package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCmd(t *testing.T) {
	tmpDir := t.TempDir()
	origWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(origWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cmd := NewInitCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	hubPath := filepath.Join(tmpDir, ".contexthub")
	if _, err := os.Stat(hubPath); os.IsNotExist(err) {
		t.Error(".contexthub directory not created")
	}

	for _, name := range []string{"config.yaml", "context.db", "logs"} {
		if _, err := os.Stat(filepath.Join(hubPath, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}

	gitignore, err := os.ReadFile(filepath.Join(tmpDir, ".gitignore"))
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	if !strings.Contains(string(gitignore), ".contexthub/") {
		t.Errorf(".gitignore missing .contexthub/, got %q", gitignore)
	}

	if !strings.Contains(out.String(), "Initialized contexthub") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestInitCmdAlreadyInitialized(t *testing.T) {
	tmpDir := t.TempDir()
	origWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(origWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	for _, dir := range []string{".git", ".contexthub"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	cmd := NewInitCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Error("expected error for already initialized workspace")
	}
}

func TestInitCmdOutsideRepository(t *testing.T) {
	dir := t.TempDir()

	_, err := runCmd(t, "init", "--dir", dir)
	if err == nil {
		t.Fatal("expected error outside a git repository")
	}
	if _, statErr := os.Stat(filepath.Join(dir, ".contexthub")); !os.IsNotExist(statErr) {
		t.Error(".contexthub should not be created outside a repository")
	}
}

func TestInitCmdWithFlags(t *testing.T) {
	dir := setupRepo(t, "one")

	out, err := runCmd(t, "init", "--dir", dir, "--model", "mistral", "--endpoint", "http://gpu-box:11434")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Model:    mistral") {
		t.Errorf("expected model in output, got %s", out)
	}
	if !strings.Contains(out, "Endpoint: http://gpu-box:11434") {
		t.Errorf("expected endpoint in output, got %s", out)
	}
}
