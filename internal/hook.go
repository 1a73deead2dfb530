package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

const (
	HookMarker = "# contexthub: managed post-commit hook"
	HookName   = "post-commit"
)

// HookScript returns the post-commit shim. It syncs only the new commit in a
// detached subshell, so git commit returns before the model answers.
func HookScript() string {
	return fmt.Sprintf("#!/bin/sh\n%s\n(contexthub sync --last 1 >/dev/null 2>&1 &)\n", HookMarker)
}

// IsManagedHook checks if the given script content was written by contexthub.
func IsManagedHook(content string) bool {
	return strings.Contains(content, HookMarker)
}

// hooksFS returns the hooks directory of the workspace repository.
func hooksFS(ws Workspace) (billy.Filesystem, error) {
	info, err := os.Stat(ws.GitDir())
	if err != nil || !info.IsDir() {
		return nil, ErrNotGitRepository
	}
	dot := osfs.New(ws.GitDir())
	if err := dot.MkdirAll("hooks", 0755); err != nil {
		return nil, fmt.Errorf("create hooks dir: %w", err)
	}
	return dot.Chroot("hooks")
}

type InstallHookInput struct {
	Force bool
}

type InstallHookOutput struct {
	Path     string
	BackedUp string
}

type InstallHookUseCase struct {
	ws Workspace
}

func NewInstallHookUseCase(ws Workspace) *InstallHookUseCase {
	return &InstallHookUseCase{ws: ws}
}

// Execute writes the managed hook. A foreign hook is only replaced with
// Force, and then it is kept as post-commit.bak.
func (uc *InstallHookUseCase) Execute(_ context.Context, input InstallHookInput) (*InstallHookOutput, error) {
	if err := uc.ws.RequireInitialized(); err != nil {
		return nil, err
	}
	fs, err := hooksFS(uc.ws)
	if err != nil {
		return nil, err
	}

	out := &InstallHookOutput{Path: fs.Join(uc.ws.GitDir(), "hooks", HookName)}

	existing, err := util.ReadFile(fs, HookName)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read hook: %w", err)
	case IsManagedHook(string(existing)):
	case !input.Force:
		return nil, fmt.Errorf("%s hook already exists (use --force to back it up and replace it)", HookName)
	default:
		backup := HookName + ".bak"
		if err := util.WriteFile(fs, backup, existing, 0755); err != nil {
			return nil, fmt.Errorf("back up hook: %w", err)
		}
		out.BackedUp = fs.Join(uc.ws.GitDir(), "hooks", backup)
	}

	if err := util.WriteFile(fs, HookName, []byte(HookScript()), 0755); err != nil {
		return nil, fmt.Errorf("write hook: %w", err)
	}

	if err := setHookEnabled(uc.ws, true); err != nil {
		return nil, err
	}
	return out, nil
}

type UninstallHookInput struct {
	KeepConfig bool
}

type UninstallHookOutput struct {
	Removed  bool
	Restored bool
}

type UninstallHookUseCase struct {
	ws Workspace
}

func NewUninstallHookUseCase(ws Workspace) *UninstallHookUseCase {
	return &UninstallHookUseCase{ws: ws}
}

// Execute removes the managed hook and restores a backup left by install.
// Hooks contexthub did not write are left alone.
func (uc *UninstallHookUseCase) Execute(_ context.Context, input UninstallHookInput) (*UninstallHookOutput, error) {
	fs, err := hooksFS(uc.ws)
	if err != nil {
		return nil, err
	}

	out := &UninstallHookOutput{}
	content, err := util.ReadFile(fs, HookName)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read hook: %w", err)
	case !IsManagedHook(string(content)):
		return nil, fmt.Errorf("%s hook was not installed by contexthub, leaving it in place", HookName)
	default:
		if err := fs.Remove(HookName); err != nil {
			return nil, fmt.Errorf("remove hook: %w", err)
		}
		out.Removed = true

		backup := HookName + ".bak"
		if _, err := fs.Stat(backup); err == nil {
			if err := fs.Rename(backup, HookName); err != nil {
				return nil, fmt.Errorf("restore hook backup: %w", err)
			}
			out.Restored = true
		}
	}

	if !input.KeepConfig && uc.ws.Initialized() {
		if err := setHookEnabled(uc.ws, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func setHookEnabled(ws Workspace, enabled bool) error {
	cfg, err := LoadConfig(ws)
	if err != nil {
		return err
	}
	cfg.Git.HookEnabled = enabled
	return SaveConfig(ws, cfg)
}
