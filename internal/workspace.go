package internal

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	WorkspaceDir   = ".contexthub"
	IgnoreFilename = ".contexthubignore"
)

// Workspace locates the repository root and its .contexthub directory.
type Workspace struct {
	Root string // repository working tree root
	Dir  string // .contexthub directory path
}

func NewWorkspace(root string) Workspace {
	return Workspace{Root: root, Dir: filepath.Join(root, WorkspaceDir)}
}

func (w Workspace) DBPath() string {
	return filepath.Join(w.Dir, "context.db")
}

func (w Workspace) ConfigPath() string {
	return filepath.Join(w.Dir, "config.yaml")
}

func (w Workspace) LogDir() string {
	return filepath.Join(w.Dir, "logs")
}

func (w Workspace) LogPath() string {
	return filepath.Join(w.LogDir(), "contexthub.log")
}

func (w Workspace) IgnorePath() string {
	return filepath.Join(w.Root, IgnoreFilename)
}

func (w Workspace) GitDir() string {
	return filepath.Join(w.Root, ".git")
}

// Initialized reports whether the .contexthub directory exists.
func (w Workspace) Initialized() bool {
	info, err := os.Stat(w.Dir)
	return err == nil && info.IsDir()
}

// RequireInitialized returns ErrNotInitialized unless init has run.
func (w Workspace) RequireInitialized() error {
	if !w.Initialized() {
		return ErrNotInitialized
	}
	return nil
}

// FindWorkspace walks up from dir to the nearest git working tree root.
func FindWorkspace(dir string) (Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Workspace{}, err
	}
	for {
		if _, err := os.Stat(filepath.Join(abs, ".git")); err == nil {
			return NewWorkspace(abs), nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return Workspace{}, err
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return Workspace{}, ErrNotGitRepository
		}
		abs = parent
	}
}

// CurrentWorkspace resolves the workspace for the process working directory.
func CurrentWorkspace() (Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Workspace{}, err
	}
	return FindWorkspace(cwd)
}

// EnvVars is the environment handed to external contexthub-* commands.
func (w Workspace) EnvVars(version string) map[string]string {
	bin, _ := os.Executable()
	return map[string]string{
		"CONTEXTHUB_ROOT":    w.Root,
		"CONTEXTHUB_DIR":     w.Dir,
		"CONTEXTHUB_DB":      w.DBPath(),
		"CONTEXTHUB_CONFIG":  w.ConfigPath(),
		"CONTEXTHUB_VERSION": version,
		"CONTEXTHUB_BIN":     bin,
	}
}
