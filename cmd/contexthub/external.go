package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/4thel00z/contexthub/internal"
)

// externalPrefix names plugin binaries: contexthub-report runs as
// "contexthub report".
const externalPrefix = "contexthub-"

type externalCommand struct {
	Name string
	Path string
}

// discoverExternals scans the directories of a PATH-style list. The first
// directory providing a name wins, as with exec.LookPath.
func discoverExternals(pathList string) []externalCommand {
	byName := make(map[string]externalCommand)
	for _, dir := range filepath.SplitList(pathList) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name, ok := pluginName(dir, entry)
			if !ok || isBuiltin(name) {
				continue
			}
			if _, seen := byName[name]; !seen {
				byName[name] = externalCommand{Name: name, Path: filepath.Join(dir, entry.Name())}
			}
		}
	}

	cmds := make([]externalCommand, 0, len(byName))
	for _, c := range byName {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

func pluginName(dir string, entry os.DirEntry) (string, bool) {
	if entry.IsDir() || !strings.HasPrefix(entry.Name(), externalPrefix) {
		return "", false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	if err != nil || info.Mode()&0111 == 0 {
		return "", false
	}
	name := strings.TrimPrefix(entry.Name(), externalPrefix)
	return name, name != ""
}

func listExternalCommands() []string {
	cmds := discoverExternals(os.Getenv("PATH"))
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return names
}

func findExternal(name string) (string, error) {
	path, err := exec.LookPath(externalPrefix + name)
	if err != nil {
		return "", fmt.Errorf("unknown command %q: %s%s not found in PATH", name, externalPrefix, name)
	}
	return path, nil
}

func executeExternal(ctx context.Context, name string, args []string, version string) error {
	path, err := findExternal(name)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = append(os.Environ(), externalEnv(version)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	return cmd.Run()
}

// externalEnv exports the workspace paths so plugins can open the ledger
// read-only. Outside a repository only the binary and version are set.
func externalEnv(version string) []string {
	var vars map[string]string
	if ws, err := internal.CurrentWorkspace(); err == nil {
		vars = ws.EnvVars(version)
	} else {
		bin, _ := os.Executable()
		vars = map[string]string{"CONTEXTHUB_VERSION": version, "CONTEXTHUB_BIN": bin}
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
