package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupUseCaseTest returns a workspace rooted at a temp dir that looks like
// a git checkout but has not been initialized.
func setupUseCaseTest(t *testing.T) Workspace {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	return NewWorkspace(dir)
}

func initWorkspace(t *testing.T) Workspace {
	t.Helper()
	ws := setupUseCaseTest(t)
	if _, err := NewInitUseCase(ws).Execute(context.Background(), InitInput{}); err != nil {
		t.Fatalf("init: %v", err)
	}
	return ws
}

func TestInitUseCase(t *testing.T) {
	ws := setupUseCaseTest(t)

	out, err := NewInitUseCase(ws).Execute(context.Background(), InitInput{Model: "qwen2.5-coder"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !out.GitignoreUpdated {
		t.Error("expected .gitignore to be updated")
	}

	for _, p := range []string{ws.LogDir(), ws.DBPath(), ws.ConfigPath()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not created: %v", p, err)
		}
	}

	cfg, err := LoadConfig(ws)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Model.Model != "qwen2.5-coder" {
		t.Errorf("model = %q, want qwen2.5-coder", cfg.Model.Model)
	}

	data, err := os.ReadFile(filepath.Join(ws.Root, ".gitignore"))
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	if !strings.Contains(string(data), ".contexthub/\n") {
		t.Errorf(".gitignore = %q", data)
	}
}

func TestInitUseCaseAlreadyInitialized(t *testing.T) {
	ws := initWorkspace(t)

	_, err := NewInitUseCase(ws).Execute(context.Background(), InitInput{})
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("err = %v, want ErrAlreadyInitialized", err)
	}
}

func TestInitUseCaseRequiresGit(t *testing.T) {
	ws := NewWorkspace(t.TempDir())

	_, err := NewInitUseCase(ws).Execute(context.Background(), InitInput{})
	if !errors.Is(err, ErrNotGitRepository) {
		t.Errorf("err = %v, want ErrNotGitRepository", err)
	}
	if ws.Initialized() {
		t.Error("workspace must not be created outside a repository")
	}
}

func TestInitUseCaseInvalidEndpointLeavesNothing(t *testing.T) {
	ws := setupUseCaseTest(t)

	_, err := NewInitUseCase(ws).Execute(context.Background(), InitInput{Endpoint: "not a url"})
	if err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
	if ws.Initialized() {
		t.Error("failed init must not leave .contexthub behind")
	}
}

func TestEnsureGitignored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("node_modules/"), 0644))

	updated, err := ensureGitignored(dir, ".contexthub/")
	require.NoError(t, err)
	assert.True(t, updated)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "node_modules/\n\n# contexthub local data\n.contexthub/\n", string(data))

	updated, err = ensureGitignored(dir, ".contexthub/")
	require.NoError(t, err)
	assert.False(t, updated, "entry already present")
}

func seedLedger(t *testing.T, l *Ledger, base time.Time, hashes ...string) {
	t.Helper()
	for i, h := range hashes {
		require.NoError(t, l.Store(context.Background(), testEntry(h, "summary "+h, base.Add(time.Duration(i)*time.Hour))))
	}
}

func TestStatusUseCase(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	repo.commit("one", map[string]string{"a.go": "a"})
	repo.commit("two", map[string]string{"b.go": "b"})
	repo.commit("three", map[string]string{"c.go": "c"})

	l := openTestLedger(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedLedger(t, l, base, "aaa", "bbb")
	require.NoError(t, l.StoreTTL(ctx, "bbb", "live", time.Now().Add(time.Hour)))
	require.NoError(t, l.StoreTTL(ctx, "aaa", "dead", time.Now().Add(-time.Hour)))

	gw := &scriptedGateway{}
	out, err := NewStatusUseCase(repo.history(), l, gw).Execute(ctx, StatusInput{})
	require.NoError(t, err)

	assert.Equal(t, 3, out.TotalCommits)
	assert.EqualValues(t, 2, out.Stored)
	require.NotNil(t, out.LastProcessed)
	assert.Equal(t, "bbb", out.LastProcessed.CommitHash)
	assert.Equal(t, 1, out.TTLAlive)
	assert.True(t, out.Probed)
	assert.True(t, out.ModelAvailable)
	assert.Equal(t, "fake://model", out.Endpoint)
}

func TestStatusUseCaseSkipProbe(t *testing.T) {
	repo := newTestRepo(t)
	gw := &scriptedGateway{}

	out, err := NewStatusUseCase(repo.history(), openTestLedger(t), gw).Execute(context.Background(), StatusInput{SkipProbe: true})
	require.NoError(t, err)
	assert.Equal(t, 0, out.TotalCommits)
	assert.Nil(t, out.LastProcessed)
	assert.False(t, out.Probed)
	assert.Zero(t, gw.probes)
}

func TestListContextUseCase(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedLedger(t, l, base, "aaa", "bbb", "ccc", "ddd")

	uc := NewListContextUseCase(l)

	out, err := uc.Execute(ctx, ListContextInput{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, out.Total)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "ddd", out.Entries[0].CommitHash)
	assert.Equal(t, "ccc", out.Entries[1].CommitHash)

	out, err = uc.Execute(ctx, ListContextInput{Since: "bbb"})
	require.NoError(t, err)
	var hashes []string
	for _, e := range out.Entries {
		hashes = append(hashes, e.CommitHash)
	}
	assert.Equal(t, []string{"ddd", "ccc", "bbb"}, hashes)

	out, err = uc.Execute(ctx, ListContextInput{Since: "bbb", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out.Entries, 1)
}

func TestTTLUseCases(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	seedLedger(t, l, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "aaa")
	require.NoError(t, l.StoreTTL(ctx, "aaa", "live", time.Now().Add(time.Hour)))
	require.NoError(t, l.StoreTTL(ctx, "aaa", "expired", time.Now().Add(-time.Minute)))

	list, err := NewListTTLUseCase(l).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "live", list.Entries[0].Content)

	cleared, err := NewClearTTLUseCase(l).Execute(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cleared.Removed)

	list, err = NewListTTLUseCase(l).Execute(ctx)
	require.NoError(t, err)
	assert.Empty(t, list.Entries)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "clearing ttl memory keeps global context")
}

func TestSetTTLUseCase(t *testing.T) {
	ws := initWorkspace(t)
	uc := NewSetTTLUseCase(ws)

	cfg, err := uc.Execute(context.Background(), SetTTLInput{Days: 14})
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Context.TTLDays)

	loaded, err := LoadConfig(ws)
	require.NoError(t, err)
	assert.Equal(t, 14, loaded.Context.TTLDays)

	_, err = uc.Execute(context.Background(), SetTTLInput{Days: 0})
	assert.Error(t, err)
}

func TestUpdateConfigUseCase(t *testing.T) {
	ws := initWorkspace(t)
	uc := NewUpdateConfigUseCase(ws)

	cfg, err := uc.Execute(context.Background(), UpdateConfigInput{Model: "mistral", Endpoint: "http://gpu-box:11434/"})
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.Model.Model)
	assert.Equal(t, "http://gpu-box:11434", cfg.Model.Endpoint)

	_, err = uc.Execute(context.Background(), UpdateConfigInput{Endpoint: "gpu-box"})
	require.Error(t, err)

	loaded, err := LoadConfig(ws)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", loaded.Model.Endpoint, "invalid update must not be saved")
}

func TestUpdateConfigUseCaseNotInitialized(t *testing.T) {
	ws := setupUseCaseTest(t)
	_, err := NewUpdateConfigUseCase(ws).Execute(context.Background(), UpdateConfigInput{Model: "x"})
	assert.ErrorIs(t, err, ErrNotInitialized)
}
