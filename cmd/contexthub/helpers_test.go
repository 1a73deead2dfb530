package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/4thel00z/contexthub/internal"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const modelAnswer = `{"summary":"Adds a file.","files_changed":["file.txt"],"key_details":["new file"],"technologies":["Go"],"impact":"low"}`

// setupRepo creates an on-disk repository with one commit per message.
func setupRepo(t *testing.T, messages ...string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}

	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, msg := range messages {
		name := "file" + string(rune('a'+i)) + ".txt"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(msg+"\n"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("add: %v", err)
		}
		when = when.Add(time.Minute)
		sig := &object.Signature{Name: "dev", Email: "dev@example.com", When: when}
		if _, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	return dir
}

// addCommit commits a new file to the repository at dir and returns the
// commit hash.
func addCommit(t *testing.T, dir, msg string) string {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	name := "later-" + strings.ReplaceAll(msg, " ", "-") + ".txt"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(msg+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add: %v", err)
	}
	sig := &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

func headHash(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	ref, err := repo.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	return ref.Hash().String()
}

// setupWorkspace creates a repository, initializes contexthub in it and
// points the model endpoint at endpoint when given.
func setupWorkspace(t *testing.T, endpoint string, messages ...string) string {
	t.Helper()
	dir := setupRepo(t, messages...)
	ws := internal.NewWorkspace(dir)
	if _, err := internal.NewInitUseCase(ws).Execute(context.Background(), internal.InitInput{Endpoint: endpoint}); err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	return dir
}

type fakeModel struct {
	generated atomic.Int32
	garbage   atomic.Bool // answer with prose instead of JSON
}

// newFakeModel serves the two Ollama endpoints the gateway uses.
func newFakeModel(t *testing.T) (*httptest.Server, *fakeModel) {
	t.Helper()
	fm := &fakeModel{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fm.generated.Add(1)
		answer := modelAnswer
		if fm.garbage.Load() {
			answer = "I could not summarize this commit."
		}
		out, _ := json.Marshal(map[string]any{"model": body["model"], "response": answer, "done": true})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(append(out, '\n'))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, fm
}

// deadEndpoint returns a URL nothing listens on.
func deadEndpoint(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

// testApp opens sessions with a silent logger.
func testApp() *app {
	return &app{
		openSession: func(ctx context.Context, ws internal.Workspace, opts internal.SessionOptions) (*internal.Session, error) {
			opts.Logger = internal.DiscardLogger()
			return internal.OpenSession(ctx, ws, opts)
		},
	}
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test", testApp())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
