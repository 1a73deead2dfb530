package internal

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// GitHistory reads commits and first-parent diffs from a git repository.
type GitHistory struct {
	repo   *git.Repository
	ignore *IgnoreMatcher
}

// OpenGitHistory opens the repository rooted at ws.Root. The .contexthubignore
// file at the root, if present, filters diff paths.
func OpenGitHistory(ws Workspace) (*GitHistory, error) {
	wt := osfs.New(ws.Root)
	dot, err := wt.Chroot(".git")
	if err != nil {
		return nil, fmt.Errorf("open .git: %w", err)
	}

	h, err := OpenGitHistoryFS(dot, wt)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNotGitRepository
	}
	return h, err
}

// NewGitHistory wraps an already opened repository.
func NewGitHistory(repo *git.Repository, ignore *IgnoreMatcher) *GitHistory {
	return &GitHistory{repo: repo, ignore: ignore}
}

// OpenGitHistoryFS opens a repository from explicit storage and worktree
// filesystems.
func OpenGitHistoryFS(dot, wt billy.Filesystem) (*GitHistory, error) {
	storage := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())
	repo, err := git.Open(storage, wt)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	ignore, err := NewIgnoreMatcher(wt)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IgnoreFilename, err)
	}
	return NewGitHistory(repo, ignore), nil
}

func (g *GitHistory) Head(ctx context.Context) (string, error) {
	head, err := g.headHash()
	if err != nil {
		return "", err
	}
	return head.String(), nil
}

func (g *GitHistory) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", &ReferenceNotFoundError{Ref: ref}
	}

	hash, err := g.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", &ReferenceNotFoundError{Ref: ref, Err: err}
	}

	// Revisions may name non-commit objects; only commits are usable bounds.
	if _, err := g.repo.CommitObject(*hash); err != nil {
		return "", &ReferenceNotFoundError{Ref: ref, Err: err}
	}
	return hash.String(), nil
}

// Log returns up to limit commits reachable from HEAD, newest first.
// A limit <= 0 returns the full history.
func (g *GitHistory) Log(ctx context.Context, limit int) ([]*Commit, error) {
	head, err := g.headHash()
	if err != nil {
		return nil, err
	}

	iter, err := g.repo.Log(&git.LogOptions{From: head, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	defer iter.Close()

	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if limit > 0 && len(commits) >= limit {
			return io.EOF
		}
		commits = append(commits, c)
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, err
	}

	return topoNewestFirst(commits), nil
}

// Range returns the commits reachable from HEAD but not from the commit
// named by from, newest first.
func (g *GitHistory) Range(ctx context.Context, from string) ([]*Commit, error) {
	head, err := g.headHash()
	if err != nil {
		return nil, err
	}

	fromHash := plumbing.NewHash(from)
	fromCommit, err := g.repo.CommitObject(fromHash)
	if err != nil {
		return nil, &ReferenceNotFoundError{Ref: from, Err: err}
	}

	hidden := map[plumbing.Hash]struct{}{}
	err = object.NewCommitPreorderIter(fromCommit, nil, nil).ForEach(func(c *object.Commit) error {
		hidden[c.Hash] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk ancestors of %s: %w", ShortHash(from), err)
	}

	headCommit, err := g.repo.CommitObject(head)
	if err != nil {
		return nil, fmt.Errorf("get HEAD commit: %w", err)
	}

	visible := object.CommitFilter(func(c *object.Commit) bool {
		_, ok := hidden[c.Hash]
		return !ok
	})
	limit := object.CommitFilter(func(c *object.Commit) bool {
		_, ok := hidden[c.Hash]
		return ok
	})

	var commits []*object.Commit
	iter := object.NewFilterCommitIter(headCommit, &visible, &limit)
	defer iter.Close()
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		commits = append(commits, c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return topoNewestFirst(commits), nil
}

// topoNewestFirst orders commits so every commit precedes its parents.
// Author and committer dates survive rebases and may go backwards, so they
// only break ties between commits that are both ready.
func topoNewestFirst(commits []*object.Commit) []*Commit {
	inSet := make(map[plumbing.Hash]*object.Commit, len(commits))
	for _, c := range commits {
		inSet[c.Hash] = c
	}

	children := make(map[plumbing.Hash]int, len(commits))
	for _, c := range commits {
		for _, p := range c.ParentHashes {
			if _, ok := inSet[p]; ok {
				children[p]++
			}
		}
	}

	ready := &commitHeap{}
	for _, c := range commits {
		if children[c.Hash] == 0 {
			heap.Push(ready, c)
		}
	}

	out := make([]*Commit, 0, len(commits))
	for ready.Len() > 0 {
		c := heap.Pop(ready).(*object.Commit)
		out = append(out, toCommit(c))
		for _, p := range c.ParentHashes {
			parent, ok := inSet[p]
			if !ok {
				continue
			}
			children[p]--
			if children[p] == 0 {
				heap.Push(ready, parent)
			}
		}
	}
	return out
}

// commitHeap pops the latest committer time first, then the larger hash.
type commitHeap []*object.Commit

func (h commitHeap) Len() int { return len(h) }

func (h commitHeap) Less(i, j int) bool {
	ti, tj := h[i].Committer.When, h[j].Committer.When
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return h[i].Hash.String() > h[j].Hash.String()
}

func (h commitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *commitHeap) Push(x any) { *h = append(*h, x.(*object.Commit)) }

func (h *commitHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// Diff returns the first-parent diff of the commit. Root commits diff
// against the empty tree.
func (g *GitHistory) Diff(ctx context.Context, hash string) (*CommitDiff, error) {
	commit, err := g.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, &ReferenceNotFoundError{Ref: hash, Err: err}
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}

	parentTree := &object.Tree{}
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("get parent: %w", err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("get parent tree: %w", err)
		}
	}

	changes, err := parentTree.DiffContext(ctx, tree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	var kept object.Changes
	var files []string
	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		if g.ignore.Match(name) {
			continue
		}
		kept = append(kept, change)
		files = append(files, name)
	}

	diff := &CommitDiff{Hash: commit.Hash.String(), Files: files}
	if len(kept) == 0 {
		return diff, nil
	}

	patch, err := kept.PatchContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get patch: %w", err)
	}
	diff.Patch = patch.String()
	return diff, nil
}

// Count returns the number of commits reachable from HEAD.
func (g *GitHistory) Count(ctx context.Context) (int, error) {
	head, err := g.headHash()
	if errors.Is(err, ErrNoHistory) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	iter, err := g.repo.Log(&git.LogOptions{From: head})
	if err != nil {
		return 0, fmt.Errorf("get log: %w", err)
	}
	defer iter.Close()

	n := 0
	err = iter.ForEach(func(*object.Commit) error {
		n++
		return ctx.Err()
	})
	return n, err
}

func (g *GitHistory) headHash() (plumbing.Hash, error) {
	head, err := g.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, ErrNoHistory
	}
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("get HEAD: %w", err)
	}
	return head.Hash(), nil
}

func toCommit(c *object.Commit) *Commit {
	var parents []string
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}

	return &Commit{
		Hash:      c.Hash.String(),
		Message:   strings.TrimSpace(c.Message),
		Author:    c.Author.Name,
		Timestamp: c.Author.When,
		Parents:   parents,
	}
}
