package internal

import (
	"context"
	"fmt"
)

const DefaultCommitRange = 10

type RangeInput struct {
	From string
	Last int
}

// CommitRange is an ordered set of commits ending at HEAD.
type CommitRange struct {
	Head    string
	From    string
	commits []*Commit // newest first
}

func (r *CommitRange) Len() int { return len(r.commits) }

// NewestFirst returns the commits in walk order.
func (r *CommitRange) NewestFirst() []*Commit {
	out := make([]*Commit, len(r.commits))
	copy(out, r.commits)
	return out
}

// Chronological returns the commits oldest first, the order the sync
// pipeline processes them in.
func (r *CommitRange) Chronological() []*Commit {
	out := make([]*Commit, len(r.commits))
	for i, c := range r.commits {
		out[len(r.commits)-1-i] = c
	}
	return out
}

// ResolveRange computes the candidate commits for a sync. From and Last are
// mutually exclusive; with neither set the last defaultCount commits are
// used.
func ResolveRange(ctx context.Context, history HistoryRepository, in RangeInput, defaultCount int) (*CommitRange, error) {
	if in.From != "" && in.Last > 0 {
		return nil, ErrConflictingRange
	}
	if in.Last < 0 {
		return nil, fmt.Errorf("commit count must be positive, got %d", in.Last)
	}

	head, err := history.Head(ctx)
	if err != nil {
		return nil, err
	}

	if in.From != "" {
		from, err := history.Resolve(ctx, in.From)
		if err != nil {
			return nil, err
		}
		commits, err := history.Range(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("resolve range %s..HEAD: %w", ShortHash(from), err)
		}
		return &CommitRange{Head: head, From: from, commits: commits}, nil
	}

	n := in.Last
	if n == 0 {
		n = defaultCount
	}
	if n <= 0 {
		n = DefaultCommitRange
	}

	commits, err := history.Log(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("resolve last %d commits: %w", n, err)
	}
	return &CommitRange{Head: head, commits: commits}, nil
}
