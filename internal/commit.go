package internal

import (
	"context"
	"strings"
	"time"
)

type Commit struct {
	Hash      string
	Message   string
	Author    string
	Timestamp time.Time
	Parents   []string
}

// Subject returns the first line of the commit message.
func (c *Commit) Subject() string {
	return Subject(c.Message)
}

// CommitDiff is the first-parent diff of a single commit.
type CommitDiff struct {
	Hash  string
	Files []string
	Patch string
}

type HistoryRepository interface {
	Head(ctx context.Context) (string, error)
	Resolve(ctx context.Context, ref string) (string, error)
	Log(ctx context.Context, limit int) ([]*Commit, error)
	Range(ctx context.Context, from string) ([]*Commit, error)
	Diff(ctx context.Context, hash string) (*CommitDiff, error)
	Count(ctx context.Context) (int, error)
}

func ShortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

// Subject returns the first line of a commit message.
func Subject(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return line
}
