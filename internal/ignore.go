package internal

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreMatcher filters repository paths out of the diffs sent to the model.
// Patterns follow gitignore syntax and are read from .contexthubignore at the
// working tree root.
type IgnoreMatcher struct {
	patterns []gitignore.Pattern
}

// NewIgnoreMatcher reads the ignore file from fs. A missing file yields a
// matcher that matches nothing.
func NewIgnoreMatcher(fs billy.Filesystem) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{}
	if fs == nil {
		return m, nil
	}

	data, err := util.ReadFile(fs, IgnoreFilename)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}

	m.patterns, err = parseIgnorePatterns(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewIgnoreMatcherFromPatterns builds a matcher from literal pattern lines.
func NewIgnoreMatcherFromPatterns(lines ...string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, gitignore.ParsePattern(line, nil))
	}
	return m
}

// Match reports whether a slash-separated repository path is ignored.
func (m *IgnoreMatcher) Match(path string) bool {
	if m == nil || len(m.patterns) == 0 || path == "" {
		return false
	}

	parts := strings.Split(path, "/")
	// Walk prefixes so a pattern naming a directory excludes everything below it.
	for i := 1; i <= len(parts); i++ {
		isDir := i < len(parts)
		if matchPatterns(m.patterns, parts[:i], isDir) {
			return true
		}
	}
	return false
}

func (m *IgnoreMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// matchPatterns applies gitignore precedence: the last matching pattern wins.
func matchPatterns(patterns []gitignore.Pattern, parts []string, isDir bool) bool {
	result := gitignore.NoMatch
	for _, p := range patterns {
		if r := p.Match(parts, isDir); r != gitignore.NoMatch {
			result = r
		}
	}
	return result == gitignore.Exclude
}

func parseIgnorePatterns(data []byte) ([]gitignore.Pattern, error) {
	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}
