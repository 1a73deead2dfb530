package internal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptWithoutPrevious(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Message: "feat: add parser",
		Diff:    "+func Parse() {}",
		Files:   []string{"parser.go", "parser_test.go"},
	})

	assert.NotContains(t, p, "Previous Context")
	assert.Contains(t, p, "Commit Message: feat: add parser")
	assert.Contains(t, p, "Files Changed: parser.go, parser_test.go")
	assert.Contains(t, p, "Diff:\n+func Parse() {}")
	assert.Contains(t, p, `"impact": "high|medium|low`)
	assert.NotContains(t, p, "truncated")
}

func TestBuildPromptThreadsPrevious(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Message:         "fix: handle EOF",
		Diff:            "-x\n+y",
		PreviousSummary: "Added a streaming parser.",
	})

	assert.Contains(t, p, "Previous Context (from the last processed commit):\nAdded a streaming parser.\n")
	assert.Less(t, strings.Index(p, "Previous Context"), strings.Index(p, "Commit Message"))
}

func TestBuildPromptTruncatedNote(t *testing.T) {
	diff, truncated := NewCharEstimator().Truncate(strings.Repeat("x", 100), 5)
	p := BuildPrompt(PromptInput{Message: "big", Diff: diff, Truncated: truncated})

	assert.Contains(t, p, TruncationNotice)
	assert.Contains(t, p, "the diff above was truncated")
}

func TestBuildPromptDeterministic(t *testing.T) {
	in := PromptInput{Message: "m", Diff: "d", Files: []string{"a"}, PreviousSummary: "s"}
	assert.Equal(t, BuildPrompt(in), BuildPrompt(in))
}
