package internal

import (
	"strings"
)

type PromptInput struct {
	Message         string
	Diff            string
	Files           []string
	PreviousSummary string
	Truncated       bool
}

const promptPreamble = "You are a code context analyzer. Given a git commit diff, extract structured information about what was changed.\n"

const promptResponseShape = `Respond ONLY with valid JSON (no other text):
{
  "summary": "1-2 sentence description of what this commit does",
  "files_changed": ["list of key files that were modified"],
  "key_details": ["2-4 important technical details about this change"],
  "technologies": ["technologies/libraries used"],
  "impact": "high|medium|low - how significant is this change"
}`

// BuildPrompt renders the model request for one commit. The previous
// summary is threaded in so each entry builds on the one before it; with no
// previous summary the section is left out entirely.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString(promptPreamble)
	if in.PreviousSummary != "" {
		b.WriteString("\nPrevious Context (from the last processed commit):\n")
		b.WriteString(in.PreviousSummary)
		b.WriteString("\n\nUse this to understand the evolving codebase and build incremental knowledge.\n")
	}

	b.WriteString("\nCommit Message: ")
	b.WriteString(in.Message)
	b.WriteString("\n\nFiles Changed: ")
	b.WriteString(strings.Join(in.Files, ", "))
	b.WriteString("\n\nDiff:\n")
	b.WriteString(in.Diff)
	if in.Truncated {
		b.WriteString("\n\nNote: the diff above was truncated to fit the token budget; summarize what is visible.")
	}
	b.WriteString("\n\n")
	b.WriteString(promptResponseShape)

	return b.String()
}
