package internal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExportFormat(t *testing.T) {
	tests := []struct {
		in   string
		want ExportFormat
	}{
		{"markdown", ExportMarkdown},
		{"md", ExportMarkdown},
		{"JSON", ExportJSON},
		{"claude", ExportClaude},
		{"cursorrules", ExportCursor},
		{"github-copilot", ExportCopilot},
	}
	for _, tt := range tests {
		got, err := ParseExportFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseExportFormat("html")
	assert.Error(t, err)
}

func TestExportFormatTargetPath(t *testing.T) {
	assert.Equal(t, "CLAUDE.md", ExportClaude.TargetPath())
	assert.Equal(t, ".cursorrules", ExportCursor.TargetPath())
	assert.Equal(t, filepath.Join(".github", "copilot-instructions.md"), ExportCopilot.TargetPath())
	assert.Empty(t, ExportMarkdown.TargetPath())
	assert.Empty(t, ExportJSON.TargetPath())
}

func exportFixture(t *testing.T) (Workspace, *Ledger) {
	t.Helper()
	ws := NewWorkspace(t.TempDir())
	l := openTestLedger(t)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	ec := &ExtractedContext{
		Summary:      "Adds the parser.",
		FilesChanged: []string{"parser.go"},
		KeyDetails:   []string{"streaming decode"},
		Technologies: []string{"Go", "JSON"},
		Impact:       ImpactMedium,
	}
	payload, err := ec.JSON()
	require.NoError(t, err)

	require.NoError(t, l.Store(context.Background(), &GlobalContextEntry{
		CommitHash:          "1111111aaaa",
		CommitMessage:       "feat: parser\n\nlong body",
		CommitDate:          base,
		ContextSummary:      ec.Summary,
		FilesChanged:        `["parser.go"]`,
		LLMExtractedContext: payload,
	}))
	require.NoError(t, l.Store(context.Background(), testEntry("2222222bbbb", "Fixes a leak.", base.Add(time.Hour))))
	return ws, l
}

func TestExportMarkdown(t *testing.T) {
	ws, l := exportFixture(t)

	out, err := NewExportContextUseCase(ws, l).Execute(context.Background(), ExportContextInput{Format: ExportMarkdown})
	require.NoError(t, err)
	assert.Empty(t, out.Path)
	assert.Equal(t, 2, out.Entries)

	assert.Contains(t, out.Content, "# Repository Context")
	assert.Contains(t, out.Content, "### 1111111: feat: parser\n")
	assert.Contains(t, out.Content, "- **Date:** 2024-03-01")
	assert.Contains(t, out.Content, "- **Files:** parser.go")
	assert.Contains(t, out.Content, "  - streaming decode")
	assert.Less(t, strings.Index(out.Content, "2222222"), strings.Index(out.Content, "1111111"), "newest first")
}

func TestExportJSON(t *testing.T) {
	ws, l := exportFixture(t)

	out, err := NewExportContextUseCase(ws, l).Execute(context.Background(), ExportContextInput{Format: ExportJSON})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out.Content), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "2222222bbbb", decoded[0]["commit_hash"])
	assert.Equal(t, []any{"parser.go"}, decoded[1]["files_changed"])
	extracted, ok := decoded[1]["llm_extracted_context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "medium", extracted["impact"])
}

func TestExportAgentFilesWritten(t *testing.T) {
	ws, l := exportFixture(t)
	uc := NewExportContextUseCase(ws, l)

	for _, f := range []ExportFormat{ExportClaude, ExportCursor, ExportCopilot} {
		out, err := uc.Execute(context.Background(), ExportContextInput{Format: f})
		require.NoError(t, err, f)
		assert.Equal(t, filepath.Join(ws.Root, f.TargetPath()), out.Path)

		data, err := os.ReadFile(out.Path)
		require.NoError(t, err, f)
		assert.Equal(t, out.Content, string(data))
		assert.Contains(t, out.Content, "## Technologies\n\n- Go\n- JSON\n")
		assert.Contains(t, out.Content, "contexthub context --export "+string(f))
	}
}

func TestExportSince(t *testing.T) {
	ws, l := exportFixture(t)

	out, err := NewExportContextUseCase(ws, l).Execute(context.Background(), ExportContextInput{
		Format: ExportMarkdown,
		Since:  "2222222",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Entries)
	assert.NotContains(t, out.Content, "1111111")
}

func TestRenderAgentInstructionsEmpty(t *testing.T) {
	content := RenderAgentInstructions(ExportClaude, nil)
	assert.Contains(t, content, "# CLAUDE.md")
	assert.Contains(t, content, "No commits have been synced yet.")
	assert.NotContains(t, content, "## Technologies")
}
