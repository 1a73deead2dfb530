package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type ExportFormat string

const (
	ExportMarkdown ExportFormat = "markdown"
	ExportJSON     ExportFormat = "json"
	ExportClaude   ExportFormat = "claude"
	ExportCursor   ExportFormat = "cursor"
	ExportCopilot  ExportFormat = "copilot"
)

// ParseExportFormat accepts the format names and their common aliases.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return ExportMarkdown, nil
	case "json":
		return ExportJSON, nil
	case "claude":
		return ExportClaude, nil
	case "cursor", "cursorrules":
		return ExportCursor, nil
	case "copilot", "github-copilot":
		return ExportCopilot, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (supported: markdown, json, claude, cursor, copilot)", s)
	}
}

// TargetPath is the file an agent format is written to, relative to the
// repository root. Markdown and JSON go to stdout and have none.
func (f ExportFormat) TargetPath() string {
	switch f {
	case ExportClaude:
		return "CLAUDE.md"
	case ExportCursor:
		return ".cursorrules"
	case ExportCopilot:
		return filepath.Join(".github", "copilot-instructions.md")
	default:
		return ""
	}
}

type ExportContextInput struct {
	Format ExportFormat
	Since  string
	// Limit caps the entries rendered by text formats. Zero means
	// DefaultContextListLimit; JSON always carries every selected entry.
	Limit int
}

type ExportContextOutput struct {
	Content string
	Path    string // empty when Content is meant for stdout
	Entries int
}

type ExportContextUseCase struct {
	ws     Workspace
	reader ContextReader
}

func NewExportContextUseCase(ws Workspace, reader ContextReader) *ExportContextUseCase {
	return &ExportContextUseCase{ws: ws, reader: reader}
}

func (uc *ExportContextUseCase) Execute(ctx context.Context, input ExportContextInput) (*ExportContextOutput, error) {
	var entries []GlobalContextEntry
	var err error
	if input.Since != "" {
		entries, err = uc.reader.EntriesSince(ctx, input.Since)
	} else {
		entries, err = uc.reader.Entries(ctx, 0)
	}
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultContextListLimit
	}
	text := entries
	if len(text) > limit {
		text = text[:limit]
	}

	var content string
	switch input.Format {
	case ExportMarkdown:
		content = RenderMarkdown(text)
	case ExportJSON:
		content, err = RenderJSON(entries)
	case ExportClaude, ExportCursor, ExportCopilot:
		content = RenderAgentInstructions(input.Format, text)
	default:
		return nil, fmt.Errorf("unsupported export format %q", input.Format)
	}
	if err != nil {
		return nil, err
	}

	out := &ExportContextOutput{Content: content, Entries: len(entries)}
	if input.Format != ExportJSON {
		out.Entries = len(text)
	}

	rel := input.Format.TargetPath()
	if rel == "" {
		return out, nil
	}
	out.Path = filepath.Join(uc.ws.Root, rel)
	if err := os.MkdirAll(filepath.Dir(out.Path), 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(out.Path), err)
	}
	if err := os.WriteFile(out.Path, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out.Path, err)
	}
	return out, nil
}

// RenderMarkdown renders entries as a "Recent Changes" document.
func RenderMarkdown(entries []GlobalContextEntry) string {
	var b strings.Builder
	b.WriteString("# Repository Context\n\n")
	b.WriteString("## Recent Changes\n\n")
	writeChanges(&b, entries)
	return b.String()
}

func writeChanges(b *strings.Builder, entries []GlobalContextEntry) {
	for i := range entries {
		e := &entries[i]
		subject := Subject(e.CommitMessage)
		if subject == "" {
			subject = "No message"
		}
		fmt.Fprintf(b, "### %s: %s\n", ShortHash(e.CommitHash), subject)
		fmt.Fprintf(b, "- **Date:** %s\n", e.CommitDate.Format("2006-01-02"))
		fmt.Fprintf(b, "- **Summary:** %s\n", e.ContextSummary)
		if files := e.Files(); len(files) > 0 {
			fmt.Fprintf(b, "- **Files:** %s\n", strings.Join(files, ", "))
		}
		if ec, err := e.Extracted(); err == nil {
			for _, d := range ec.KeyDetails {
				fmt.Fprintf(b, "  - %s\n", d)
			}
		}
		b.WriteString("\n")
	}
}

type exportedEntry struct {
	CommitHash       string            `json:"commit_hash"`
	CommitMessage    string            `json:"commit_message"`
	CommitDate       string            `json:"commit_date"`
	ContextSummary   string            `json:"context_summary"`
	FilesChanged     []string          `json:"files_changed"`
	ExtractedContext *ExtractedContext `json:"llm_extracted_context,omitempty"`
	CreatedAt        string            `json:"created_at"`
}

// RenderJSON encodes entries with their stored payloads decoded.
func RenderJSON(entries []GlobalContextEntry) (string, error) {
	out := make([]exportedEntry, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		files := e.Files()
		if files == nil {
			files = []string{}
		}
		x := exportedEntry{
			CommitHash:     e.CommitHash,
			CommitMessage:  e.CommitMessage,
			CommitDate:     e.CommitDate.Format(time.RFC3339),
			ContextSummary: e.ContextSummary,
			FilesChanged:   files,
			CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		}
		if ec, err := e.Extracted(); err == nil {
			x.ExtractedContext = ec
		}
		out = append(out, x)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	return string(data), nil
}

// RenderAgentInstructions renders the instructions file an AI coding
// assistant reads from the repository.
func RenderAgentInstructions(format ExportFormat, entries []GlobalContextEntry) string {
	var b strings.Builder
	switch format {
	case ExportClaude:
		b.WriteString("# CLAUDE.md\n\n")
	case ExportCopilot:
		b.WriteString("# Copilot Instructions\n\n")
	default:
		b.WriteString("# Project Rules\n\n")
	}
	b.WriteString("This file is generated by contexthub from the repository's commit history.\n")
	b.WriteString("Regenerate it with `contexthub context --export " + string(format) + "` instead of editing it.\n\n")

	if techs := technologies(entries); len(techs) > 0 {
		b.WriteString("## Technologies\n\n")
		for _, t := range techs {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recent Changes\n\n")
	if len(entries) == 0 {
		b.WriteString("No commits have been synced yet.\n")
		return b.String()
	}
	writeChanges(&b, entries)
	return b.String()
}

// technologies collects the technologies named across entries, most
// recent first, without duplicates.
func technologies(entries []GlobalContextEntry) []string {
	var all []string
	for i := range entries {
		if ec, err := entries[i].Extracted(); err == nil {
			all = append(all, ec.Technologies...)
		}
	}
	return dedupe(all)
}
