package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ContextReader is the read side of the ledger used by reporting commands.
// A read-only Ledger satisfies it.
type ContextReader interface {
	Entries(ctx context.Context, limit int) ([]GlobalContextEntry, error)
	EntriesSince(ctx context.Context, hash string) ([]GlobalContextEntry, error)
	Count(ctx context.Context) (int64, error)
	LastProcessed(ctx context.Context) (*GlobalContextEntry, error)
	TTLEntries(ctx context.Context, now time.Time) ([]TTLMemoryEntry, error)
}

var _ ContextReader = (*Ledger)(nil)

// DefaultContextListLimit is how many entries `context` shows by default.
const DefaultContextListLimit = 20

// Input/Output DTOs

type InitInput struct {
	Model    string
	Endpoint string
}

type InitOutput struct {
	Dir              string
	GitignoreUpdated bool
	Config           *Config
}

type StatusInput struct {
	// SkipProbe avoids contacting the model endpoint.
	SkipProbe bool
}

type StatusOutput struct {
	TotalCommits   int
	Stored         int64
	LastProcessed  *GlobalContextEntry
	TTLAlive       int
	Endpoint       string
	ModelAvailable bool
	Probed         bool
}

type ListContextInput struct {
	Limit int
	Since string
}

type ListContextOutput struct {
	Entries []GlobalContextEntry
	Total   int64
}

type ListTTLOutput struct {
	Entries []TTLMemoryEntry
}

type ClearTTLOutput struct {
	Removed int64
}

type SetTTLInput struct {
	Days int
}

type UpdateConfigInput struct {
	Provider string
	Model    string
	Endpoint string
}

// Use cases

type InitUseCase struct {
	ws Workspace
}

func NewInitUseCase(ws Workspace) *InitUseCase {
	return &InitUseCase{ws: ws}
}

// Execute creates .contexthub with its log directory, database and default
// config, and keeps the directory out of version control.
func (uc *InitUseCase) Execute(_ context.Context, input InitInput) (*InitOutput, error) {
	if info, err := os.Stat(uc.ws.GitDir()); err != nil || !info.IsDir() {
		return nil, ErrNotGitRepository
	}
	if uc.ws.Initialized() {
		return nil, ErrAlreadyInitialized
	}

	if err := os.MkdirAll(uc.ws.LogDir(), 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", uc.ws.LogDir(), err)
	}

	cfg := DefaultConfig()
	if input.Model != "" {
		cfg.Model.Model = input.Model
	}
	if input.Endpoint != "" {
		cfg.Model.Endpoint = strings.TrimRight(input.Endpoint, "/")
	}
	if err := SaveConfig(uc.ws, cfg); err != nil {
		_ = os.RemoveAll(uc.ws.Dir)
		return nil, fmt.Errorf("save config: %w", err)
	}

	ledger, err := OpenLedger(uc.ws.DBPath(), LedgerOptions{TTLDays: cfg.Context.TTLDays})
	if err != nil {
		_ = os.RemoveAll(uc.ws.Dir)
		return nil, err
	}
	if err := ledger.Close(); err != nil {
		return nil, err
	}

	updated, err := ensureGitignored(uc.ws.Root, WorkspaceDir+"/")
	if err != nil {
		return nil, err
	}

	return &InitOutput{Dir: uc.ws.Dir, GitignoreUpdated: updated, Config: cfg}, nil
}

// ensureGitignored appends entry to the root .gitignore unless a line
// already names it.
func ensureGitignored(root, entry string) (bool, error) {
	path := filepath.Join(root, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read .gitignore: %w", err)
	}

	content := string(data)
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == entry {
			return false, nil
		}
	}

	var b strings.Builder
	b.WriteString(content)
	if content != "" {
		if !strings.HasSuffix(content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("# contexthub local data\n")
	b.WriteString(entry)
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return false, fmt.Errorf("write .gitignore: %w", err)
	}
	return true, nil
}

type StatusUseCase struct {
	history HistoryRepository
	reader  ContextReader
	gateway Gateway
	now     func() time.Time
}

func NewStatusUseCase(history HistoryRepository, reader ContextReader, gateway Gateway) *StatusUseCase {
	return &StatusUseCase{history: history, reader: reader, gateway: gateway, now: time.Now}
}

func (uc *StatusUseCase) Execute(ctx context.Context, input StatusInput) (*StatusOutput, error) {
	total, err := uc.history.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count commits: %w", err)
	}

	stored, err := uc.reader.Count(ctx)
	if err != nil {
		return nil, err
	}

	last, err := uc.reader.LastProcessed(ctx)
	if err != nil {
		return nil, err
	}

	ttl, err := uc.reader.TTLEntries(ctx, uc.now())
	if err != nil {
		return nil, err
	}

	out := &StatusOutput{
		TotalCommits:  total,
		Stored:        stored,
		LastProcessed: last,
		TTLAlive:      len(ttl),
	}
	if uc.gateway != nil {
		out.Endpoint = uc.gateway.Endpoint()
		if !input.SkipProbe {
			out.Probed = true
			out.ModelAvailable = uc.gateway.IsAvailable(ctx)
		}
	}
	return out, nil
}

type ListContextUseCase struct {
	reader ContextReader
}

func NewListContextUseCase(reader ContextReader) *ListContextUseCase {
	return &ListContextUseCase{reader: reader}
}

// Execute lists stored entries newest first. Since restricts the list to
// entries at or after the given stored commit; a limit <= 0 lists all.
func (uc *ListContextUseCase) Execute(ctx context.Context, input ListContextInput) (*ListContextOutput, error) {
	total, err := uc.reader.Count(ctx)
	if err != nil {
		return nil, err
	}

	var entries []GlobalContextEntry
	if input.Since != "" {
		entries, err = uc.reader.EntriesSince(ctx, input.Since)
		if err == nil && input.Limit > 0 && len(entries) > input.Limit {
			entries = entries[:input.Limit]
		}
	} else {
		entries, err = uc.reader.Entries(ctx, input.Limit)
	}
	if err != nil {
		return nil, err
	}

	return &ListContextOutput{Entries: entries, Total: total}, nil
}

// TTLLedger is the part of the ledger the memory ttl commands need.
type TTLLedger interface {
	TTLEntries(ctx context.Context, now time.Time) ([]TTLMemoryEntry, error)
	ClearTTL(ctx context.Context) (int64, error)
}

type ListTTLUseCase struct {
	ledger TTLLedger
	now    func() time.Time
}

func NewListTTLUseCase(ledger TTLLedger) *ListTTLUseCase {
	return &ListTTLUseCase{ledger: ledger, now: time.Now}
}

func (uc *ListTTLUseCase) Execute(ctx context.Context) (*ListTTLOutput, error) {
	entries, err := uc.ledger.TTLEntries(ctx, uc.now())
	if err != nil {
		return nil, err
	}
	return &ListTTLOutput{Entries: entries}, nil
}

type ClearTTLUseCase struct {
	ledger TTLLedger
}

func NewClearTTLUseCase(ledger TTLLedger) *ClearTTLUseCase {
	return &ClearTTLUseCase{ledger: ledger}
}

func (uc *ClearTTLUseCase) Execute(ctx context.Context) (*ClearTTLOutput, error) {
	n, err := uc.ledger.ClearTTL(ctx)
	if err != nil {
		return nil, err
	}
	return &ClearTTLOutput{Removed: n}, nil
}

type SetTTLUseCase struct {
	ws Workspace
}

func NewSetTTLUseCase(ws Workspace) *SetTTLUseCase {
	return &SetTTLUseCase{ws: ws}
}

// Execute persists the TTL window. Existing rows keep their expiry; only
// entries stored afterwards use the new window.
func (uc *SetTTLUseCase) Execute(_ context.Context, input SetTTLInput) (*Config, error) {
	if err := uc.ws.RequireInitialized(); err != nil {
		return nil, err
	}
	if input.Days <= 0 {
		return nil, fmt.Errorf("ttl must be a positive number of days, got %d", input.Days)
	}

	cfg, err := LoadConfig(uc.ws)
	if err != nil {
		return nil, err
	}
	cfg.Context.TTLDays = input.Days
	if err := SaveConfig(uc.ws, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type UpdateConfigUseCase struct {
	ws Workspace
}

func NewUpdateConfigUseCase(ws Workspace) *UpdateConfigUseCase {
	return &UpdateConfigUseCase{ws: ws}
}

// Execute applies the non-empty fields of input and saves the result. The
// file is left untouched when the updated config does not validate.
func (uc *UpdateConfigUseCase) Execute(_ context.Context, input UpdateConfigInput) (*Config, error) {
	if err := uc.ws.RequireInitialized(); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(uc.ws)
	if err != nil {
		return nil, err
	}
	if input.Provider != "" {
		cfg.Model.Provider = input.Provider
	}
	if input.Model != "" {
		cfg.Model.Model = input.Model
	}
	if input.Endpoint != "" {
		cfg.Model.Endpoint = strings.TrimRight(input.Endpoint, "/")
	}

	if err := SaveConfig(uc.ws, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
