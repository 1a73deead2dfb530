package v1

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/4thel00z/contexthub/internal"
)

// ErrReadOnly is returned by Sync on a client opened WithReadOnly.
var ErrReadOnly = errors.New("client is read-only")

// Client provides programmatic access to a repository's context ledger.
type Client struct {
	session  *internal.Session
	readOnly bool
}

// Init prepares a repository for contexthub, like contexthub init.
func Init(ctx context.Context, root string) error {
	ws, err := internal.FindWorkspace(root)
	if err != nil {
		return err
	}
	_, err = internal.NewInitUseCase(ws).Execute(ctx, internal.InitInput{})
	return err
}

// New opens the workspace of an initialized repository.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	root := cfg.root
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = cwd
	}

	ws, err := internal.FindWorkspace(root)
	if err != nil {
		return nil, err
	}

	s, err := internal.OpenSession(ctx, ws, internal.SessionOptions{
		ReadOnly: cfg.readOnly,
		Logger:   cfg.logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{session: s, readOnly: cfg.readOnly}, nil
}

// Sync summarizes unprocessed commits. The returned result is non-nil
// whenever the run started, even if it then failed.
func (c *Client) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if c.readOnly {
		return nil, ErrReadOnly
	}
	uc, err := c.session.SyncUseCase()
	if err != nil {
		return nil, err
	}

	report, err := uc.Execute(ctx, internal.SyncInput{
		From:       opts.From,
		Last:       opts.Last,
		BestEffort: opts.BestEffort || c.session.Config.BestEffort(),
	})
	if report == nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	res := &SyncResult{
		RunID:      report.RunID,
		Candidates: report.Candidates,
		Stored:     report.Stored,
		Skipped:    report.Skipped,
		Truncated:  report.Truncated,
		Failed:     make([]Failure, 0, len(report.Failed)),
		LastStored: report.LastStored,
	}
	for _, f := range report.Failed {
		res.Failed = append(res.Failed, Failure{Hash: f.Hash, Stage: f.State.String(), Error: f.Err.Error()})
	}
	if err != nil {
		return res, fmt.Errorf("sync: %w", err)
	}
	return res, nil
}

// Status reports stored and pending commits and probes the model.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	out, err := c.session.StatusUseCase().Execute(ctx, internal.StatusInput{})
	if err != nil {
		return nil, err
	}

	st := &Status{
		TotalCommits:   out.TotalCommits,
		Stored:         out.Stored,
		LiveMemory:     out.TTLAlive,
		Endpoint:       out.Endpoint,
		ModelAvailable: out.ModelAvailable,
	}
	if out.LastProcessed != nil {
		st.LastProcessed = out.LastProcessed.CommitHash
	}
	return st, nil
}

// Context returns up to limit stored summaries, newest first. A limit of
// zero or less returns all of them.
func (c *Client) Context(ctx context.Context, limit int) ([]ContextEntry, error) {
	out, err := c.session.ListContextUseCase().Execute(ctx, internal.ListContextInput{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list context: %w", err)
	}

	entries := make([]ContextEntry, 0, len(out.Entries))
	for i := range out.Entries {
		entries = append(entries, toContextEntry(&out.Entries[i]))
	}
	return entries, nil
}

// Memory returns the live short-lived entries.
func (c *Client) Memory(ctx context.Context) ([]MemoryEntry, error) {
	out, err := c.session.ListTTLUseCase().Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("list memory: %w", err)
	}

	entries := make([]MemoryEntry, 0, len(out.Entries))
	for _, e := range out.Entries {
		entries = append(entries, MemoryEntry{CommitHash: e.CommitHash, Content: e.Content, ExpiresAt: e.ExpiresAt})
	}
	return entries, nil
}

// Export renders the stored context as markdown, json, claude, cursor or
// copilot. The agent formats also write their file into the repository.
func (c *Client) Export(ctx context.Context, format string) (string, error) {
	f, err := internal.ParseExportFormat(format)
	if err != nil {
		return "", err
	}
	out, err := c.session.ExportContextUseCase().Execute(ctx, internal.ExportContextInput{Format: f})
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return out.Content, nil
}

// Close releases the ledger and log file.
func (c *Client) Close() error {
	return c.session.Close()
}

func toContextEntry(e *internal.GlobalContextEntry) ContextEntry {
	ce := ContextEntry{
		CommitHash:   e.CommitHash,
		Message:      e.CommitMessage,
		CommitDate:   e.CommitDate,
		Summary:      e.ContextSummary,
		FilesChanged: e.Files(),
		CreatedAt:    e.CreatedAt,
	}
	if ec, err := e.Extracted(); err == nil {
		ce.KeyDetails = ec.KeyDetails
		ce.Technologies = ec.Technologies
		ce.Impact = string(ec.Impact)
	}
	return ce
}
