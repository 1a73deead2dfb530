package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type SessionOptions struct {
	// ReadOnly opens the ledger without write access.
	ReadOnly bool
	// WithoutModel skips building the model gateway.
	WithoutModel bool
	// Logger overrides the workspace logger.
	Logger *logrus.Logger
}

// Session bundles the resources a command needs for one workspace.
type Session struct {
	Workspace Workspace
	Config    *Config
	Log       *logrus.Logger
	History   *GitHistory
	Ledger    *Ledger
	Gateway   Gateway

	ownsLog bool
}

// OpenSession loads config, opens the repository history and the ledger and,
// unless disabled, builds the model gateway. The workspace must be
// initialized.
func OpenSession(ctx context.Context, ws Workspace, opts SessionOptions) (*Session, error) {
	if err := ws.RequireInitialized(); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(ws)
	if err != nil {
		return nil, err
	}

	s := &Session{Workspace: ws, Config: cfg, Log: opts.Logger}
	if s.Log == nil {
		s.Log = NewLogger(&ws, cfg.Log)
		s.ownsLog = true
	}
	fail := func(err error) (*Session, error) {
		s.Log.WithError(err).Debug("open session")
		_ = s.Close()
		return nil, err
	}

	if s.History, err = OpenGitHistory(ws); err != nil {
		return fail(err)
	}

	s.Ledger, err = OpenLedger(ws.DBPath(), LedgerOptions{
		ReadOnly: opts.ReadOnly,
		TTLDays:  cfg.Context.TTLDays,
	})
	if err != nil {
		return fail(err)
	}

	if !opts.WithoutModel {
		if s.Gateway, err = NewGateway(ctx, cfg); err != nil {
			return fail(fmt.Errorf("build model gateway: %w", err))
		}
	}

	return s, nil
}

// Close releases the ledger and, when the session created it, the log file.
func (s *Session) Close() error {
	var errs []error
	if s.Ledger != nil {
		errs = append(errs, s.Ledger.Close())
	}
	if c, ok := s.Log.Out.(interface{ Close() error }); ok && s.ownsLog {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// SyncUseCase wires the sync pipeline from the session's config.
func (s *Session) SyncUseCase() (*SyncUseCase, error) {
	if s.Gateway == nil {
		return nil, errors.New("session opened without a model gateway")
	}
	if s.Ledger.ReadOnly() {
		return nil, errors.New("session opened read-only")
	}

	estimator, err := NewEstimator(s.Config.Context.Estimator)
	if err != nil {
		return nil, err
	}

	return NewSyncUseCase(s.History, s.Ledger, s.Gateway, SyncOptions{
		Estimator:    estimator,
		TokenBudget:  s.Config.Context.MaxTokensPerCommit,
		DefaultCount: s.Config.Context.DefaultCommitRange,
		Logger:       s.Log,
	}), nil
}

func (s *Session) StatusUseCase() *StatusUseCase {
	return NewStatusUseCase(s.History, s.Ledger, s.Gateway)
}

func (s *Session) ListContextUseCase() *ListContextUseCase {
	return NewListContextUseCase(s.Ledger)
}

func (s *Session) ExportContextUseCase() *ExportContextUseCase {
	return NewExportContextUseCase(s.Workspace, s.Ledger)
}

func (s *Session) ListTTLUseCase() *ListTTLUseCase {
	return NewListTTLUseCase(s.Ledger)
}

func (s *Session) ClearTTLUseCase() *ClearTTLUseCase {
	return NewClearTTLUseCase(s.Ledger)
}
