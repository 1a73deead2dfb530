package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CommitState is how far a commit got through the sync pipeline.
type CommitState int

const (
	StatePending CommitState = iota
	StateDiffFetched
	StateBudgeted
	StateChained
	StateModelCalled
	StateParsed
	StateStored
	StateSkipped
	StateFailed
)

func (s CommitState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDiffFetched:
		return "diff-fetched"
	case StateBudgeted:
		return "budgeted"
	case StateChained:
		return "chained"
	case StateModelCalled:
		return "model-called"
	case StateParsed:
		return "parsed"
	case StateStored:
		return "stored"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SyncLedger is the part of the ledger the sync pipeline needs.
type SyncLedger interface {
	ProcessedSet(ctx context.Context) (map[string]struct{}, error)
	LatestSummary(ctx context.Context) (string, bool, error)
	StoreWithTTL(ctx context.Context, entry *GlobalContextEntry, ttl *TTLMemoryEntry) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	ExpiryFrom(now time.Time) time.Time
}

var _ SyncLedger = (*Ledger)(nil)

// CommitEvent is emitted on every state transition of a commit.
type CommitEvent struct {
	Hash      string
	Subject   string
	State     CommitState
	Index     int // 1-based position among pending commits, 0 when skipped
	Total     int // number of pending commits
	Truncated bool
	Err       error
}

type SyncInput struct {
	From       string
	Last       int
	BestEffort bool
	Progress   func(CommitEvent)
}

type CommitFailure struct {
	Hash  string
	State CommitState
	Err   error
}

type SyncReport struct {
	RunID      string
	Candidates int
	Skipped    int
	Stored     int
	Truncated  int
	Purged     int64
	Failed     []CommitFailure
	AbortedAt  string
	LastStored string
}

type SyncOptions struct {
	Estimator    Estimator
	TokenBudget  int
	DefaultCount int
	Logger       logrus.FieldLogger
	Now          func() time.Time
}

type SyncUseCase struct {
	history      HistoryRepository
	ledger       SyncLedger
	gateway      Gateway
	estimator    Estimator
	budget       int
	defaultCount int
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewSyncUseCase(
	history HistoryRepository,
	ledger SyncLedger,
	gateway Gateway,
	opts SyncOptions,
) *SyncUseCase {
	uc := &SyncUseCase{
		history:      history,
		ledger:       ledger,
		gateway:      gateway,
		estimator:    opts.Estimator,
		budget:       opts.TokenBudget,
		defaultCount: opts.DefaultCount,
		log:          opts.Logger,
		now:          opts.Now,
	}
	if uc.estimator == nil {
		uc.estimator = NewCharEstimator()
	}
	if uc.defaultCount <= 0 {
		uc.defaultCount = DefaultCommitRange
	}
	if uc.log == nil {
		uc.log = DiscardLogger()
	}
	if uc.now == nil {
		uc.now = time.Now
	}
	return uc
}

// Execute processes every commit in the requested range that the ledger has
// not seen yet, oldest first, chaining each summary into the next prompt.
// The report is returned even when the run aborts.
func (uc *SyncUseCase) Execute(ctx context.Context, input SyncInput) (*SyncReport, error) {
	report := &SyncReport{RunID: uuid.New().String()}
	log := uc.log.WithField("run_id", report.RunID)
	emit := input.Progress
	if emit == nil {
		emit = func(CommitEvent) {}
	}

	purged, err := uc.ledger.PurgeExpired(ctx, uc.now())
	if err != nil {
		return report, err
	}
	report.Purged = purged
	if purged > 0 {
		log.WithField("purged", purged).Info("purged expired ttl memory")
	}

	rng, err := ResolveRange(ctx, uc.history, RangeInput{From: input.From, Last: input.Last}, uc.defaultCount)
	if err != nil {
		return report, err
	}
	commits := rng.Chronological()
	report.Candidates = rng.Len()

	processed, err := uc.ledger.ProcessedSet(ctx)
	if err != nil {
		return report, err
	}

	var pending []*Commit
	for _, c := range commits {
		if _, ok := processed[c.Hash]; ok {
			report.Skipped++
			emit(CommitEvent{Hash: c.Hash, Subject: c.Subject(), State: StateSkipped})
			continue
		}
		pending = append(pending, c)
	}

	log.WithFields(logrus.Fields{
		"candidates": report.Candidates,
		"skipped":    report.Skipped,
		"pending":    len(pending),
	}).Info("sync range resolved")

	if len(pending) == 0 {
		return report, nil
	}

	if !uc.gateway.IsAvailable(ctx) {
		return report, &ModelUnavailableError{Endpoint: uc.gateway.Endpoint()}
	}

	previous, _, err := uc.ledger.LatestSummary(ctx)
	if err != nil {
		return report, err
	}

	for i, c := range pending {
		if err := ctx.Err(); err != nil {
			report.AbortedAt = c.Hash
			return report, err
		}

		clog := log.WithField("commit", ShortHash(c.Hash))
		ev := CommitEvent{Hash: c.Hash, Subject: c.Subject(), Index: i + 1, Total: len(pending)}

		summary, truncated, state, err := uc.processCommit(ctx, c, previous, &ev, emit)
		if truncated {
			report.Truncated++
		}
		if err == nil {
			report.Stored++
			report.LastStored = c.Hash
			previous = summary
			clog.WithField("truncated", truncated).Info("commit stored")
			continue
		}

		cerr := &CommitError{Hash: c.Hash, State: state, Err: err}
		report.Failed = append(report.Failed, CommitFailure{Hash: c.Hash, State: state, Err: err})
		ev.State = StateFailed
		ev.Err = err
		emit(ev)

		if !input.BestEffort || alwaysFatal(err) || ctx.Err() != nil {
			report.AbortedAt = c.Hash
			clog.WithError(err).WithField("state", state.String()).Error("sync aborted")
			return report, cerr
		}
		clog.WithError(err).WithField("state", state.String()).Warn("commit skipped, context chain has a gap")
	}

	return report, nil
}

// processCommit runs one commit through the pipeline and returns its stored
// summary. On failure the returned state is the last one reached.
func (uc *SyncUseCase) processCommit(
	ctx context.Context,
	c *Commit,
	previous string,
	ev *CommitEvent,
	emit func(CommitEvent),
) (string, bool, CommitState, error) {
	state := StatePending
	step := func(s CommitState) {
		state = s
		ev.State = s
		emit(*ev)
	}
	step(StatePending)

	diff, err := uc.history.Diff(ctx, c.Hash)
	if err != nil {
		return "", false, state, fmt.Errorf("fetch diff: %w", err)
	}
	step(StateDiffFetched)

	patch, truncated := uc.estimator.Truncate(diff.Patch, uc.budget)
	ev.Truncated = truncated
	step(StateBudgeted)

	prompt := BuildPrompt(PromptInput{
		Message:         c.Message,
		Diff:            patch,
		Files:           diff.Files,
		PreviousSummary: previous,
		Truncated:       truncated,
	})
	step(StateChained)

	raw, err := uc.gateway.Generate(ctx, prompt)
	if err != nil {
		return "", truncated, state, err
	}
	step(StateModelCalled)

	extracted, err := ParseExtractedContext(raw)
	if err != nil {
		return "", truncated, state, err
	}
	step(StateParsed)

	payload, err := extracted.JSON()
	if err != nil {
		return "", truncated, state, fmt.Errorf("encode extracted context: %w", err)
	}
	files, err := json.Marshal(diff.Files)
	if err != nil {
		return "", truncated, state, fmt.Errorf("encode files: %w", err)
	}
	if diff.Files == nil {
		files = []byte("[]")
	}

	now := uc.now()
	entry := &GlobalContextEntry{
		CommitHash:          c.Hash,
		CommitMessage:       c.Message,
		CommitDate:          c.Timestamp,
		ContextSummary:      extracted.Summary,
		FilesChanged:        string(files),
		LLMExtractedContext: payload,
		CreatedAt:           now,
	}
	ttl := &TTLMemoryEntry{
		CommitHash: c.Hash,
		Content:    extracted.Summary,
		ExpiresAt:  uc.ledger.ExpiryFrom(now),
		CreatedAt:  now,
	}
	if err := uc.ledger.StoreWithTTL(ctx, entry, ttl); err != nil {
		return "", truncated, state, err
	}
	step(StateStored)

	return extracted.Summary, truncated, state, nil
}

// alwaysFatal reports failures that abort a run regardless of policy: a
// duplicate means the dedup filter is broken and storage errors mean the
// ledger cannot be trusted.
func alwaysFatal(err error) bool {
	var dup *DuplicateCommitError
	var se *StorageError
	return errors.As(err, &dup) || errors.As(err, &se)
}
