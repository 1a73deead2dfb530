package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/4thel00z/contexthub/internal"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const purgeSchedule = "@every 1h"

func NewWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync automatically when new commits land",
		Long: `Watch .git/HEAD and the branch refs and run a sync of the default range
shortly after they change. Expired TTL memory is purged every hour.`,
		RunE: makeWatchRunner(a),
	}

	cmd.Flags().Duration("debounce", 0, "Debounce window for batching ref changes (default git.watch_debounce)")
	return cmd
}

func makeWatchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		ws, err := workspaceFor(cmd)
		if err != nil {
			return err
		}

		s, err := a.openSession(ctx, ws, internal.SessionOptions{})
		if err != nil {
			return err
		}
		defer s.Close()

		uc, err := s.SyncUseCase()
		if err != nil {
			return err
		}

		debounce, _ := cmd.Flags().GetDuration("debounce")
		if debounce <= 0 {
			debounce = s.Config.Git.WatchDebounce
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer watcher.Close()

		if err := addRefWatches(watcher, ws.GitDir()); err != nil {
			return fmt.Errorf("add watch dirs: %w", err)
		}

		scheduler := cron.New()
		if _, err := scheduler.AddFunc(purgeSchedule, func() {
			purgeExpired(ctx, s.Ledger, s.Log)
		}); err != nil {
			return fmt.Errorf("schedule ttl purge: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Watching %s for new commits (Ctrl+C to stop)...\n", ws.Root)
		s.Log.WithField("root", ws.Root).Info("watch started")

		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&fsnotify.Create != 0 {
					addNewRefDir(watcher, event.Name)
				}
				if !isRefChange(event, ws.GitDir()) {
					continue
				}
				if !pending {
					timer.Reset(debounce)
					pending = true
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				s.Log.WithError(err).Warn("watch error")
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			case <-timer.C:
				pending = false
				runWatchSync(ctx, w, uc, s)
			}
		}
	}
}

func runWatchSync(ctx context.Context, w io.Writer, uc *internal.SyncUseCase, s *internal.Session) {
	report, err := uc.Execute(ctx, internal.SyncInput{
		BestEffort: s.Config.BestEffort(),
		Progress:   progressPrinter(w),
	})
	if err != nil {
		errorColor.Fprintf(w, "sync: %v\n", explainSyncError(ctx, err, report, s.Ledger))
		return
	}
	if report.Stored > 0 {
		successColor.Fprintf(w, "[%s] stored %d commit(s)\n", time.Now().Format("15:04:05"), report.Stored)
	}
}

func purgeExpired(ctx context.Context, ledger *internal.Ledger, log logrus.FieldLogger) {
	n, err := ledger.PurgeExpired(ctx, time.Now())
	if err != nil {
		log.WithError(err).Warn("scheduled ttl purge failed")
		return
	}
	if n > 0 {
		log.WithField("purged", n).Info("purged expired ttl memory")
	}
}

// addRefWatches watches the git dir itself (for HEAD) and every directory
// under refs/heads, since branch names may contain slashes.
func addRefWatches(watcher *fsnotify.Watcher, gitDir string) error {
	if err := watcher.Add(gitDir); err != nil {
		return err
	}
	heads := filepath.Join(gitDir, "refs", "heads")
	return filepath.WalkDir(heads, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func addNewRefDir(watcher *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	_ = watcher.Add(path)
}

// isRefChange reports whether event moved HEAD or a branch. Lock files are
// written first and renamed into place, so only the final names count.
func isRefChange(event fsnotify.Event, gitDir string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	if strings.HasSuffix(event.Name, ".lock") {
		return false
	}

	name := filepath.Clean(event.Name)
	if name == filepath.Join(gitDir, "HEAD") || name == filepath.Join(gitDir, "packed-refs") {
		return true
	}
	heads := filepath.Join(gitDir, "refs", "heads") + string(filepath.Separator)
	return strings.HasPrefix(name, heads)
}
