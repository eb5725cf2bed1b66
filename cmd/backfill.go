package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/anthropic"
	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/discovery"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/ConfabulousDev/confab-insights/internal/pipeline"
	"github.com/ConfabulousDev/confab-insights/internal/store"
)

var (
	backfillSince       string
	backfillDryRun      bool
	backfillYes         bool
	backfillConcurrency int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Analyze historical sessions from ~/.claude that have no record yet",
	Long: `Scans ~/.claude/projects/ for session transcripts without an insight record
and runs the pipeline over each one. Sessions go through the same gate as the
session-end hook. Provider calls are rate limited by provider.requests_per_minute.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		since, err := store.ParseSince(backfillSince, time.Now())
		if err != nil {
			return err
		}
		projects, err := config.GetProjectsDir()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Scanning %s...\n", projects)
		sessions, err := discovery.Scan(projects)
		if err != nil {
			return fmt.Errorf("failed to scan for sessions: %w", err)
		}
		todo, done := pendingSessions(a.store, discovery.Since(sessions, since))
		fmt.Fprintf(out, "Found %d session(s): %d already analyzed, %d to analyze\n", len(todo)+done, done, len(todo))

		if len(todo) == 0 {
			fmt.Fprintln(out, "Nothing to do.")
			return nil
		}
		if backfillDryRun {
			for _, s := range todo {
				fmt.Fprintf(out, "  %s  %s  %s\n", shortID(s.SessionID), humanize.Time(s.ModTime), s.ProjectPath)
			}
			return nil
		}
		if !backfillYes && !confirm(os.Stdin, out, len(todo)) {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}

		p, err := a.newPipeline(anthropic.WithRateLimit(a.cfg.Provider.RequestsPerMinute))
		if err != nil {
			return err
		}
		tally := runBackfill(cmd.Context(), p, todo, backfillConcurrency)
		fmt.Fprintf(out, "Analyzed %d, metrics only %d, skipped %d, failed %d.\n",
			tally.full, tally.metricsOnly, tally.skipped, tally.failed)
		return nil
	},
}

// pendingSessions drops sessions that already have a record
func pendingSessions(fs *store.FileStore, sessions []discovery.SessionInfo) (todo []discovery.SessionInfo, done int) {
	for _, s := range sessions {
		if fs.Exists(s.SessionID) {
			done++
			continue
		}
		todo = append(todo, s)
	}
	return todo, done
}

func confirm(in io.Reader, out io.Writer, n int) bool {
	fmt.Fprintf(out, "Analyze %d session(s)? [y/N] ", n)
	reader := bufio.NewReader(in)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

type backfillTally struct {
	mu sync.Mutex

	full, metricsOnly, skipped, failed int
}

func (t *backfillTally) add(res *pipeline.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case res.Decision.Tier == pipeline.Skip:
		t.skipped++
	case !res.Saved:
		t.failed++
	case res.Degraded || res.Decision.Tier == pipeline.MetricsOnly:
		t.metricsOnly++
	default:
		t.full++
	}
}

// limitedRunner bounds concurrent runs; the release is deferred so a
// panicking run still frees its slot.
type limitedRunner struct {
	runner pipeline.Runner
	sem    chan struct{}
}

func (l limitedRunner) Run(ctx context.Context, sig pipeline.Signal, opts pipeline.Options) (*pipeline.Result, error) {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	return l.runner.Run(ctx, sig, opts)
}

func runBackfill(ctx context.Context, runner pipeline.Runner, sessions []discovery.SessionInfo, concurrency int) *backfillTally {
	if concurrency < 1 {
		concurrency = 1
	}
	tally := &backfillTally{}
	d := pipeline.NewGoroutineDispatcher(limitedRunner{runner: runner, sem: make(chan struct{}, concurrency)}, pipeline.Options{})
	d.OnDone = func(res *pipeline.Result) {
		logResult(res)
		tally.add(res)
	}

	for _, s := range sessions {
		sig := pipeline.Signal{SessionID: s.SessionID, TranscriptPath: s.TranscriptPath, Reason: "backfill"}
		if err := d.Dispatch(ctx, sig); err != nil {
			logger.Warn("backfill skipped session", "session_id", s.SessionID, "error", err)
			tally.mu.Lock()
			tally.failed++
			tally.mu.Unlock()
		}
	}
	d.Wait()
	return tally
}

func init() {
	f := backfillCmd.Flags()
	f.StringVar(&backfillSince, "since", "", "only sessions modified since (7d, 2025-06-01)")
	f.BoolVar(&backfillDryRun, "dry-run", false, "list the sessions that would be analyzed")
	f.BoolVarP(&backfillYes, "yes", "y", false, "do not ask for confirmation")
	f.IntVar(&backfillConcurrency, "concurrency", 4, "sessions analyzed in parallel")
	rootCmd.AddCommand(backfillCmd)
}
