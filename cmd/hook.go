package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ConfabulousDev/confab-insights/internal/anthropic"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/ConfabulousDev/confab-insights/internal/pipeline"
	"github.com/ConfabulousDev/confab-insights/internal/types"
	"github.com/ConfabulousDev/confab-insights/internal/worker"
)

var workerPayload string

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Entry points invoked by the coding assistant",
}

var sessionEndCmd = &cobra.Command{
	Use:   "session-end",
	Short: "Handle a SessionEnd hook (reads hook JSON from stdin)",
	Long: `Reads the SessionEnd hook payload from stdin and hands the session to a
detached worker. The hook always answers {"continue":true} and returns
immediately; analysis never delays the end of the session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if workerPayload != "" {
			return runWorker(cmd.Context(), workerPayload)
		}

		// Always output a valid hook response, even on error
		defer func() {
			json.NewEncoder(os.Stdout).Encode(types.ContinueResponse())
		}()

		if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "session-end expects hook JSON on stdin; use 'confab-insights analyze' for manual runs")
			return nil
		}

		a, err := loadApp()
		if err != nil {
			logger.Error("hook aborted", "error", err)
			return nil
		}
		defer a.Close()

		d, err := hookDispatcher(a)
		if err != nil {
			logger.Error("hook aborted", "error", err)
			return nil
		}
		status, err := handleSessionEnd(cmd.Context(), a, os.Stdin, d)
		if err != nil {
			logger.Error("hook failed", "error", err)
			return nil
		}
		logger.Info("hook handled", "status", status)
		return nil
	},
}

// hookDispatcher picks a detached worker process, or an inline run when
// run_in_background is off.
func hookDispatcher(a *app) (pipeline.Dispatcher, error) {
	if a.cfg.SessionLearning.RunInBackground {
		return worker.NewProcessDispatcher(a.paths.WorkersDir(), "hook", "session-end")
	}
	p, err := a.newPipeline(anthropic.WithMaxAttempts(1))
	if err != nil {
		return nil, err
	}
	return inlineDispatcher{runner: p}, nil
}

// handleSessionEnd reads one signal and dispatches it unless the cheap
// checks already rule it out. It returns a short status for the log.
func handleSessionEnd(ctx context.Context, a *app, input io.Reader, d pipeline.Dispatcher) (string, error) {
	in, err := types.ReadHookInput(input)
	if err != nil {
		return "", err
	}
	sig := pipeline.SignalFromHook(in)
	if err := sig.Validate(); err != nil {
		return "", err
	}
	ctx = logger.With(ctx, "session_id", sig.SessionID)

	if a.store.Exists(sig.SessionID) {
		return "already analyzed", nil
	}
	if facts, ok := sig.Facts(); ok {
		gate := pipeline.NewGate(a.cfg.SessionLearning)
		if decision, ok := gate.PreCheck(facts); !ok {
			return decision.Reason, nil
		}
	}

	if err := d.Dispatch(ctx, sig); err != nil {
		return "", fmt.Errorf("failed to dispatch: %w", err)
	}
	return "dispatched", nil
}

// runWorker is the detached half of the hook. Its stdio is closed, so
// everything goes to the log.
func runWorker(ctx context.Context, payload string) error {
	sig, err := worker.DecodeSignal(payload)
	if err != nil {
		logger.Error("worker payload rejected", "error", err)
		return err
	}
	a, err := loadApp()
	if err != nil {
		logger.Error("worker aborted", "session_id", sig.SessionID, "error", err)
		return err
	}
	defer a.Close()

	// A single provider attempt: a retried call could outlive the user's
	// interest in this session, and backfill can pick it up later.
	p, err := a.newPipeline(anthropic.WithMaxAttempts(1))
	if err != nil {
		return err
	}
	res, err := worker.Run(ctx, a.paths.WorkersDir(), p, sig, pipeline.Options{})
	if err != nil {
		logger.Error("worker run rejected", "session_id", sig.SessionID, "error", err)
		return err
	}
	logResult(res)
	return nil
}

// inlineDispatcher runs the pipeline in the calling goroutine
type inlineDispatcher struct {
	runner pipeline.Runner
	opts   pipeline.Options
}

func (d inlineDispatcher) Dispatch(ctx context.Context, sig pipeline.Signal) error {
	res, err := d.runner.Run(ctx, sig, d.opts)
	if err != nil {
		return err
	}
	logResult(res)
	return nil
}

func logResult(res *pipeline.Result) {
	args := []any{
		"run_id", res.RunID,
		"session_id", res.SessionID,
		"tier", res.Decision.Tier.String(),
		"reason", res.Decision.Reason,
		"saved", res.Saved,
		"degraded", res.Degraded,
	}
	if res.Record != nil {
		args = append(args, "outcome", res.Record.Outcome)
	}
	if res.Err != nil {
		args = append(args, "error", res.Err, "error_kind", pipeline.Kind(res.Err))
		logger.Warn("session analysis finished with errors", args...)
		return
	}
	logger.Info("session analysis finished", args...)
}

func init() {
	sessionEndCmd.Flags().StringVar(&workerPayload, "bg-worker", "", "run as background worker with the given signal (internal)")
	sessionEndCmd.Flags().MarkHidden("bg-worker")
	hookCmd.AddCommand(sessionEndCmd)
	rootCmd.AddCommand(hookCmd)
}
