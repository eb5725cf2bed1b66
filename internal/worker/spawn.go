package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/ConfabulousDev/confab-insights/internal/pipeline"
)

// WorkerFlag is the hidden flag carrying a signal to a spawned worker
const WorkerFlag = "--bg-worker"

// ProcessDispatcher starts a detached copy of the binary for each signal.
// Dispatch returns as soon as the process has started; the host session
// never waits for analysis.
type ProcessDispatcher struct {
	Executable string
	Args       []string // subcommand path before WorkerFlag
	Dir        string   // workers state directory

	// start is replaceable in tests
	start func(cmd *exec.Cmd) error
}

// NewProcessDispatcher dispatches to the running executable
func NewProcessDispatcher(workersDir string, args ...string) (*ProcessDispatcher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	return &ProcessDispatcher{Executable: exe, Args: args, Dir: workersDir}, nil
}

func (d *ProcessDispatcher) Dispatch(ctx context.Context, sig pipeline.Signal) error {
	if err := sig.Validate(); err != nil {
		return err
	}

	if existing, err := LoadState(d.Dir, sig.SessionID); err == nil && existing != nil && existing.IsRunning() {
		logger.Ctx(ctx).Info("worker already running", "session_id", sig.SessionID, "pid", existing.PID)
		return nil
	}

	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}

	args := append(append([]string{}, d.Args...), WorkerFlag, string(payload))
	cmd := exec.Command(d.Executable, args...)
	detach(cmd)

	// Logs go to the log file, never to the host's pipes
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	start := d.start
	if start == nil {
		start = startDetached
	}
	if err := start(cmd); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	logger.Ctx(ctx).Info("worker spawned", "session_id", sig.SessionID)
	return nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// Run executes a signal inside the worker process, keeping a state file
// for the duration of the run.
func Run(ctx context.Context, dir string, runner pipeline.Runner, sig pipeline.Signal, opts pipeline.Options) (*pipeline.Result, error) {
	state := NewState(dir, sig.SessionID)
	if err := state.Save(); err != nil {
		logger.Ctx(ctx).Warn("failed to write worker state", "error", err)
	}
	defer state.Delete()

	return runner.Run(ctx, sig, opts)
}

// DecodeSignal parses the payload passed with WorkerFlag
func DecodeSignal(payload string) (pipeline.Signal, error) {
	var sig pipeline.Signal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		return sig, fmt.Errorf("failed to parse worker payload: %w", err)
	}
	return sig, sig.Validate()
}
