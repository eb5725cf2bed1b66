package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/ConfabulousDev/confab-insights/internal/pipeline"
)

func TestStateLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "workers")
	s := NewState(dir, "sess-1")
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadState(dir, "sess-1")
	if err != nil || loaded == nil {
		t.Fatalf("LoadState = %v, %v", loaded, err)
	}
	if loaded.PID != os.Getpid() || !loaded.IsRunning() {
		t.Errorf("loaded = %+v", loaded)
	}

	if err := loaded.Delete(); err != nil {
		t.Fatal(err)
	}
	if s, err := LoadState(dir, "sess-1"); s != nil || err != nil {
		t.Errorf("after delete: %v, %v", s, err)
	}
	if err := loaded.Delete(); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestListPrunesDeadWorkers(t *testing.T) {
	dir := t.TempDir()
	live := NewState(dir, "live")
	live.Save()

	dead := NewState(dir, "dead")
	dead.PID = -1
	dead.Save()

	os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{"), 0600)

	states, err := List(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 1 || states[0].SessionID != "live" {
		t.Errorf("states = %+v", states)
	}
	if _, err := os.Stat(filepath.Join(dir, "dead.json")); !errors.Is(err, os.ErrNotExist) {
		t.Error("dead worker state was not pruned")
	}

	if states, err := List(filepath.Join(dir, "missing"), false); err != nil || states != nil {
		t.Errorf("missing dir: %v, %v", states, err)
	}
}

func TestProcessDispatcher(t *testing.T) {
	dir := t.TempDir()
	var started *exec.Cmd
	d := &ProcessDispatcher{
		Executable: "/usr/local/bin/confab-insights",
		Args:       []string{"hook", "session-end"},
		Dir:        dir,
		start: func(cmd *exec.Cmd) error {
			started = cmd
			return nil
		},
	}

	sig := pipeline.Signal{SessionID: "sess-1", TranscriptPath: "/tmp/t.jsonl", TurnCount: 3}
	if err := d.Dispatch(context.Background(), sig); err != nil {
		t.Fatal(err)
	}
	if started == nil {
		t.Fatal("process was not started")
	}
	args := started.Args
	if len(args) != 5 || args[1] != "hook" || args[2] != "session-end" || args[3] != WorkerFlag {
		t.Fatalf("args = %v", args)
	}
	decoded, err := DecodeSignal(args[4])
	if err != nil {
		t.Fatal(err)
	}
	if decoded.SessionID != "sess-1" || decoded.TurnCount != 3 {
		t.Errorf("decoded = %+v", decoded)
	}
	if started.SysProcAttr == nil {
		t.Error("worker is not detached")
	}

	if err := d.Dispatch(context.Background(), pipeline.Signal{SessionID: "x"}); !errors.Is(err, pipeline.ErrInvalidSignal) {
		t.Errorf("invalid signal: %v", err)
	}
}

func TestProcessDispatcherSkipsRunningWorker(t *testing.T) {
	dir := t.TempDir()
	NewState(dir, "busy").Save()

	calls := 0
	d := &ProcessDispatcher{Executable: "x", Dir: dir, start: func(*exec.Cmd) error { calls++; return nil }}
	if err := d.Dispatch(context.Background(), pipeline.Signal{SessionID: "busy", SessionDir: "/tmp"}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Error("spawned a second worker for the same session")
	}
}

type stubRunner struct {
	dir     string
	sawFile bool
}

func (r *stubRunner) Run(_ context.Context, sig pipeline.Signal, _ pipeline.Options) (*pipeline.Result, error) {
	_, err := os.Stat(filepath.Join(r.dir, sig.SessionID+".json"))
	r.sawFile = err == nil
	return &pipeline.Result{SessionID: sig.SessionID}, nil
}

func TestRunKeepsStateDuringRun(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{dir: dir}

	res, err := Run(context.Background(), dir, runner, pipeline.Signal{SessionID: "s"}, pipeline.Options{})
	if err != nil || res.SessionID != "s" {
		t.Fatalf("Run = %+v, %v", res, err)
	}
	if !runner.sawFile {
		t.Error("state file missing while running")
	}
	if _, err := os.Stat(filepath.Join(dir, "s.json")); !errors.Is(err, os.ErrNotExist) {
		t.Error("state file left after run")
	}
}

func TestDecodeSignalRejectsGarbage(t *testing.T) {
	if _, err := DecodeSignal("not json"); err == nil {
		t.Error("expected error")
	}
	payload, _ := json.Marshal(pipeline.Signal{SessionID: "ok"})
	if _, err := DecodeSignal(string(payload)); !errors.Is(err, pipeline.ErrInvalidSignal) {
		t.Errorf("err = %v", err)
	}
}
