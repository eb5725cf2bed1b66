package cmd

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/discovery"
	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/metrics"
	"github.com/ConfabulousDev/confab-insights/internal/pipeline"
	"github.com/ConfabulousDev/confab-insights/internal/store"
)

func testApp(t *testing.T) *app {
	t.Helper()
	t.Setenv("CONFAB_INSIGHTS_LOG_DIR", t.TempDir())
	root := t.TempDir()
	paths := config.Paths{Root: root}
	return &app{
		paths: paths,
		cfg:   config.Default(),
		store: store.NewFileStore(paths.InsightsDir()),
	}
}

type recordingDispatcher struct {
	mu      sync.Mutex
	signals []pipeline.Signal
}

func (d *recordingDispatcher) Dispatch(_ context.Context, sig pipeline.Signal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signals = append(d.signals, sig)
	return nil
}

func TestHandleSessionEnd(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		existing   bool
		wantStatus string
		wantErr    bool
	}{
		{
			name:       "claude code payload is dispatched",
			input:      `{"session_id":"abc-123","transcript_path":"/tmp/abc-123.jsonl","hook_event_name":"SessionEnd","reason":"exit"}`,
			wantStatus: "dispatched",
		},
		{
			name:       "already analyzed",
			input:      `{"session_id":"abc-123","transcript_path":"/tmp/abc-123.jsonl"}`,
			existing:   true,
			wantStatus: "already analyzed",
		},
		{
			name:       "host facts below threshold skip early",
			input:      `{"session_id":"abc-123","session_dir":"/tmp/s","turn_count":1,"started_at":"2025-06-01T10:00:00Z","ended_at":"2025-06-01T10:00:10Z"}`,
			wantStatus: "below metrics turn threshold",
		},
		{
			name:       "host facts above threshold dispatch",
			input:      `{"session_id":"abc-123","session_dir":"/tmp/s","turn_count":9,"started_at":"2025-06-01T10:00:00Z","ended_at":"2025-06-01T10:30:00Z"}`,
			wantStatus: "dispatched",
		},
		{name: "malformed json", input: `{`, wantErr: true},
		{name: "no log handle", input: `{"session_id":"abc"}`, wantErr: true},
		{name: "unsafe id", input: `{"session_id":"../etc","transcript_path":"/tmp/x.jsonl"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApp(t)
			if tt.existing {
				a.store.Save(insight.NewRecord("abc-123", metrics.Zero(), insight.Empty(), config.LevelSelf, false, time.Now()))
			}
			d := &recordingDispatcher{}

			status, err := handleSessionEnd(context.Background(), a, strings.NewReader(tt.input), d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			wantDispatched := tt.wantStatus == "dispatched"
			if got := len(d.signals) == 1; got != wantDispatched {
				t.Errorf("dispatched = %v, want %v", got, wantDispatched)
			}
		})
	}
}

type fakeRunner struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (r *fakeRunner) Run(_ context.Context, sig pipeline.Signal, _ pipeline.Options) (*pipeline.Result, error) {
	r.mu.Lock()
	r.active++
	r.maxSeen = max(r.maxSeen, r.active)
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	r.active--
	r.mu.Unlock()

	res := &pipeline.Result{SessionID: sig.SessionID, Saved: true, Decision: pipeline.Decision{Tier: pipeline.Full}}
	switch {
	case strings.HasPrefix(sig.SessionID, "skip"):
		res.Decision.Tier = pipeline.Skip
		res.Saved = false
	case strings.HasPrefix(sig.SessionID, "metrics"):
		res.Decision.Tier = pipeline.MetricsOnly
	}
	return res, nil
}

func TestRunBackfill(t *testing.T) {
	t.Setenv("CONFAB_INSIGHTS_LOG_DIR", t.TempDir())
	var sessions []discovery.SessionInfo
	for _, id := range []string{"full-1", "full-2", "full-3", "metrics-1", "skip-1", "skip-2"} {
		sessions = append(sessions, discovery.SessionInfo{SessionID: id, TranscriptPath: "/tmp/" + id + ".jsonl"})
	}

	runner := &fakeRunner{}
	tally := runBackfill(context.Background(), runner, sessions, 2)

	if tally.full != 3 || tally.metricsOnly != 1 || tally.skipped != 2 || tally.failed != 0 {
		t.Errorf("tally = %+v", tally)
	}
	if runner.maxSeen > 2 {
		t.Errorf("ran %d sessions at once, limit 2", runner.maxSeen)
	}
}

func TestPendingSessions(t *testing.T) {
	a := testApp(t)
	a.store.Save(insight.NewRecord("done", metrics.Zero(), insight.Empty(), config.LevelSelf, false, time.Now()))

	todo, done := pendingSessions(a.store, []discovery.SessionInfo{{SessionID: "done"}, {SessionID: "new"}})
	if done != 1 || len(todo) != 1 || todo[0].SessionID != "new" {
		t.Errorf("todo = %+v, done = %d", todo, done)
	}
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(input), &out, 3); got != want {
			t.Errorf("confirm(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestResolveStoredID(t *testing.T) {
	a := testApp(t)
	for _, id := range []string{"aaaa1111", "aaaa2222", "bbbb1111"} {
		a.store.Save(insight.NewRecord(id, metrics.Zero(), insight.Empty(), config.LevelSelf, false, time.Now()))
	}

	if id, err := resolveStoredID(a.store, "bbbb"); err != nil || id != "bbbb1111" {
		t.Errorf("prefix: %q, %v", id, err)
	}
	if id, err := resolveStoredID(a.store, "aaaa1111"); err != nil || id != "aaaa1111" {
		t.Errorf("exact: %q, %v", id, err)
	}
	if _, err := resolveStoredID(a.store, "aaaa"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("ambiguous: %v", err)
	}
	if _, err := resolveStoredID(a.store, "zzzz"); err == nil {
		t.Error("missing: expected error")
	}
}

func TestListFilter(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	listOutcome, listSince, listTag, listLimit = "blocked", "7d", "ci", 5
	t.Cleanup(func() { listOutcome, listSince, listTag, listLimit = "", "", "", 20 })

	f, err := listFilter(now)
	if err != nil {
		t.Fatal(err)
	}
	if f.Outcome != insight.OutcomeBlocked || f.Tag != "ci" || f.Limit != 5 || !f.Since.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("filter = %+v", f)
	}

	listOutcome = "great"
	if _, err := listFilter(now); err == nil {
		t.Error("expected error for invalid outcome")
	}
}

func TestPrintRecord(t *testing.T) {
	m := metrics.Zero()
	m.TurnCount = 15
	m.DurationSeconds = 1800
	m.TotalTokens = 125000
	m.TotalInputTokens = 100000
	m.TotalOutputTokens = 25000
	m.ToolUsage = map[string]int{"Edit": 12, "Read": 20}
	a := insight.Empty()
	a.Summary = "Refactored the config loader."
	a.Outcome = insight.OutcomeSuccess
	a.WhatWentWell = []string{"Small commits"}
	a.Tags = []string{"refactor"}
	rec := insight.NewRecord("3f2a91c0-aaaa", m, a, config.LevelSelf, true, time.Now())

	var buf bytes.Buffer
	printRecord(&buf, rec, true)
	out := buf.String()
	for _, want := range []string{
		"Refactored the config loader.",
		"30m0s over 15 turns",
		"125,000",
		"Small commits",
		"Tags: refactor",
		"Top tools:",
		"Pace: moderate",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
