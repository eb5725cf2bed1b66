package publish

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/metrics"
)

type recorder struct {
	got []Notification
}

func (r *recorder) Notify(_ context.Context, n Notification) error {
	r.got = append(r.got, n)
	return nil
}

func testRecord() *insight.SessionInsight {
	a := insight.Empty()
	a.Outcome = insight.OutcomeSuccess
	a.Tags = []string{"go"}
	return insight.NewRecord("sess-1", metrics.Zero(), a, config.LevelSelf, true, time.Now())
}

func TestPublishNoListeners(t *testing.T) {
	p := NewPublisher()
	if n := p.Publish(context.Background(), NewNotification(testRecord(), time.Now())); n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
}

func TestPublishDeliversToEveryListener(t *testing.T) {
	first, last := &recorder{}, &recorder{}
	p := NewPublisher(first)
	p.Subscribe(ListenerFunc(func(context.Context, Notification) error { return errors.New("nope") }))
	p.Subscribe(ListenerFunc(func(context.Context, Notification) error { panic("boom") }))
	p.Subscribe(last)

	delivered := p.Publish(context.Background(), NewNotification(testRecord(), time.Now()))
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if len(first.got) != 1 || len(last.got) != 1 {
		t.Fatalf("first=%d last=%d", len(first.got), len(last.got))
	}
	n := last.got[0]
	if n.Event != EventName || n.SessionID != "sess-1" || n.Outcome != insight.OutcomeSuccess || len(n.Tags) != 1 {
		t.Errorf("unexpected notification: %+v", n)
	}
	if p.Len() != 4 {
		t.Errorf("Len = %d", p.Len())
	}
}

func TestJSONLListener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "completions.jsonl")
	l := NewJSONLListener(path)

	for i := 0; i < 2; i++ {
		if err := l.Notify(context.Background(), NewNotification(testRecord(), time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var n Notification
		if err := json.Unmarshal(scanner.Bytes(), &n); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if n.SessionID != "sess-1" {
			t.Errorf("session_id = %s", n.SessionID)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestNewNotificationNilTags(t *testing.T) {
	rec := testRecord()
	rec.Tags = nil
	if n := NewNotification(rec, time.Now()); n.Tags == nil {
		t.Error("tags should never be nil")
	}
}
