package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/metrics"
	"github.com/ConfabulousDev/confab-insights/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	fs := store.NewFileStore(filepath.Join(dir, "sessions"))
	idx, err := store.OpenIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	now := time.Now().UTC()
	records := []struct {
		id      string
		outcome insight.Outcome
		tags    []string
		age     time.Duration
	}{
		{"sess-new", insight.OutcomeSuccess, []string{"refactor"}, time.Hour},
		{"sess-old", insight.OutcomeBlocked, []string{"ci"}, 10 * 24 * time.Hour},
	}
	for _, r := range records {
		a := insight.Analysis{Summary: "did " + r.id, Outcome: r.outcome, Tags: r.tags}
		rec := insight.NewRecord(r.id, metrics.Zero(), a, config.LevelSelf, true, now.Add(-r.age))
		if _, err := fs.Save(rec); err != nil {
			t.Fatal(err)
		}
		if err := idx.Upsert(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}

	ts := httptest.NewServer(New(fs, idx).SetupRoutes())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	if code := getJSON(t, ts.URL+"/healthz", &body); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", code, body)
	}
}

func TestListInsights(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all newest first", "", []string{"sess-new", "sess-old"}},
		{"by outcome", "?outcome=blocked", []string{"sess-old"}},
		{"by tag", "?tag=refactor", []string{"sess-new"}},
		{"since", "?since=7d", []string{"sess-new"}},
		{"limit", "?limit=1", []string{"sess-new"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body listResponse
			if code := getJSON(t, ts.URL+"/api/v1/insights"+tt.query, &body); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if body.Count != len(tt.want) {
				t.Fatalf("count = %d, want %d (%+v)", body.Count, len(tt.want), body.Insights)
			}
			for i, id := range tt.want {
				if body.Insights[i].SessionID != id {
					t.Errorf("insights[%d] = %s, want %s", i, body.Insights[i].SessionID, id)
				}
			}
		})
	}
}

func TestListInsightsBadQuery(t *testing.T) {
	ts := newTestServer(t)
	for _, q := range []string{"?outcome=great", "?since=soon", "?limit=-1"} {
		if code := getJSON(t, ts.URL+"/api/v1/insights"+q, nil); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, code)
		}
	}
}

func TestGetInsight(t *testing.T) {
	ts := newTestServer(t)

	var rec insight.SessionInsight
	if code := getJSON(t, ts.URL+"/api/v1/insights/sess-new", &rec); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if rec.SessionID != "sess-new" || rec.Outcome != insight.OutcomeSuccess {
		t.Errorf("rec = %+v", rec)
	}

	if code := getJSON(t, ts.URL+"/api/v1/insights/missing", nil); code != http.StatusNotFound {
		t.Errorf("missing: status = %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/v1/insights/..", nil); code == http.StatusOK {
		t.Error("dot id was served")
	}
}

func TestRejectsForeignHost(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		host string
		want int
	}{
		{"", http.StatusOK},
		{"localhost:8765", http.StatusOK},
		{"LOCALHOST", http.StatusOK},
		{"[::1]:8765", http.StatusOK},
		{"attacker.example:8765", http.StatusForbidden},
		{"127.0.0.1.nip.io", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/insights", nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.host != "" {
				req.Host = tt.host
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("Host %q: status %d, want %d", tt.host, resp.StatusCode, tt.want)
			}
		})
	}
}

func TestCheckLoopback(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr error
	}{
		{"127.0.0.1:8765", nil},
		{"localhost:8765", nil},
		{"[::1]:8765", nil},
		{"0.0.0.0:8765", ErrNonLoopback},
		{"192.168.1.10:80", ErrNonLoopback},
		{":8765", ErrNonLoopback},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := CheckLoopback(tt.addr)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckLoopback(%q) = %v, want %v", tt.addr, err, tt.wantErr)
			}
		})
	}
	if err := CheckLoopback("nonsense"); err == nil {
		t.Error("expected error for address without port")
	}
}
