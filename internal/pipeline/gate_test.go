package pipeline

import (
	"testing"

	"github.com/ConfabulousDev/confab-insights/internal/config"
)

func testAnalysis(mode config.Mode) config.Analysis {
	a := config.Default().SessionLearning
	a.MinTurnsForMetrics = 3
	a.MinDurationForMetrics = 60
	a.MinTurnsForLLMAnalysis = 5
	a.MinDurationForLLMAnalysis = 300
	a.LLMAnalysisMode = mode
	return a
}

func TestGateDecide(t *testing.T) {
	small := Facts{TurnCount: 2, DurationSeconds: 10}
	mid := Facts{TurnCount: 4, DurationSeconds: 200}
	big := Facts{TurnCount: 5, DurationSeconds: 400}

	tests := []struct {
		name  string
		mode  config.Mode
		facts Facts
		req   Request
		want  Tier
	}{
		{"below metrics threshold", config.ModeThreshold, small, Request{Provider: true}, Skip},
		{"short duration", config.ModeThreshold, Facts{TurnCount: 10, DurationSeconds: 30}, Request{Provider: true}, Skip},
		{"already analyzed", config.ModeThreshold, big, Request{Provider: true, Existing: true}, Skip},
		{"metrics only below qualitative", config.ModeThreshold, mid, Request{Provider: true}, MetricsOnly},
		{"full above qualitative", config.ModeThreshold, big, Request{Provider: true}, Full},
		{"automatic ignores qualitative threshold", config.ModeAutomatic, mid, Request{Provider: true}, Full},
		{"automatic still needs metrics threshold", config.ModeAutomatic, small, Request{Provider: true}, Skip},
		{"on_demand mode keeps metrics", config.ModeOnDemand, big, Request{Provider: true}, MetricsOnly},
		{"no provider", config.ModeAutomatic, big, Request{}, MetricsOnly},
		{"no llm requested", config.ModeAutomatic, big, Request{Provider: true, NoLLM: true}, MetricsOnly},
		{"force llm", config.ModeOnDemand, mid, Request{Provider: true, ForceLLM: true}, Full},
		{"on-demand bypasses existing and thresholds", config.ModeOnDemand, small, Request{Provider: true, OnDemand: true, Existing: true}, Full},
		{"on-demand without provider", config.ModeThreshold, small, Request{OnDemand: true}, MetricsOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewGate(testAnalysis(tt.mode)).Decide(tt.facts, tt.req)
			if d.Tier != tt.want {
				t.Errorf("Decide = %s (%s), want %s", d.Tier, d.Reason, tt.want)
			}
			if d.Reason == "" {
				t.Error("decision has no reason")
			}
		})
	}
}

func TestGatePreCheck(t *testing.T) {
	g := NewGate(testAnalysis(config.ModeThreshold))
	if _, ok := g.PreCheck(Facts{TurnCount: 3, DurationSeconds: 60}); !ok {
		t.Error("thresholds are inclusive")
	}
	if d, ok := g.PreCheck(Facts{TurnCount: 3, DurationSeconds: 59}); ok || d.Tier != Skip {
		t.Errorf("PreCheck = %+v, %v", d, ok)
	}
}

func TestTierString(t *testing.T) {
	for tier, want := range map[Tier]string{Skip: "skip", MetricsOnly: "metrics_only", Full: "full"} {
		if tier.String() != want {
			t.Errorf("%d.String() = %s", tier, tier.String())
		}
	}
}
