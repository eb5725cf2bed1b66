package pipeline

import (
	"github.com/ConfabulousDev/confab-insights/internal/config"
)

// Tier is what the gate allows a run to do
type Tier int

const (
	Skip Tier = iota
	MetricsOnly
	Full
)

func (t Tier) String() string {
	switch t {
	case MetricsOnly:
		return "metrics_only"
	case Full:
		return "full"
	}
	return "skip"
}

// Decision is the gate's verdict with a human-readable reason
type Decision struct {
	Tier   Tier   `json:"-"`
	Reason string `json:"reason"`
}

// Facts are the session measurements the gate looks at
type Facts struct {
	TurnCount       int
	DurationSeconds float64
}

// Request describes how a run was triggered
type Request struct {
	OnDemand bool // explicit user request, synchronous
	Existing bool // a record for the session already exists
	NoLLM    bool // caller asked for metrics only
	ForceLLM bool // run qualitative analysis regardless of mode and thresholds
	Provider bool // a provider is configured
}

// Gate decides the capture tier for a session
type Gate struct {
	cfg config.Analysis
}

func NewGate(cfg config.Analysis) Gate {
	return Gate{cfg: cfg}
}

// Decide applies, in order: the already-analyzed skip (background only),
// the metrics thresholds (background only), then the qualitative tier.
// Metrics capture depends only on the metrics thresholds; the mode gates
// nothing but qualitative analysis.
func (g Gate) Decide(f Facts, r Request) Decision {
	if !r.OnDemand {
		if r.Existing {
			return Decision{Skip, "already analyzed"}
		}
		if d, ok := g.PreCheck(f); !ok {
			return d
		}
	}

	switch {
	case r.NoLLM:
		return Decision{MetricsOnly, "qualitative analysis disabled for this run"}
	case !r.Provider:
		return Decision{MetricsOnly, "no analysis provider configured"}
	case r.OnDemand, r.ForceLLM:
		return Decision{Full, "explicit request"}
	}

	switch g.cfg.LLMAnalysisMode {
	case config.ModeAutomatic:
		return Decision{Full, "automatic mode"}
	case config.ModeOnDemand:
		return Decision{MetricsOnly, "qualitative analysis runs on demand only"}
	}
	if f.TurnCount < g.cfg.MinTurnsForLLMAnalysis || f.DurationSeconds < g.cfg.MinDurationForLLMAnalysis {
		return Decision{MetricsOnly, "below qualitative threshold"}
	}
	return Decision{Full, "above qualitative threshold"}
}

// PreCheck applies only the metrics thresholds. ok is false with a Skip
// decision when the session is too small to record at all.
func (g Gate) PreCheck(f Facts) (Decision, bool) {
	if f.TurnCount < g.cfg.MinTurnsForMetrics {
		return Decision{Skip, "below metrics turn threshold"}, false
	}
	if f.DurationSeconds < g.cfg.MinDurationForMetrics {
		return Decision{Skip, "below metrics duration threshold"}, false
	}
	return Decision{}, true
}
