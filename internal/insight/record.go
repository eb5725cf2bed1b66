// Package insight turns sanitized session data into the qualitative half
// of an insight record and defines the persisted record itself.
package insight

import (
	"strings"
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/metrics"
)

// Outcome is the provider's verdict on a session
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeBlocked Outcome = "blocked"
	OutcomeUnknown Outcome = "unknown"
)

// Valid reports whether o is one of the four recorded outcomes
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeBlocked, OutcomeUnknown:
		return true
	}
	return false
}

// NormalizeOutcome maps provider vocabulary onto the recorded outcomes.
// "abandoned" counts as partial progress and "error" as blocked.
func NormalizeOutcome(s string) Outcome {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeSuccess, OutcomePartial, OutcomeBlocked, OutcomeUnknown:
		return o
	case "abandoned":
		return OutcomePartial
	case "error":
		return OutcomeBlocked
	}
	return OutcomeUnknown
}

// SessionInsight is the persisted record, one per session id. Field
// names are a compatibility surface for other tooling.
type SessionInsight struct {
	SessionID      string                 `json:"session_id"`
	GeneratedAt    time.Time              `json:"generated_at"`
	Metrics        metrics.SessionMetrics `json:"metrics"`
	Summary        string                 `json:"summary"`
	Outcome        Outcome                `json:"outcome"`
	WhatWentWell   []string               `json:"what_went_well"`
	AreasToImprove []string               `json:"areas_to_improve"`
	TipsForFuture  []string               `json:"tips_for_future"`
	Tags           []string               `json:"tags"`
	PrivacyLevel   config.PrivacyLevel    `json:"privacy_level"`
	HasAnalysis    bool                   `json:"has_llm_analysis"`
}

// Analysis is the qualitative result of one provider call
type Analysis struct {
	Summary        string   `json:"summary"`
	Outcome        Outcome  `json:"outcome"`
	WhatWentWell   []string `json:"what_went_well"`
	AreasToImprove []string `json:"areas_to_improve"`
	TipsForFuture  []string `json:"tips_for_future"`
	Tags           []string `json:"tags"`
}

// Empty is the analysis of a metrics-only or degraded record
func Empty() Analysis {
	return Analysis{
		Outcome:        OutcomeUnknown,
		WhatWentWell:   []string{},
		AreasToImprove: []string{},
		TipsForFuture:  []string{},
		Tags:           []string{},
	}
}

// NewRecord assembles a record. Qualitative lists are never nil so they
// serialize as [] rather than null.
func NewRecord(sessionID string, m metrics.SessionMetrics, a Analysis, level config.PrivacyLevel, analyzed bool, now time.Time) *SessionInsight {
	if m.ToolUsage == nil {
		m.ToolUsage = map[string]int{}
	}
	if !a.Outcome.Valid() {
		a.Outcome = OutcomeUnknown
	}
	return &SessionInsight{
		SessionID:      sessionID,
		GeneratedAt:    now.UTC(),
		Metrics:        m,
		Summary:        a.Summary,
		Outcome:        a.Outcome,
		WhatWentWell:   nonNil(a.WhatWentWell),
		AreasToImprove: nonNil(a.AreasToImprove),
		TipsForFuture:  nonNil(a.TipsForFuture),
		Tags:           nonNil(a.Tags),
		PrivacyLevel:   level,
		HasAnalysis:    analyzed,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
