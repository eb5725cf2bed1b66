package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode controls when qualitative (LLM) analysis runs automatically
type Mode string

const (
	// ModeAutomatic runs qualitative analysis for every session that
	// clears the metrics thresholds.
	ModeAutomatic Mode = "automatic"
	// ModeThreshold runs qualitative analysis only above the LLM thresholds.
	ModeThreshold Mode = "threshold"
	// ModeOnDemand never runs qualitative analysis without an explicit request.
	ModeOnDemand Mode = "on_demand"
)

// PrivacyLevel is the sharing scope recorded on every insight
type PrivacyLevel string

const (
	LevelSelf   PrivacyLevel = "self"
	LevelTeam   PrivacyLevel = "team"
	LevelPublic PrivacyLevel = "public"
)

// ErrInvalidConfig is matched by every configuration load failure
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError lists every problem found while loading configuration
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration in %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// Config is the validated, strongly-typed configuration surface
type Config struct {
	SessionLearning Analysis `yaml:"session_learning"`
	Privacy         Privacy  `yaml:"privacy"`
	Provider        Provider `yaml:"provider"`
	Sampler         Sampler  `yaml:"sampler"`

	// APIKey is never read from YAML, only from ANTHROPIC_API_KEY
	APIKey string `yaml:"-"`
}

// Analysis holds the gate thresholds and dispatch settings
type Analysis struct {
	MinTurnsForMetrics        int     `yaml:"min_turns_for_metrics"`
	MinDurationForMetrics     float64 `yaml:"min_duration_for_metrics"`
	MinTurnsForLLMAnalysis    int     `yaml:"min_turns_for_llm_analysis"`
	MinDurationForLLMAnalysis float64 `yaml:"min_duration_for_llm_analysis"`
	LLMAnalysisMode           Mode    `yaml:"llm_analysis_mode"`
	MaxEventsToProcess        int     `yaml:"max_events_to_process"`
	AnalysisTimeoutSeconds    int     `yaml:"analysis_timeout_seconds"`
	RunInBackground           bool    `yaml:"run_in_background"`

	// Legacy aliases for the metrics thresholds. Applied only when the
	// corresponding metrics key is absent from the file.
	MinTurnsForAnalysis *int     `yaml:"min_turns_for_analysis,omitempty"`
	MinDurationSeconds  *float64 `yaml:"min_duration_seconds,omitempty"`
}

// AnalysisTimeout returns the provider call bound as a duration
func (a Analysis) AnalysisTimeout() time.Duration {
	return time.Duration(a.AnalysisTimeoutSeconds) * time.Second
}

// Privacy controls what leaves the process and what is persisted
type Privacy struct {
	Level               PrivacyLevel `yaml:"level"`
	IncludeFilePaths    bool         `yaml:"include_file_paths"`
	IncludeCodeSnippets bool         `yaml:"include_code_snippets"`
	RedactSensitive     bool         `yaml:"redact_sensitive"`
	MaxContextTokens    int          `yaml:"max_context_tokens"`
}

// Provider configures the analysis provider client
type Provider struct {
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	MaxTokens         int    `yaml:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// Sampler configures the conversation excerpt
type Sampler struct {
	MaxChars      int `yaml:"max_chars"`
	OpeningTurns  int `yaml:"opening_turns"`
	RecentTurns   int `yaml:"recent_turns"`
	MiddleSamples int `yaml:"middle_samples"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		SessionLearning: Analysis{
			MinTurnsForMetrics:        2,
			MinDurationForMetrics:     30,
			MinTurnsForLLMAnalysis:    5,
			MinDurationForLLMAnalysis: 300,
			LLMAnalysisMode:           ModeThreshold,
			MaxEventsToProcess:        1000,
			AnalysisTimeoutSeconds:    60,
			RunInBackground:           true,
		},
		Privacy: Privacy{
			Level:               LevelSelf,
			IncludeFilePaths:    true,
			IncludeCodeSnippets: false,
			RedactSensitive:     true,
			MaxContextTokens:    50000,
		},
		Provider: Provider{
			Model:             "claude-haiku-4-5",
			BaseURL:           "https://api.anthropic.com",
			MaxTokens:         1024,
			RequestsPerMinute: 30,
		},
		Sampler: Sampler{
			MaxChars:      8000,
			OpeningTurns:  4,
			RecentTurns:   6,
			MiddleSamples: 3,
		},
	}
}

// Validate checks enumerations and numeric bounds
func (c *Config) Validate() []string {
	var problems []string
	a := c.SessionLearning

	switch a.LLMAnalysisMode {
	case ModeAutomatic, ModeThreshold, ModeOnDemand:
	default:
		problems = append(problems, fmt.Sprintf("session_learning.llm_analysis_mode: %q is not one of automatic, threshold, on_demand", a.LLMAnalysisMode))
	}
	switch c.Privacy.Level {
	case LevelSelf, LevelTeam, LevelPublic:
	default:
		problems = append(problems, fmt.Sprintf("privacy.level: %q is not one of self, team, public", c.Privacy.Level))
	}

	if a.MinTurnsForMetrics < 0 {
		problems = append(problems, "session_learning.min_turns_for_metrics must be >= 0")
	}
	if a.MinDurationForMetrics < 0 {
		problems = append(problems, "session_learning.min_duration_for_metrics must be >= 0")
	}
	if a.MinTurnsForLLMAnalysis < 0 {
		problems = append(problems, "session_learning.min_turns_for_llm_analysis must be >= 0")
	}
	if a.MinDurationForLLMAnalysis < 0 {
		problems = append(problems, "session_learning.min_duration_for_llm_analysis must be >= 0")
	}
	if a.MaxEventsToProcess <= 0 {
		problems = append(problems, "session_learning.max_events_to_process must be > 0")
	}
	if a.AnalysisTimeoutSeconds <= 0 {
		problems = append(problems, "session_learning.analysis_timeout_seconds must be > 0")
	}
	if c.Privacy.MaxContextTokens <= 0 {
		problems = append(problems, "privacy.max_context_tokens must be > 0")
	}
	if c.Sampler.MaxChars <= 0 {
		problems = append(problems, "sampler.max_chars must be > 0")
	}
	if c.Sampler.OpeningTurns < 0 || c.Sampler.RecentTurns < 0 || c.Sampler.MiddleSamples < 0 {
		problems = append(problems, "sampler turn counts must be >= 0")
	}
	if c.Provider.MaxTokens <= 0 {
		problems = append(problems, "provider.max_tokens must be > 0")
	}
	if c.Provider.RequestsPerMinute < 0 {
		problems = append(problems, "provider.requests_per_minute must be >= 0")
	}
	return problems
}
