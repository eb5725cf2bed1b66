package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the envconfig prefix for environment overrides
const EnvPrefix = "CONFAB_INSIGHTS"

// APIKeyEnv holds the provider credential
const APIKeyEnv = "ANTHROPIC_API_KEY"

// envOverrides are applied after the YAML file
type envOverrides struct {
	Mode            string `envconfig:"MODE"`
	TimeoutSeconds  int    `envconfig:"TIMEOUT_SECONDS"`
	MaxEvents       int    `envconfig:"MAX_EVENTS"`
	RunInBackground string `envconfig:"RUN_IN_BACKGROUND"`
	PrivacyLevel    string `envconfig:"PRIVACY_LEVEL"`
	Model           string `envconfig:"MODEL"`
	BaseURL         string `envconfig:"BASE_URL"`
}

// Load reads configuration from path (defaults when the file is missing),
// applies environment overrides and validates the result. Every failure
// wraps ErrInvalidConfig so callers can reject it before any analysis starts.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decodeYAML(data, cfg); err != nil {
				return nil, &ValidationError{Source: path, Problems: []string{err.Error()}}
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, &ValidationError{Source: "environment", Problems: []string{err.Error()}}
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		source := path
		if source == "" {
			source = "defaults"
		}
		return nil, &ValidationError{Source: source, Problems: problems}
	}
	return cfg, nil
}

// decodeYAML decodes strictly, rejecting unknown keys, then maps legacy
// aliases onto the metrics thresholds.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	present := raw["session_learning"]

	a := &cfg.SessionLearning
	if a.MinTurnsForAnalysis != nil {
		if _, ok := present["min_turns_for_metrics"]; !ok {
			a.MinTurnsForMetrics = *a.MinTurnsForAnalysis
		}
	}
	if a.MinDurationSeconds != nil {
		if _, ok := present["min_duration_for_metrics"]; !ok {
			a.MinDurationForMetrics = *a.MinDurationSeconds
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	if env.Mode != "" {
		cfg.SessionLearning.LLMAnalysisMode = Mode(env.Mode)
	}
	if env.TimeoutSeconds != 0 {
		cfg.SessionLearning.AnalysisTimeoutSeconds = env.TimeoutSeconds
	}
	if env.MaxEvents != 0 {
		cfg.SessionLearning.MaxEventsToProcess = env.MaxEvents
	}
	if env.RunInBackground != "" {
		bg, err := strconv.ParseBool(env.RunInBackground)
		if err != nil {
			return fmt.Errorf("%s_RUN_IN_BACKGROUND: %w", EnvPrefix, err)
		}
		cfg.SessionLearning.RunInBackground = bg
	}
	if env.PrivacyLevel != "" {
		cfg.Privacy.Level = PrivacyLevel(env.PrivacyLevel)
	}
	if env.Model != "" {
		cfg.Provider.Model = env.Model
	}
	if env.BaseURL != "" {
		cfg.Provider.BaseURL = env.BaseURL
	}

	cfg.APIKey = os.Getenv(APIKeyEnv)
	return nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables that are already set are left untouched. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Marshal renders the effective configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
