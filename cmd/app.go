package cmd

import (
	"fmt"

	"github.com/ConfabulousDev/confab-insights/internal/anthropic"
	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/ConfabulousDev/confab-insights/internal/pipeline"
	"github.com/ConfabulousDev/confab-insights/internal/privacy"
	"github.com/ConfabulousDev/confab-insights/internal/publish"
	"github.com/ConfabulousDev/confab-insights/internal/store"
)

// app bundles what every command needs: paths, validated config and the
// record store. The index is optional; commands degrade without it.
type app struct {
	paths      config.Paths
	cfg        *config.Config
	configFile string
	store      *store.FileStore
	index      *store.Index
}

// loadApp resolves paths, loads .env and config. An invalid config is
// returned as an error before any analysis starts.
func loadApp() (*app, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(paths.EnvPath()); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	file := configPath
	if file == "" {
		file = paths.ConfigPath()
	}
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}

	return &app{
		paths:      paths,
		cfg:        cfg,
		configFile: file,
		store:      store.NewFileStore(paths.InsightsDir()),
	}, nil
}

// openIndex opens the SQLite index, logging instead of failing
func (a *app) openIndex() *store.Index {
	if a.index != nil {
		return a.index
	}
	idx, err := store.OpenIndex(a.paths.IndexPath())
	if err != nil {
		logger.Warn("insight index unavailable", "error", err)
		return nil
	}
	a.index = idx
	return idx
}

// requireIndex is openIndex for commands that cannot work without it
func (a *app) requireIndex() (*store.Index, error) {
	if idx := a.openIndex(); idx != nil {
		return idx, nil
	}
	return nil, fmt.Errorf("failed to open index at %s (try 'confab-insights reindex')", a.paths.IndexPath())
}

func (a *app) Close() {
	if a.index != nil {
		a.index.Close()
	}
}

// newPipeline wires the pipeline. Without an API key there is no
// generator and every run is metrics-only.
func (a *app) newPipeline(clientOpts ...anthropic.ClientOption) (*pipeline.Pipeline, error) {
	filter, err := privacy.NewFilter(a.cfg.Privacy)
	if err != nil {
		return nil, err
	}

	var gen *insight.Generator
	if a.cfg.APIKey != "" {
		opts := append([]anthropic.ClientOption{anthropic.WithBaseURL(a.cfg.Provider.BaseURL)}, clientOpts...)
		client := anthropic.NewClient(a.cfg.APIKey, opts...)
		provider := insight.NewAnthropicProvider(client, a.cfg.Provider.Model, a.cfg.Provider.MaxTokens)
		gen = insight.NewGenerator(provider, filter, a.cfg.SessionLearning.AnalysisTimeout())
	} else {
		logger.Debug("no provider credential, qualitative analysis disabled", "env", config.APIKeyEnv)
	}

	pub := publish.NewPublisher(
		publish.LogListener(),
		publish.NewJSONLListener(a.paths.CompletionsPath()),
	)

	return pipeline.New(pipeline.Deps{
		Config:    a.cfg,
		Store:     a.store,
		Index:     a.openIndex(),
		Generator: gen,
		Filter:    filter,
		Publisher: pub,
	})
}
