// Package pipeline runs the ordered analysis stages for one session:
// extract, gate, sample, filter, generate, store, publish.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/ConfabulousDev/confab-insights/internal/metrics"
	"github.com/ConfabulousDev/confab-insights/internal/privacy"
	"github.com/ConfabulousDev/confab-insights/internal/publish"
	"github.com/ConfabulousDev/confab-insights/internal/sampler"
	"github.com/ConfabulousDev/confab-insights/internal/store"
)

var (
	tracer = otel.Tracer("confab-insights/pipeline")
	meter  = otel.Meter("confab-insights/pipeline")
)

// Deps are the collaborators of a pipeline. Index, Generator and
// Publisher are optional.
type Deps struct {
	Config    *config.Config
	Store     *store.FileStore
	Index     *store.Index
	Generator *insight.Generator
	Filter    *privacy.Filter
	Publisher *publish.Publisher
	Now       func() time.Time
}

// Pipeline analyzes sessions. It holds no per-run state and is safe for
// concurrent runs.
type Pipeline struct {
	cfg       *config.Config
	gate      Gate
	store     *store.FileStore
	index     *store.Index
	generator *insight.Generator
	filter    *privacy.Filter
	publisher *publish.Publisher
	now       func() time.Time

	decisions metric.Int64Counter
	degraded  metric.Int64Counter
}

// New builds a pipeline. A nil Filter is built from the privacy config.
func New(d Deps) (*Pipeline, error) {
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if d.Filter == nil {
		f, err := privacy.NewFilter(d.Config.Privacy)
		if err != nil {
			return nil, err
		}
		d.Filter = f
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	decisions, err := meter.Int64Counter("insights.gate.decisions",
		metric.WithDescription("Gate decisions by tier"))
	if err != nil {
		return nil, err
	}
	degraded, err := meter.Int64Counter("insights.runs.degraded",
		metric.WithDescription("Runs that stored a degraded record"))
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:       d.Config,
		gate:      NewGate(d.Config.SessionLearning),
		store:     d.Store,
		index:     d.Index,
		generator: d.Generator,
		filter:    d.Filter,
		publisher: d.Publisher,
		now:       d.Now,
		decisions: decisions,
		degraded:  degraded,
	}, nil
}

// Gate returns the pipeline's gate
func (p *Pipeline) Gate() Gate { return p.gate }

// Store returns the record store
func (p *Pipeline) Store() *store.FileStore { return p.store }

// HasProvider reports whether qualitative analysis is possible
func (p *Pipeline) HasProvider() bool { return p.generator != nil }

// Options select how a run behaves
type Options struct {
	OnDemand      bool // synchronous request; no already-analyzed or metrics gating
	Save          bool // persist an on-demand result
	ForceLLM      bool
	NoLLM         bool
	HeuristicTips bool // fill tips_for_future from metrics when there is no analysis
}

// Result describes one run. Err carries a degraded or failed stage; it
// never means the run itself was aborted by the pipeline.
type Result struct {
	RunID      string
	SessionID  string
	Decision   Decision
	Record     *insight.SessionInsight
	Path       string
	Saved      bool
	Published  int
	Degraded   bool
	Truncated  bool
	Redactions map[string]int
	Err        error
}

// run is the mutable state threaded through the stages of one run
type run struct {
	sig    Signal
	opts   Options
	src    *eventlog.Source
	result *Result

	metrics   metrics.SessionMetrics
	sample    string
	sanitized privacy.Sanitized
	analysis  insight.Analysis
	analyzed  bool
}

type stage struct {
	name string
	fn   func(ctx context.Context, r *run) (stop bool)
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{"extract", p.extract},
		{"gate", p.decide},
		{"sample", p.sampleConversation},
		{"filter", p.sanitize},
		{"generate", p.generate},
		{"store", p.persist},
		{"publish", p.notify},
	}
}

// Run executes the stages in order. The only returned error is
// ErrInvalidSignal; all runtime failures degrade and are reported on the
// Result.
func (p *Pipeline) Run(ctx context.Context, sig Signal, opts Options) (*Result, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString(), SessionID: sig.SessionID}
	ctx = logger.With(ctx, "run_id", res.RunID, "session_id", sig.SessionID)
	log := logger.Ctx(ctx)

	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("session.id", sig.SessionID),
			attribute.String("run.id", res.RunID),
			attribute.Bool("run.on_demand", opts.OnDemand),
		))
	defer span.End()

	start := time.Now()
	r := &run{sig: sig, opts: opts, src: sig.Source(), result: res}
	for _, st := range p.stages() {
		stageCtx, stageSpan := tracer.Start(ctx, "pipeline."+st.name)
		stop := st.fn(stageCtx, r)
		stageSpan.End()
		if stop {
			break
		}
	}

	span.SetAttributes(attribute.String("gate.tier", res.Decision.Tier.String()))
	if res.Record != nil {
		span.SetAttributes(attribute.String("insight.outcome", string(res.Record.Outcome)))
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	if res.Degraded {
		p.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", Kind(res.Err))))
	}

	log.Info("pipeline run finished",
		"tier", res.Decision.Tier.String(),
		"reason", res.Decision.Reason,
		"saved", res.Saved,
		"degraded", res.Degraded,
		"error_kind", Kind(res.Err),
		"elapsed", time.Since(start))
	return res, nil
}

// extract reads the bounded event log. A missing log yields zero-filled
// metrics carrying only the host's hints.
func (p *Pipeline) extract(ctx context.Context, r *run) bool {
	hints := r.sig.Hints(r.src.Metadata)

	reader, err := r.src.Events(p.cfg.SessionLearning.MaxEventsToProcess)
	if err != nil {
		logger.Ctx(ctx).Warn("event log unavailable, using zero-filled metrics", "error", err)
		r.metrics = metrics.Extract(emptySource{}, hints)
		return false
	}
	defer reader.Close()

	r.metrics = metrics.Extract(reader, hints)
	r.result.Truncated = reader.Truncated()
	if err := reader.Err(); err != nil {
		logger.Ctx(ctx).Warn("event log read stopped early", "error", err, "processed", reader.Processed())
	}
	if reader.Truncated() {
		logger.Ctx(ctx).Debug("event cap reached", "max_events", p.cfg.SessionLearning.MaxEventsToProcess)
	}
	return false
}

func (p *Pipeline) decide(ctx context.Context, r *run) bool {
	req := Request{
		OnDemand: r.opts.OnDemand,
		NoLLM:    r.opts.NoLLM,
		ForceLLM: r.opts.ForceLLM,
		Provider: p.generator != nil,
	}
	if !r.opts.OnDemand {
		req.Existing = p.store.Exists(r.sig.SessionID)
	}

	d := p.gate.Decide(Facts{TurnCount: r.metrics.TurnCount, DurationSeconds: r.metrics.DurationSeconds}, req)
	r.result.Decision = d
	p.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", d.Tier.String())))
	logger.Ctx(ctx).Debug("gate decision", "tier", d.Tier.String(), "reason", d.Reason,
		"turns", r.metrics.TurnCount, "duration_seconds", r.metrics.DurationSeconds)
	return d.Tier == Skip
}

// sampleConversation builds the excerpt. Metrics-only runs never send the
// excerpt anywhere, so the transcript is not read for them.
func (p *Pipeline) sampleConversation(ctx context.Context, r *run) bool {
	if r.result.Decision.Tier != Full {
		return false
	}
	turns, err := eventlog.LoadTranscript(r.src)
	if err != nil {
		logger.Ctx(ctx).Warn("transcript unavailable", "error", err)
	}
	sc := p.cfg.Sampler
	r.sample = sampler.Sample(turns, sampler.Options{
		MaxChars:      sc.MaxChars,
		OpeningTurns:  sc.OpeningTurns,
		RecentTurns:   sc.RecentTurns,
		MiddleSamples: sc.MiddleSamples,
	})
	return false
}

// sanitize always runs, whatever the tier, so nothing reaches the
// provider or the disk unfiltered.
func (p *Pipeline) sanitize(ctx context.Context, r *run) bool {
	r.sanitized = p.filter.Apply(r.metrics, r.sample)
	r.result.Redactions = r.sanitized.Redactions
	return false
}

func (p *Pipeline) generate(ctx context.Context, r *run) bool {
	r.analysis = insight.Empty()
	if r.result.Decision.Tier == Full {
		a, err := p.generator.Generate(ctx, r.sig.SessionID, r.sanitized.Metrics, r.sanitized.Sample)
		r.analysis = a
		if err != nil {
			r.result.Degraded = true
			r.result.Err = err
		} else {
			r.analyzed = true
		}
	}
	if !r.analyzed && r.opts.HeuristicTips {
		r.analysis.TipsForFuture = p.filter.Texts(insight.Tips(r.sanitized.Metrics))
	}

	r.result.Record = insight.NewRecord(r.sig.SessionID, r.sanitized.Metrics, r.analysis,
		p.filter.Level(), r.analyzed, p.now())
	return false
}

// persist writes the record. On-demand results are kept in memory unless
// the caller asked to save. A failed write stops the run: nothing is
// published for a record that does not exist.
func (p *Pipeline) persist(ctx context.Context, r *run) bool {
	if r.opts.OnDemand && !r.opts.Save {
		return true
	}

	path, err := p.store.Save(r.result.Record)
	if err != nil {
		logger.Ctx(ctx).Error("failed to store insight", "error", err)
		r.result.Err = errors.Join(r.result.Err, err)
		return true
	}
	r.result.Path = path
	r.result.Saved = true

	if p.index != nil {
		if err := p.index.Upsert(ctx, r.result.Record); err != nil {
			logger.Ctx(ctx).Warn("failed to index insight", "error", err)
		}
	}
	return false
}

func (p *Pipeline) notify(ctx context.Context, r *run) bool {
	if p.publisher == nil {
		return true
	}
	r.result.Published = p.publisher.Publish(ctx, publish.NewNotification(r.result.Record, p.now()))
	return true
}

type emptySource struct{}

func (emptySource) Next() (eventlog.Event, bool) { return eventlog.Event{}, false }
