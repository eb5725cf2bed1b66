package insight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/ConfabulousDev/confab-insights/internal/metrics"
	"github.com/ConfabulousDev/confab-insights/internal/privacy"
)

var (
	ErrAnalysisTimeout   = errors.New("analysis timed out")
	ErrProvider          = errors.New("analysis provider failed")
	ErrMalformedResponse = errors.New("malformed provider response")
)

var tracer = otel.Tracer("confab-insights/insight")

// Generator produces the qualitative analysis for one session
type Generator struct {
	provider Provider
	filter   *privacy.Filter
	timeout  time.Duration
}

// NewGenerator creates a generator. Provider output is re-sanitized by
// filter before it is returned.
func NewGenerator(provider Provider, filter *privacy.Filter, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{provider: provider, filter: filter, timeout: timeout}
}

// Generate makes exactly one provider call bounded by the configured
// timeout. On any failure it returns Empty() together with an error
// wrapping ErrAnalysisTimeout, ErrProvider or ErrMalformedResponse; callers
// store the degraded analysis rather than abort.
func (g *Generator) Generate(ctx context.Context, sessionID string, m metrics.SessionMetrics, sample string) (Analysis, error) {
	ctx, span := tracer.Start(ctx, "insight.generate",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("sample.chars", len(sample)),
		))
	defer span.End()

	prompt := FitPrompt(sessionID, m, sample, g.filter.AllowsPaths(), g.filter.MaxChars())
	span.SetAttributes(attribute.Int("prompt.chars", prompt.Len()))

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	content, err := g.provider.Analyze(callCtx, prompt)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int64("generation.time_ms", elapsed.Milliseconds()))

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", ErrAnalysisTimeout, g.timeout, err)
		} else {
			err = fmt.Errorf("%w: %v", ErrProvider, err)
		}
		return g.fail(ctx, span, err)
	}

	analysis, err := parseResponse(content, g.filter.Text)
	if err != nil {
		return g.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.String("insight.outcome", string(analysis.Outcome)))
	logger.Ctx(ctx).Debug("analysis generated", "outcome", analysis.Outcome, "elapsed", elapsed)
	return analysis, nil
}

func (g *Generator) fail(ctx context.Context, span trace.Span, err error) (Analysis, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Ctx(ctx).Warn("analysis degraded", "error", err)
	return Empty(), err
}
