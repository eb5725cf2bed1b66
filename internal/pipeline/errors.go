package pipeline

import (
	"errors"

	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/store"
)

// ErrInvalidSignal is the only error Run returns; every other failure is
// reported on the Result.
var ErrInvalidSignal = errors.New("invalid session signal")

// Kind names the failure class of err for logs, spans and counters
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, eventlog.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, insight.ErrAnalysisTimeout):
		return "analysis_timeout"
	case errors.Is(err, insight.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, insight.ErrProvider):
		return "provider_error"
	case errors.Is(err, store.ErrWriteFailure):
		return "storage_write_failure"
	case errors.Is(err, ErrInvalidSignal):
		return "invalid_signal"
	}
	return "internal"
}
