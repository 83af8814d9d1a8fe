package reconcile

import (
	"github.com/rs/zerolog"

	"github.com/tallyhq/tally/pkg/facts"
)

// Event is one diagnostic emission per candidate: its terminal
// classification and, where relevant, the facts involved.
type Event struct {
	Classification Classification
	Candidate      *facts.Fact // nil for structurally invalid records
	Conflicting    *facts.Fact // set for duplicate and overlap outcomes
	Detail         string      // invalidity reason for skipped-invalid events
}

// Sink consumes classification events. The engine emits exactly one event
// per candidate; sinks must not block for long, since emission happens on
// the reconciliation path.
type Sink interface {
	Emit(event Event)
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}

// LogSink writes events to a zerolog logger, one line per candidate.
type LogSink struct {
	Logger *zerolog.Logger
}

// NewLogSink creates a sink writing to the given logger.
func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(event Event) {
	if s.Logger == nil {
		return
	}

	var evt *zerolog.Event
	switch event.Classification {
	case Added:
		evt = s.Logger.Info()
	case SkippedDuplicate:
		evt = s.Logger.Debug()
	default:
		evt = s.Logger.Warn()
	}

	evt = evt.Str("classification", event.Classification.String())
	if event.Candidate != nil {
		evt = evt.Str("fact", event.Candidate.String())
	}
	if event.Conflicting != nil {
		evt = evt.Str("conflicting", event.Conflicting.String())
	}
	if event.Detail != "" {
		evt = evt.Str("detail", event.Detail)
	}
	evt.Msg("fact classified")
}
