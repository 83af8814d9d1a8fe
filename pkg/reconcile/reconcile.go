// Package reconcile implements the batch reconciliation engine: it sweeps
// a sorted list of candidate facts against the sorted, non-overlapping
// facts already held by the store, classifying each candidate and handing
// accepted ones back for persistence.
//
// Both lists are sorted ascending by start time, so the engine keeps a
// single forward-moving cursor over the existing list, shared across all
// candidates. Once an existing fact is known to end at or before the
// current candidate's start it can never be relevant to a later candidate
// (later candidates start no earlier), so the cursor advances past it
// permanently. Total comparison work is therefore O(|new| + |existing|).
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/facts"
	"github.com/tallyhq/tally/pkg/normalize"
	"github.com/tallyhq/tally/pkg/store"
)

// Reconciler classifies a normalized batch against a fact store.
type Reconciler interface {
	// Reconcile processes the batch items against the store in a single
	// pass: fetch the existing window once, classify every candidate,
	// persist the accepted ones in ascending start-time order.
	//
	// Store failures are fatal and never retried; a batch with no valid
	// candidates returns the partial result with errors.ErrEmptyBatch.
	Reconcile(ctx context.Context, items []normalize.Item, st store.Store) (*Result, error)
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	sink    Sink
	tracing bool
}

// Option configures a Reconciler.
type Option func(*reconciler) error

// New creates a new Reconciler with options.
func New(opts ...Option) (Reconciler, error) {
	r := &reconciler{
		sink: NopSink{},
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// WithSink sets the diagnostic sink receiving one event per candidate.
func WithSink(sink Sink) Option {
	return func(r *reconciler) error {
		if sink == nil {
			return errors.New("sink cannot be nil")
		}
		r.sink = sink
		return nil
	}
}

// WithTracing enables recording of the cursor position after each valid
// candidate in Result.CursorTrace.
func WithTracing(enabled bool) Option {
	return func(r *reconciler) error {
		r.tracing = enabled
		return nil
	}
}

// Reconcile implements Reconciler.
func (r *reconciler) Reconcile(ctx context.Context, items []normalize.Item, st store.Store) (*Result, error) {
	started := time.Now()

	result := &Result{}
	result.Stats.Candidates = len(items)

	// Invalid records are classified up front, in input order. They carry
	// no usable interval and never touch the cursor.
	batch := make(facts.Batch, 0, len(items))
	for _, item := range items {
		if item.Valid() {
			batch = append(batch, item.Fact)
			continue
		}
		outcome := Outcome{
			Classification: classifyInvalid(item.Reason),
			Raw:            item.Raw,
			Reason:         item.Reason,
		}
		result.Outcomes = append(result.Outcomes, outcome)
		result.Stats.count(outcome.Classification)
		r.sink.Emit(Event{
			Classification: outcome.Classification,
			Detail:         item.Reason.String(),
		})
	}

	if len(batch) == 0 {
		result.Stats.Duration = time.Since(started)
		return result, errors.ErrEmptyBatch
	}

	batch.Sort()

	// Fetch the existing window once. Facts persisted during this pass are
	// deliberately not visible to later candidates in the same batch.
	from, to, _ := batch.Span()
	existing, err := st.Fetch(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetching existing facts: %w", err)
	}
	result.Stats.Existing = len(existing)

	cursor := 0
	for _, cand := range batch {
		outcome := r.classify(cand, existing, &cursor, &result.Stats.Comparisons)

		if outcome.Classification == Added {
			if err := st.Persist(ctx, cand); err != nil {
				return nil, fmt.Errorf("persisting fact %s: %w", cand, err)
			}
		}

		result.Outcomes = append(result.Outcomes, outcome)
		result.Stats.count(outcome.Classification)
		if r.tracing {
			result.CursorTrace = append(result.CursorTrace, cursor)
		}
		r.sink.Emit(Event{
			Classification: outcome.Classification,
			Candidate:      cand,
			Conflicting:    outcome.Conflicting,
		})
	}

	result.Stats.Duration = time.Since(started)
	return result, nil
}

// classify scans the existing list from the shared cursor and decides the
// candidate's terminal classification.
//
// The cursor only ever moves forward: it advances past an existing fact
// exactly when that fact ends at or before the candidate's start, which
// makes it irrelevant to every later candidate as well. On an overlap the
// cursor stays put, since a straddling existing fact may still collide
// with the next candidate.
func (r *reconciler) classify(cand *facts.Fact, existing []*facts.Fact, cursor *int, comparisons *int) Outcome {
	startNew := cand.ClippedStart()
	endNew := cand.ClippedEnd()

	for *cursor < len(existing) {
		old := existing[*cursor]
		*comparisons++

		// Candidate ends at or before this existing fact begins: the
		// existing list is sorted, so nothing further can overlap either.
		if !endNew.After(old.ClippedStart()) {
			break
		}

		// Existing fact ends at or before the candidate begins: it is
		// permanently irrelevant from here on.
		if !old.ClippedEnd().After(startNew) {
			*cursor++
			continue
		}

		// The intervals overlap. Identical content is a duplicate,
		// anything else a conflict.
		if cand.Equal(old) {
			return Outcome{Classification: SkippedDuplicate, Fact: cand, Conflicting: old}
		}
		return Outcome{Classification: SkippedOverlap, Fact: cand, Conflicting: old}
	}

	return Outcome{Classification: Added, Fact: cand}
}

// classifyInvalid maps a normalization reason to its classification.
func classifyInvalid(reason normalize.Reason) Classification {
	switch reason {
	case normalize.ReasonNoEndTime:
		return SkippedNoEnd
	case normalize.ReasonBadEndTime:
		return SkippedBadEnd
	default:
		return SkippedInvalid
	}
}
