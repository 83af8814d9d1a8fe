// Package memory provides an in-memory fact store. It backs tests and
// dry-run imports, where accepted facts must go somewhere without touching
// the database.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/agentstation/utc"

	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/facts"
	"github.com/tallyhq/tally/pkg/store"
)

// Option is a function that configures a memory store.
type Option func(*config) error

// WithReadOnly configures the store to reject Persist calls.
func WithReadOnly(readOnly bool) Option {
	return func(cfg *config) error {
		cfg.readOnly = readOnly
		return nil
	}
}

// WithFacts preloads the store with existing facts. The facts must be
// pairwise non-overlapping; overlapping preloads are rejected.
func WithFacts(fs ...*facts.Fact) Option {
	return func(cfg *config) error {
		cfg.preload = append(cfg.preload, fs...)
		return nil
	}
}

// config is the configuration for a memory store.
type config struct {
	readOnly bool
	preload  []*facts.Fact
}

// memoryStore implements store.Store on a sorted in-memory slice.
type memoryStore struct {
	mu       sync.RWMutex
	readOnly bool
	facts    []*facts.Fact // sorted ascending by start, non-overlapping
}

// New creates an in-memory fact store.
func New(opts ...Option) (store.Store, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	s := &memoryStore{readOnly: cfg.readOnly}
	for _, f := range cfg.preload {
		if err := s.insert(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Fetch returns stored facts whose clipped intervals intersect [from, to],
// sorted ascending by start time.
func (s *memoryStore) Fetch(_ context.Context, from, to utc.Time) ([]*facts.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := facts.Clip(from), facts.Clip(to)
	out := make([]*facts.Fact, 0, len(s.facts))
	for _, f := range s.facts {
		if f.ClippedEnd().After(lo) && !f.ClippedStart().After(hi) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Persist inserts a fact, keeping the slice sorted and non-overlapping.
func (s *memoryStore) Persist(_ context.Context, f *facts.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return errors.WrapStore("memory", "persist", errors.ErrReadOnly)
	}
	return s.insert(f)
}

// Close is a no-op for the memory store.
func (s *memoryStore) Close() error {
	return nil
}

// Len returns the number of stored facts (test helper).
func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// insert adds a fact in sorted position, rejecting overlaps. Caller holds
// the write lock (or exclusive ownership during construction).
func (s *memoryStore) insert(f *facts.Fact) error {
	if f == nil || f.End == nil {
		return errors.NewValidationError("end", nil, "fact must have an end time")
	}

	for _, existing := range s.facts {
		if existing.Overlaps(f) {
			return errors.WrapStore("memory", "persist", errors.ErrOverlapExists)
		}
	}

	idx, _ := slices.BinarySearchFunc(s.facts, f, func(a, b *facts.Fact) int {
		return a.Start.Compare(b.Start.Time)
	})
	s.facts = slices.Insert(s.facts, idx, f)
	return nil
}
