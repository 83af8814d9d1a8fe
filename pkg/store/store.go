// Package store defines the interval store consumed by the reconciliation
// engine: a windowed read accessor over already-stored facts plus an
// insert operation for newly accepted ones.
package store

import (
	"context"

	"github.com/agentstation/utc"

	"github.com/tallyhq/tally/pkg/facts"
)

// Store is the interval store accessor.
//
// Fetch returns every stored fact whose clipped interval intersects the
// window [from, to], sorted ascending by start time. The store guarantees
// the returned facts are pairwise non-overlapping; the reconciliation
// engine relies on both properties and does not re-check them.
//
// Persist inserts a newly accepted fact. A failed Persist is fatal to the
// batch being imported: callers do not retry and do not compensate for
// facts persisted earlier in the same run.
type Store interface {
	Fetch(ctx context.Context, from, to utc.Time) ([]*facts.Fact, error)
	Persist(ctx context.Context, f *facts.Fact) error
	Close() error
}
