package store

import (
	"context"

	"github.com/agentstation/utc"

	"github.com/tallyhq/tally/pkg/facts"
)

// dryRun wraps a Store, delegating reads and swallowing writes. It lets an
// import run classify candidates against the real stored facts without
// persisting anything.
type dryRun struct {
	inner Store
}

// DryRun returns a Store whose Persist always succeeds without writing.
func DryRun(inner Store) Store {
	return &dryRun{inner: inner}
}

// Fetch delegates to the wrapped store.
func (d *dryRun) Fetch(ctx context.Context, from, to utc.Time) ([]*facts.Fact, error) {
	return d.inner.Fetch(ctx, from, to)
}

// Persist discards the fact.
func (d *dryRun) Persist(context.Context, *facts.Fact) error {
	return nil
}

// Close closes the wrapped store.
func (d *dryRun) Close() error {
	return d.inner.Close()
}
