package facts

import (
	"slices"

	"github.com/agentstation/utc"
)

// Batch is an ordered sequence of candidate facts. Reconciliation requires
// the batch sorted ascending by start time; relative order of facts with
// equal starts is not significant.
type Batch []*Fact

// Sort orders the batch ascending by exact (unclipped) start time.
// Truncation is monotonic, so this order also holds for clipped starts.
func (b Batch) Sort() {
	slices.SortStableFunc(b, func(a, c *Fact) int {
		return a.Start.Compare(c.Start.Time)
	})
}

// Span returns the smallest window [from, to] covering every fact in the
// batch, suitable as a store fetch window. Facts without an end time
// contribute only their start. ok is false for an empty batch.
func (b Batch) Span() (from, to utc.Time, ok bool) {
	if len(b) == 0 {
		return utc.Time{}, utc.Time{}, false
	}
	from = b[0].Start
	to = b[0].Start
	for _, f := range b {
		if f.Start.Before(from) {
			from = f.Start
		}
		if f.Start.After(to) {
			to = f.Start
		}
		if f.End != nil && f.End.After(to) {
			to = *f.End
		}
	}
	return from, to, true
}
