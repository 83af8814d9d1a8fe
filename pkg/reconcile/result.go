package reconcile

import (
	"time"

	"github.com/tallyhq/tally/pkg/facts"
	"github.com/tallyhq/tally/pkg/normalize"
)

// Classification is the terminal outcome for one candidate. Every
// classification is terminal: there is no retry and no backtracking.
type Classification int

const (
	// Added: the candidate's interval is disjoint from every existing
	// fact; it was handed to the store for persistence.
	Added Classification = iota

	// SkippedDuplicate: the candidate overlaps an existing fact with
	// identical canonical identity.
	SkippedDuplicate

	// SkippedOverlap: the candidate overlaps an existing fact with
	// different content.
	SkippedOverlap

	// SkippedNoEnd: the record had no end time and was never compared.
	SkippedNoEnd

	// SkippedBadEnd: the record's end time was unparseable or not after
	// its start time; never compared.
	SkippedBadEnd

	// SkippedInvalid: the record was structurally invalid in some other
	// way (no activity name, bad start time); never compared.
	SkippedInvalid
)

// String returns the classification name used in events and reports.
func (c Classification) String() string {
	switch c {
	case Added:
		return "added"
	case SkippedDuplicate:
		return "duplicate"
	case SkippedOverlap:
		return "overlap"
	case SkippedNoEnd:
		return "no-end-time"
	case SkippedBadEnd:
		return "bad-end-time"
	case SkippedInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// MarshalText renders the classification name, so JSON and YAML reports
// carry "added"/"duplicate"/... instead of enum ordinals.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Persisted reports whether the classification means the candidate was
// handed to the store.
func (c Classification) Persisted() bool {
	return c == Added
}

// Outcome records the terminal classification of one candidate along with
// the facts involved.
type Outcome struct {
	// Classification is the terminal state of the candidate.
	Classification Classification `json:"classification" yaml:"classification"`

	// Fact is the candidate fact; nil for structurally invalid records.
	Fact *facts.Fact `json:"fact,omitempty" yaml:"fact,omitempty"`

	// Raw is the original input record, kept for diagnostics.
	Raw normalize.RawRecord `json:"-" yaml:"-"`

	// Reason is the invalidity reason for skipped-invalid outcomes.
	Reason normalize.Reason `json:"-" yaml:"-"`

	// Conflicting is the existing fact the candidate collided with, set
	// for SkippedDuplicate and SkippedOverlap.
	Conflicting *facts.Fact `json:"conflicting,omitempty" yaml:"conflicting,omitempty"`
}

// Result is the outcome of one reconciliation pass over a batch.
type Result struct {
	// Outcomes holds one entry per candidate: invalid records first in
	// input order, then valid candidates in ascending start-time order.
	Outcomes []Outcome `json:"outcomes" yaml:"outcomes"`

	// Stats summarises the pass.
	Stats Statistics `json:"stats" yaml:"stats"`

	// CursorTrace records the existing-list cursor position after each
	// valid candidate. Populated only when tracing is enabled.
	CursorTrace []int `json:"-" yaml:"-"`
}

// Statistics summarises a reconciliation pass.
type Statistics struct {
	// Candidates is the total number of input records.
	Candidates int `json:"candidates" yaml:"candidates"`

	// Existing is the number of stored facts fetched for the window.
	Existing int `json:"existing" yaml:"existing"`

	// Per-classification counts.
	Added      int `json:"added" yaml:"added"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Overlaps   int `json:"overlaps" yaml:"overlaps"`
	Invalid    int `json:"invalid" yaml:"invalid"`

	// Comparisons is the number of candidate/existing interval tests
	// performed; bounded by Candidates + Existing.
	Comparisons int `json:"comparisons" yaml:"comparisons"`

	// Duration is the wall time of the pass.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// count tallies one outcome into the statistics.
func (s *Statistics) count(c Classification) {
	switch c {
	case Added:
		s.Added++
	case SkippedDuplicate:
		s.Duplicates++
	case SkippedOverlap:
		s.Overlaps++
	default:
		s.Invalid++
	}
}
