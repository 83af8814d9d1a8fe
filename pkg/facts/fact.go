// Package facts defines the Fact entity: a named activity occupying a
// half-open time interval [Start, End), with optional category,
// description, and tags.
//
// Facts carry their exact timestamps as parsed; sub-minute precision is
// discarded only when intervals are compared ("clipping"), so the store
// receives the original values.
package facts

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/agentstation/utc"
)

// Fact is a time-bounded activity record.
//
// End is nil only transiently, before a candidate has passed validation;
// every fact handed to the reconciliation engine or the store has End set
// and End > Start.
type Fact struct {
	Activity    string    `json:"activity" yaml:"activity"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Start       utc.Time  `json:"start" yaml:"start"`
	End         *utc.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// Clip truncates a timestamp to minute precision. All interval comparison
// and duplicate detection happens on clipped values.
func Clip(t utc.Time) utc.Time {
	return utc.New(t.Time.Truncate(time.Minute))
}

// ClippedStart returns the fact's start truncated to the minute.
func (f *Fact) ClippedStart() utc.Time {
	return Clip(f.Start)
}

// ClippedEnd returns the fact's end truncated to the minute.
// It requires End != nil.
func (f *Fact) ClippedEnd() utc.Time {
	return Clip(*f.End)
}

// Overlaps reports whether the clipped intervals of f and other intersect.
// Intervals are half-open, so facts that merely touch ([9:00,10:00) and
// [10:00,11:00)) do not overlap. Both facts must have End set.
func (f *Fact) Overlaps(other *Fact) bool {
	return f.ClippedStart().Before(other.ClippedEnd()) &&
		other.ClippedStart().Before(f.ClippedEnd())
}

// Key is the canonical identity of a fact, used for duplicate detection.
// It is a comparable value: two facts are duplicates iff their Keys are
// equal. Identity is structural over the normalized fields rather than a
// serialized string, so field contents can never collide across field
// boundaries. Tags are sorted and comma-joined inside their own field;
// tags are comma-split on input and therefore cannot themselves contain
// commas.
type Key struct {
	Activity    string
	Category    string
	Description string
	Tags        string
	Start       int64 // clipped start, unix seconds
	End         int64 // clipped end, unix seconds
}

// Key returns the canonical identity of the fact. It requires End != nil.
func (f *Fact) Key() Key {
	tags := slices.Clone(f.Tags)
	slices.Sort(tags)
	return Key{
		Activity:    f.Activity,
		Category:    f.Category,
		Description: f.Description,
		Tags:        strings.Join(tags, ","),
		Start:       f.ClippedStart().Unix(),
		End:         f.ClippedEnd().Unix(),
	}
}

// Equal reports whether f and other are duplicates under canonical
// identity. Tag order and sub-minute timestamp precision are ignored.
func (f *Fact) Equal(other *Fact) bool {
	return f.Key() == other.Key()
}

// String renders a compact human-readable form used in diagnostics.
func (f *Fact) String() string {
	var b strings.Builder
	b.WriteString(f.Activity)
	if f.Category != "" {
		fmt.Fprintf(&b, "@%s", f.Category)
	}
	if f.End != nil {
		fmt.Fprintf(&b, " %s–%s",
			f.Start.Format("2006-01-02 15:04"),
			f.End.Format("15:04"))
	} else {
		fmt.Fprintf(&b, " %s–?", f.Start.Format("2006-01-02 15:04"))
	}
	return b.String()
}
