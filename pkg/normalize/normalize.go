// Package normalize converts raw parsed input records into Fact values,
// filtering structurally invalid ones. It is a pure transform: no I/O, no
// logging, no ordering assumptions on the input.
package normalize

import (
	"strings"

	"github.com/agentstation/utc"

	"github.com/tallyhq/tally/pkg/facts"
)

// RawRecord is one record as produced by an input parser. All fields are
// raw strings; only Activity and Start are required to be present.
type RawRecord struct {
	Activity    string
	Start       string
	End         string // empty means the record never ended
	Category    string
	Description string
	Tags        string // comma-separated
}

// Reason classifies why a record could not become a valid fact.
type Reason int

// Invalidity reasons. Records carrying any of these are never compared
// against existing facts and never persisted.
const (
	// ReasonNone marks a valid item.
	ReasonNone Reason = iota

	// ReasonNoEndTime: the end time field is empty or absent.
	ReasonNoEndTime

	// ReasonBadEndTime: the end time is present but unusable, either
	// unparseable or at or before the start time (compared on exact
	// parsed values, not clipped ones).
	ReasonBadEndTime

	// ReasonNoActivity: the activity name is empty.
	ReasonNoActivity

	// ReasonBadStartTime: the start time is empty or unparseable.
	ReasonBadStartTime
)

// String returns the reason name used in diagnostics and reports.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "valid"
	case ReasonNoEndTime:
		return "no end time"
	case ReasonBadEndTime:
		return "bad end time"
	case ReasonNoActivity:
		return "no activity name"
	case ReasonBadStartTime:
		return "bad start time"
	default:
		return "unknown"
	}
}

// Item is one classified record: either a valid fact or an invalid record
// with its reason. Raw is kept for diagnostics either way.
type Item struct {
	Fact   *facts.Fact
	Reason Reason
	Raw    RawRecord
}

// Valid reports whether the item carries a usable fact.
func (it Item) Valid() bool {
	return it.Reason == ReasonNone
}

// timeLayouts are the accepted timestamp formats, tried in order.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05Z07:00",
}

// parseTime parses an ISO-8601-like timestamp into UTC.
func parseTime(s string) (utc.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return utc.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := utc.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return utc.Time{}, false
}

// splitTags splits a comma-separated tag string, trimming whitespace and
// dropping empties. Input order is preserved for display; equality
// comparison sorts its own copy.
func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// Record converts a single raw record into a classified item. Exact
// timestamps are preserved on the fact; clipping happens only when
// intervals are compared.
func Record(raw RawRecord) Item {
	if strings.TrimSpace(raw.Activity) == "" {
		return Item{Reason: ReasonNoActivity, Raw: raw}
	}

	start, ok := parseTime(raw.Start)
	if !ok {
		return Item{Reason: ReasonBadStartTime, Raw: raw}
	}

	if strings.TrimSpace(raw.End) == "" {
		return Item{Reason: ReasonNoEndTime, Raw: raw}
	}

	end, ok := parseTime(raw.End)
	if !ok {
		return Item{Reason: ReasonBadEndTime, Raw: raw}
	}
	if !end.After(start) {
		return Item{Reason: ReasonBadEndTime, Raw: raw}
	}

	return Item{
		Fact: &facts.Fact{
			Activity:    strings.TrimSpace(raw.Activity),
			Category:    strings.TrimSpace(raw.Category),
			Description: strings.TrimSpace(raw.Description),
			Tags:        splitTags(raw.Tags),
			Start:       start,
			End:         &end,
		},
		Raw: raw,
	}
}

// Records converts a sequence of raw records into classified items,
// preserving input order. The caller sorts the valid facts before
// reconciliation; no ordering is assumed here.
func Records(raws []RawRecord) []Item {
	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		items = append(items, Record(raw))
	}
	return items
}
