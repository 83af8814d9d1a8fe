// Package report renders the outcome of an import run for humans (table)
// or machines (json, yaml).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/reconcile"
)

// Format is an output rendering format.
type Format string

// Supported report formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Render writes the result to w in the requested format.
func Render(w io.Writer, result *reconcile.Result, format Format) error {
	switch format {
	case FormatTable, "":
		return renderTable(w, result)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return errors.NewValidationError("output", format, "unsupported report format")
	}
}

// renderTable writes a per-fact table followed by a summary line.
func renderTable(w io.Writer, result *reconcile.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "RESULT\tFACT\tNOTE")
	for _, outcome := range result.Outcomes {
		fact := "-"
		if outcome.Fact != nil {
			fact = outcome.Fact.String()
		} else if outcome.Raw.Activity != "" || outcome.Raw.Start != "" {
			fact = fmt.Sprintf("%s %s", outcome.Raw.Activity, outcome.Raw.Start)
		}

		note := ""
		switch outcome.Classification {
		case reconcile.SkippedDuplicate, reconcile.SkippedOverlap:
			if outcome.Conflicting != nil {
				note = "conflicts with " + outcome.Conflicting.String()
			}
		case reconcile.SkippedNoEnd, reconcile.SkippedBadEnd, reconcile.SkippedInvalid:
			note = outcome.Reason.String()
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\n", outcome.Classification, fact, note)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	stats := result.Stats
	_, err := fmt.Fprintf(w,
		"\n%d candidates: %d added, %d duplicates, %d overlaps, %d invalid (%d existing facts, %v)\n",
		stats.Candidates, stats.Added, stats.Duplicates, stats.Overlaps,
		stats.Invalid, stats.Existing, stats.Duration.Round(time.Millisecond))
	return err
}
