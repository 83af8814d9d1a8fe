package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/report"
	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/logging"
	"github.com/tallyhq/tally/pkg/normalize"
	"github.com/tallyhq/tally/pkg/parse"
	"github.com/tallyhq/tally/pkg/reconcile"
)

var (
	importFormat   string
	importEncoding string
	importDryRun   bool
)

// importCmd imports a batch of facts from an export file.
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import facts from a TSV or XML export file",
	Long: `Import parses a time-tracker export file, validates each record, and
reconciles the batch against the fact database. Records whose interval is
free are added; exact duplicates and records overlapping existing facts
are skipped and reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "", "input format: tsv or xml (default: by file extension)")
	importCmd.Flags().StringVar(&importEncoding, "encoding", "utf8", "input encoding: utf8 or latin1")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "classify without persisting anything")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := logging.Ctx(ctx)
	path := args[0]

	format := parse.Format(importFormat)
	if format == "" {
		format = parse.DetectFormat(path)
	}

	raws, err := parse.File(path, format, parse.Encoding(importEncoding))
	if err != nil {
		return err
	}
	logger.Debug().
		Int("records", len(raws)).
		Str("format", string(format)).
		Str("file", path).
		Msg("parsed input file")

	items := normalize.Records(raws)

	st, err := application.Store(importDryRun)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := reconcile.New(
		reconcile.WithSink(reconcile.NewLogSink(logger)),
	)
	if err != nil {
		return err
	}

	result, err := engine.Reconcile(ctx, items, st)
	switch {
	case errors.IsEmptyBatch(err):
		fmt.Fprintln(os.Stdout, "nothing to import: no valid facts in input")
	case err != nil:
		return err
	}

	if importDryRun {
		logger.Info().Msg("dry run: nothing was persisted")
	}

	return report.Render(os.Stdout, result, report.Format(application.Config().Output))
}
