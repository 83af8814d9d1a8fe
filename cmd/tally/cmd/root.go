// Package cmd implements the tally command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tallyhq/tally/cmd/tally/app"
	"github.com/tallyhq/tally/pkg/logging"
)

var (
	configFile string

	verbose bool
	quiet   bool
	noColor bool
	output  string

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"

	// application is built once by setupCommand and shared by subcommands.
	application *app.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Time-tracking fact importer",
	Long: `Tally imports batches of time-tracking records from TSV or XML export
files into a local fact database, reconciling each incoming record against
the facts already stored. Records that duplicate or overlap stored facts
are skipped and reported; everything else is persisted.`,
	PersistentPreRunE: setupCommand,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute adds all child commands to the root command and runs it.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.tally.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "report format (table, json, yaml)")
	rootCmd.PersistentFlags().String("db-path", "", "fact database file (default is ~/.local/share/tally/facts.db)")

	for _, flag := range []string{"verbose", "quiet", "no-color", "output", "config"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("Failed to bind %s flag: %v", flag, err))
		}
	}
	if err := viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db-path")); err != nil {
		panic(fmt.Sprintf("Failed to bind db-path flag: %v", err))
	}
}

// setupCommand builds the shared application instance after flags are
// parsed, so flag values take precedence over config file and env vars.
func setupCommand(cmd *cobra.Command, _ []string) error {
	config, err := app.LoadConfig()
	if err != nil {
		return err
	}
	config.UpdateFromFlags(verbose, quiet, noColor, output)

	logger := app.NewLogger(config)
	logging.SetDefault(logger)

	a, err := app.New(Version, Commit, Date,
		app.WithConfig(config),
		app.WithLogger(&logger),
	)
	if err != nil {
		return err
	}

	// Subcommands pull the logger back out with logging.Ctx.
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.Logger()))

	application = a
	return nil
}
