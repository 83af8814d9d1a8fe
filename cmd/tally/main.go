// Command tally imports time-tracking facts from export files into a
// local SQLite fact database.
package main

import (
	"github.com/tallyhq/tally/cmd/tally/cmd"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
