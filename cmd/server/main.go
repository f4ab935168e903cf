/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the overwork engine. "serve" runs the HTTP API,
  "classify" classifies one interval offline without any database.

COMMANDS:
  serve     Run the HTTP server (config file, environment, flags)
  classify  Print the breakdown of a single clock-in/clock-out interval

CONFIGURATION PRECEDENCE (serve):
  1. Flags (--port, --db)
  2. Environment (OVERWORK_SERVER__PORT, OVERWORK_DATABASE__PATH, ...)
  3. YAML file given by --config
  4. Built-in defaults

EXAMPLES:
  # Run with file database
  ./server serve --db ./data/overwork.db

  # Run with in-memory database
  ./server serve --db :memory:

  # Classify a Saturday shift with an hour of lunch inside it
  ./server classify --in 2025-03-15T08:00:00Z --out 2025-03-15T19:00:00Z --lunch

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Work-hours classification and overwork bank",
	Long: `server classifies clocked work sessions into regular hours, the annual
unpaid allowance and paid overtime, keeps an overwork bank of days off and
hours per user, and serves it all over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(classifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
