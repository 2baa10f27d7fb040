package main

import (
	"github.com/spf13/cobra"

	"bssh/internal/version"
)

var (
	// Persistent flags shared by every command
	configFlag    string
	dbFlag        string
	logLevelFlag  string
	logFormatFlag string
	jsonFlag      bool
)

var rootCmd = &cobra.Command{
	Use:   "bssh",
	Short: "bssh - Bayesian SSH connection manager",
	Long: `bssh stores SSH connection profiles and finds them again from typed
fragments of their name, host, or tags. Results are ranked by a combination
of match quality, usage frequency, recency, and historical success rate, so
the connection you mean is almost always the first hit.

Every launched session is tracked in a local database: bssh records when a
connection starts, which process it runs as, and how it ended.

Examples:
  bssh add web-prod web1.prod.example.com --user deploy --tag production
  bssh connect webprod
  bssh sessions
  bssh history --days 7`,
	Version: version.Version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if jsonFlag {
			printJSON(map[string]string{
				"version": version.Version,
				"commit":  version.Commit,
				"built":   version.BuildDate,
			})
			return
		}
		cmd.Println(version.Full())
	},
}

func init() {
	rootCmd.SetVersionTemplate("bssh version {{.Version}}\n")
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (default ~/.config/bssh/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Path to the connection database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: text, json (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output machine-readable JSON where supported")
}
