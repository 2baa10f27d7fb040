package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Reclassify sessions whose process is gone",
	Long: `Probe every active session's recorded process and mark the dead ones
as stale. Stale sessions count against a connection's success rate since
their outcome was never observed.

Safe to run at any time; a second run without new activity reclassifies
nothing.

Examples:
  bssh cleanup`,
	Args: cobra.NoArgs,
	Run:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	a := mustApp()

	ctx, stop := newSignalContext()
	defer stop()

	count, err := a.tracker.CleanupStale(ctx)
	if err != nil {
		fail(err)
	}

	if jsonFlag {
		printJSON(map[string]int{"reclassified": count})
		return
	}

	if count == 0 {
		fmt.Println("No stale sessions found.")
		return
	}
	fmt.Printf("Reclassified %d stale session(s)\n", count)
}
