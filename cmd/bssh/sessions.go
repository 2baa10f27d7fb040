package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bssh/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active sessions",
	Long: `List sessions currently recorded as active, with a liveness check on
each recorded process. Sessions flagged stale can be reclassified with
'bssh cleanup'.

Examples:
  bssh sessions
  bssh sessions --json`,
	Args: cobra.NoArgs,
	Run:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) {
	a := mustApp()

	active, err := a.tracker.ListActive(newContext())
	if err != nil {
		fail(err)
	}

	if jsonFlag {
		if active == nil {
			active = []session.ActiveSession{}
		}
		printJSON(active)
		return
	}

	if len(active) == 0 {
		fmt.Println("No active sessions.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONNECTION\tSESSION\tPID\tSTARTED\tDURATION\tSTATE")
	for _, s := range active {
		name := s.ConnectionName
		if name == "" {
			name = "(removed)"
		}
		pid := "-"
		if s.PID != nil {
			pid = fmt.Sprintf("%d", *s.PID)
		}
		state := "running"
		if !s.Alive {
			state = "stale"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(name, 28),
			s.ID[:8],
			pid,
			formatTimestamp(&s.StartedAt),
			formatDuration(time.Since(s.StartedAt)),
			state,
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d session(s)\n", len(active))
	fmt.Println("Close one with 'bssh close <connection>'; reclassify stale records with 'bssh cleanup'.")
}
