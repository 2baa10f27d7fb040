package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bssh/internal/history"
	"bssh/internal/storage"
)

var (
	historyLimit  int
	historyDays   int
	historyFailed bool
)

var historyCmd = &cobra.Command{
	Use:   "history [connection]",
	Short: "Show session history",
	Long: `Show past sessions, newest first. Without a connection argument the
history covers all connections, including removed ones.

Examples:
  bssh history
  bssh history web-prod
  bssh history --days 7 --failed
  bssh history --limit 100 --json`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum sessions to show")
	historyCmd.Flags().IntVar(&historyDays, "days", 0, "Only sessions started in the last N days")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only failed and stale sessions")
	rootCmd.AddCommand(historyCmd)
}

// HistoryResponse is the JSON shape of the history command.
type HistoryResponse struct {
	Sessions    []storage.SessionRecord `json:"sessions"`
	Total       int                     `json:"total"`
	Successful  int                     `json:"successful"`
	Failed      int                     `json:"failed"`
	AvgDuration float64                 `json:"avgDurationSeconds"`
}

func runHistory(cmd *cobra.Command, args []string) {
	a := mustApp()

	connectionID := ""
	if len(args) > 0 {
		conn := mustFindConnection(a, args[0])
		connectionID = conn.ID
	}

	var since *time.Time
	if historyDays > 0 {
		t := time.Now().AddDate(0, 0, -historyDays)
		since = &t
	}

	records, err := a.sessions.History(connectionID, historyLimit, since, historyFailed)
	if err != nil {
		fail(err)
	}

	sessions := make([]storage.Session, len(records))
	for i, rec := range records {
		sessions[i] = rec.Session
	}
	stats := history.Aggregate(sessions)

	resp := HistoryResponse{
		Sessions:    records,
		Total:       len(records),
		Successful:  stats.SuccessCount,
		Failed:      stats.FailureCount,
		AvgDuration: stats.AvgDurationSeconds,
	}
	if resp.Sessions == nil {
		resp.Sessions = []storage.SessionRecord{}
	}

	if jsonFlag {
		printJSON(resp)
		return
	}

	if len(records) == 0 {
		fmt.Println("No session history found.")
		if connectionID != "" || historyFailed || since != nil {
			fmt.Println("Try loosening the filters to see more history.")
		}
		return
	}

	fmt.Printf("Session history: %d session(s) | %d succeeded | %d failed",
		resp.Total, resp.Successful, resp.Failed)
	if stats.AvgDurationSeconds > 0 {
		fmt.Printf(" | avg duration %s", formatDuration(secondsDuration(stats.AvgDurationSeconds)))
	}
	fmt.Println()
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONNECTION\tSTARTED\tDURATION\tSTATUS\tEXIT")
	for _, rec := range records {
		name := rec.ConnectionName
		if name == "" {
			name = "(removed)"
		}
		duration := "ongoing"
		if rec.EndedAt != nil {
			duration = formatDuration(rec.EndedAt.Sub(rec.StartedAt))
		}
		exit := "-"
		if rec.ExitCode != nil {
			exit = fmt.Sprintf("%d", *rec.ExitCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncate(name, 28),
			formatTimestamp(&rec.StartedAt),
			duration,
			rec.Status,
			exit,
		)
	}
	w.Flush()
}
