package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bssh/internal/history"
)

var statsCmd = &cobra.Command{
	Use:   "stats [connection]",
	Short: "Show usage statistics",
	Long: `Show aggregated usage statistics. Without an argument the overview
covers every connection; with one it details a single connection.

Examples:
  bssh stats
  bssh stats web-prod
  bssh stats --json`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// ConnectionStats is one connection's aggregated history in JSON output.
type ConnectionStats struct {
	Name               string     `json:"name"`
	UseCount           int        `json:"useCount"`
	SuccessCount       int        `json:"successCount"`
	FailureCount       int        `json:"failureCount"`
	SuccessRate        float64    `json:"successRate"`
	AvgDurationSeconds float64    `json:"avgDurationSeconds"`
	LastUsed           *time.Time `json:"lastUsed,omitempty"`
}

// StatsResponse is the JSON shape of the overview.
type StatsResponse struct {
	TotalConnections int               `json:"totalConnections"`
	TotalSessions    int               `json:"totalSessions"`
	Connections      []ConnectionStats `json:"connections"`
	ByTag            map[string]int    `json:"byTag"`
}

func runStats(cmd *cobra.Command, args []string) {
	a := mustApp()

	if len(args) > 0 {
		statsForConnection(a, args[0])
		return
	}

	conns, err := a.conns.List()
	if err != nil {
		fail(err)
	}
	sessions, err := a.sessions.ListAll()
	if err != nil {
		fail(err)
	}

	grouped := history.GroupStats(sessions)

	resp := StatsResponse{
		TotalConnections: len(conns),
		TotalSessions:    len(sessions),
		Connections:      []ConnectionStats{},
		ByTag:            map[string]int{},
	}
	for _, c := range conns {
		st := grouped[c.ID]
		resp.Connections = append(resp.Connections, ConnectionStats{
			Name:               c.Name,
			UseCount:           st.UseCount,
			SuccessCount:       st.SuccessCount,
			FailureCount:       st.FailureCount,
			SuccessRate:        history.SuccessRate(st.SuccessCount, st.FailureCount, a.cfg.SuccessBeta),
			AvgDurationSeconds: st.AvgDurationSeconds,
			LastUsed:           c.LastUsed,
		})
		for _, tag := range c.Tags {
			resp.ByTag[tag]++
		}
	}
	sort.Slice(resp.Connections, func(i, j int) bool {
		if resp.Connections[i].UseCount != resp.Connections[j].UseCount {
			return resp.Connections[i].UseCount > resp.Connections[j].UseCount
		}
		return resp.Connections[i].Name < resp.Connections[j].Name
	})

	if jsonFlag {
		printJSON(resp)
		return
	}

	fmt.Printf("Connections: %d | Sessions recorded: %d\n", resp.TotalConnections, resp.TotalSessions)
	if len(resp.Connections) == 0 {
		fmt.Println("\nNo connections stored yet. Add one with: bssh add NAME HOST")
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUSES\tSUCCESS\tAVG DURATION\tLAST USED")
	for _, cs := range resp.Connections {
		avg := "-"
		if cs.AvgDurationSeconds > 0 {
			avg = formatDuration(secondsDuration(cs.AvgDurationSeconds))
		}
		fmt.Fprintf(w, "%s\t%d\t%.0f%%\t%s\t%s\n",
			truncate(cs.Name, 28),
			cs.UseCount,
			cs.SuccessRate*100,
			avg,
			formatAgo(cs.LastUsed),
		)
	}
	w.Flush()

	if len(resp.ByTag) > 0 {
		type tagCount struct {
			tag   string
			count int
		}
		tags := make([]tagCount, 0, len(resp.ByTag))
		for tag, count := range resp.ByTag {
			tags = append(tags, tagCount{tag, count})
		}
		sort.Slice(tags, func(i, j int) bool {
			if tags[i].count != tags[j].count {
				return tags[i].count > tags[j].count
			}
			return tags[i].tag < tags[j].tag
		})

		fmt.Println("\nBy tag:")
		for _, tc := range tags {
			fmt.Printf("  %s: %d connection(s)\n", tc.tag, tc.count)
		}
	}
}

func statsForConnection(a *app, ref string) {
	conn := mustFindConnection(a, ref)

	sessions, err := a.sessions.ListByConnection(conn.ID)
	if err != nil {
		fail(err)
	}
	st := history.Aggregate(sessions)

	cs := ConnectionStats{
		Name:               conn.Name,
		UseCount:           st.UseCount,
		SuccessCount:       st.SuccessCount,
		FailureCount:       st.FailureCount,
		SuccessRate:        history.SuccessRate(st.SuccessCount, st.FailureCount, a.cfg.SuccessBeta),
		AvgDurationSeconds: st.AvgDurationSeconds,
		LastUsed:           st.LastUsed,
	}

	if jsonFlag {
		printJSON(cs)
		return
	}

	fmt.Printf("Statistics for %s\n\n", conn.Name)
	fmt.Printf("  Uses:          %d\n", cs.UseCount)
	fmt.Printf("  Succeeded:     %d\n", cs.SuccessCount)
	fmt.Printf("  Failed:        %d\n", cs.FailureCount)
	fmt.Printf("  Success rate:  %.0f%%\n", cs.SuccessRate*100)
	if cs.AvgDurationSeconds > 0 {
		fmt.Printf("  Avg duration:  %s\n", formatDuration(secondsDuration(cs.AvgDurationSeconds)))
	}
	fmt.Printf("  Last used:     %s\n", formatAgo(cs.LastUsed))
}
