package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bssh/internal/history"
	"bssh/internal/sshkey"
	"bssh/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a connection profile in detail",
	Long: `Show one connection profile with its aggregated usage statistics,
aliases, and key fingerprint.

Examples:
  bssh show web-prod
  bssh show web-prod --json`,
	Args: cobra.ExactArgs(1),
	Run:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// ShowResponse is the JSON shape of the show command.
type ShowResponse struct {
	Connection  *storage.Connection `json:"connection"`
	Stats       history.Stats       `json:"stats"`
	SuccessRate float64             `json:"successRate"`
	Aliases     []string            `json:"aliases,omitempty"`
	Fingerprint string              `json:"fingerprint,omitempty"`
}

func runShow(cmd *cobra.Command, args []string) {
	a := mustApp()

	conn := mustFindConnection(a, args[0])

	sessions, err := a.sessions.ListByConnection(conn.ID)
	if err != nil {
		fail(err)
	}
	stats := history.Aggregate(sessions)

	var aliases []string
	entries, err := a.aliases.List()
	if err != nil {
		fail(err)
	}
	for _, e := range entries {
		if e.ConnectionName == conn.Name {
			aliases = append(aliases, e.Alias)
		}
	}

	fingerprint := ""
	if conn.KeyPath != nil {
		if fp, err := sshkey.Fingerprint(*conn.KeyPath); err == nil {
			fingerprint = fp
		}
	}

	resp := ShowResponse{
		Connection:  conn,
		Stats:       stats,
		SuccessRate: history.SuccessRate(stats.SuccessCount, stats.FailureCount, a.cfg.SuccessBeta),
		Aliases:     aliases,
		Fingerprint: fingerprint,
	}

	if jsonFlag {
		printJSON(resp)
		return
	}

	fmt.Printf("Connection: %s\n", conn.Name)
	fmt.Printf("  Target:      %s\n", conn.Target())
	fmt.Printf("  Port:        %d\n", conn.Port)
	if conn.Bastion != nil {
		user := conn.User
		if conn.BastionUser != nil {
			user = *conn.BastionUser
		}
		fmt.Printf("  Bastion:     %s@%s\n", user, *conn.Bastion)
	}
	fmt.Printf("  Kerberos:    %v\n", conn.UseKerberos)
	if conn.KeyPath != nil {
		fmt.Printf("  Key:         %s\n", *conn.KeyPath)
		if fingerprint != "" {
			fmt.Printf("  Fingerprint: %s\n", fingerprint)
		}
	}
	fmt.Printf("  Tags:        %s\n", joinTags(conn.Tags))
	if len(aliases) > 0 {
		fmt.Printf("  Aliases:     %s\n", joinTags(aliases))
	}
	fmt.Printf("  Created:     %s\n", formatTimestamp(&conn.CreatedAt))
	fmt.Printf("  Last used:   %s\n", formatAgo(conn.LastUsed))

	fmt.Printf("\nUsage:\n")
	fmt.Printf("  Sessions:     %d\n", stats.UseCount)
	fmt.Printf("  Succeeded:    %d\n", stats.SuccessCount)
	fmt.Printf("  Failed:       %d\n", stats.FailureCount)
	fmt.Printf("  Success rate: %.0f%%\n", resp.SuccessRate*100)
	if stats.AvgDurationSeconds > 0 {
		fmt.Printf("  Avg duration: %s\n", formatDuration(secondsDuration(stats.AvgDurationSeconds)))
	}
}
