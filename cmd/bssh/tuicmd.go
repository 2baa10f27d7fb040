package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bssh/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive connection picker",
	Long: `Open the full-screen connection picker: type to filter with ranked
search, arrow keys to select, enter to connect, esc to quit.`,
	Args: cobra.NoArgs,
	Run:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) {
	a := mustApp()

	conn, err := tui.Run(a.engine)
	if err != nil {
		fail(err)
	}
	if conn == nil {
		return
	}

	fmt.Printf("Connecting to '%s' (%s)\n", conn.Name, conn.Target())
	launchConnection(a, conn, nil)
}
