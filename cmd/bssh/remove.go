package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeYes bool

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a connection profile",
	Long: `Remove a connection profile. Its aliases are removed with it; session
history is kept for auditing and no longer counts toward any ranking.

Examples:
  bssh remove web-staging
  bssh remove web-staging --yes`,
	Args: cobra.ExactArgs(1),
	Run:  runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) {
	a := mustApp()
	conn := mustFindConnection(a, args[0])

	if !removeYes && !confirm(fmt.Sprintf("Remove connection '%s' (%s)?", conn.Name, conn.Target()), false) {
		fmt.Println("Cancelled.")
		return
	}

	if err := a.conns.Delete(conn.ID); err != nil {
		fail(err)
	}

	fmt.Printf("Removed connection '%s'\n", conn.Name)
}
