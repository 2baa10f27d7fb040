package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bssh/internal/storage"
)

var listTag string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List connection profiles",
	Long: `List all connection profiles, most recently used first.

Examples:
  bssh list
  bssh list --tag production
  bssh list --json`,
	Args: cobra.NoArgs,
	Run:  runList,
}

func init() {
	listCmd.Flags().StringVarP(&listTag, "tag", "t", "", "Only show connections carrying this tag")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) {
	a := mustApp()

	conns, err := a.conns.List()
	if err != nil {
		fail(err)
	}

	if listTag != "" {
		filtered := conns[:0]
		for _, c := range conns {
			if c.HasTag(listTag) {
				filtered = append(filtered, c)
			}
		}
		conns = filtered
	}

	if jsonFlag {
		if conns == nil {
			conns = []storage.Connection{}
		}
		printJSON(conns)
		return
	}

	if len(conns) == 0 {
		if listTag != "" {
			fmt.Printf("No connections tagged '%s'.\n", listTag)
		} else {
			fmt.Println("No connections stored yet. Add one with: bssh add <name> <host>")
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTARGET\tPORT\tBASTION\tTAGS\tLAST USED")
	for _, c := range conns {
		bastion := "-"
		if c.Bastion != nil {
			bastion = *c.Bastion
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			truncate(c.Name, 28),
			truncate(c.Target(), 40),
			c.Port,
			truncate(bastion, 24),
			truncate(joinTags(c.Tags), 24),
			formatAgo(c.LastUsed),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d connection(s)\n", len(conns))
}
