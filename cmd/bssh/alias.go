package main

import (
	"fmt"

	"github.com/spf13/cobra"

	bssherrors "bssh/internal/errors"
	"bssh/internal/storage"
)

var aliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Manage connection aliases",
	Long: `Manage short aliases for connections. Aliases resolve before exact
names and fuzzy matching, so they always win.

Examples:
  bssh alias add w web-prod-01
  bssh alias list
  bssh alias rm w`,
}

var aliasAddForce bool

var aliasAddCmd = &cobra.Command{
	Use:   "add <alias> <connection>",
	Short: "Create an alias for a connection",
	Args:  cobra.ExactArgs(2),
	Run:   runAliasAdd,
}

var aliasRmCmd = &cobra.Command{
	Use:     "rm <alias>",
	Aliases: []string{"remove"},
	Short:   "Remove an alias",
	Args:    cobra.ExactArgs(1),
	Run:     runAliasRm,
}

var aliasListCmd = &cobra.Command{
	Use:   "list [connection]",
	Short: "List aliases",
	Args:  cobra.MaximumNArgs(1),
	Run:   runAliasList,
}

func init() {
	aliasAddCmd.Flags().BoolVar(&aliasAddForce, "force", false, "Repoint the alias if it already exists")

	aliasCmd.AddCommand(aliasAddCmd)
	aliasCmd.AddCommand(aliasRmCmd)
	aliasCmd.AddCommand(aliasListCmd)
	rootCmd.AddCommand(aliasCmd)
}

func runAliasAdd(cmd *cobra.Command, args []string) {
	a := mustApp()
	alias, target := args[0], args[1]

	// An alias shadowing a connection name would make that connection
	// unreachable by name.
	existing, err := a.conns.GetByName(alias)
	if err != nil {
		fail(err)
	}
	if existing != nil {
		fail(bssherrors.Newf(bssherrors.InvalidState,
			"a connection named %q already exists; pick a different alias", alias))
	}

	current, err := a.aliases.Resolve(alias)
	if err != nil {
		fail(err)
	}
	if current != nil && !aliasAddForce {
		fail(bssherrors.Newf(bssherrors.InvalidState,
			"alias %q already points to %q (use --force to repoint)", alias, current.Name))
	}

	conn := mustFindConnection(a, target)

	if err := a.aliases.Set(alias, conn.ID); err != nil {
		fail(err)
	}

	if current != nil {
		fmt.Printf("Repointed alias %q: %s -> %s\n", alias, current.Name, conn.Name)
	} else {
		fmt.Printf("Added alias %q -> %s\n", alias, conn.Name)
	}
	fmt.Printf("Connect with: bssh connect %s\n", alias)
}

func runAliasRm(cmd *cobra.Command, args []string) {
	a := mustApp()

	if err := a.aliases.Delete(args[0]); err != nil {
		fail(err)
	}
	fmt.Printf("Removed alias %q\n", args[0])
}

func runAliasList(cmd *cobra.Command, args []string) {
	a := mustApp()

	entries, err := a.aliases.List()
	if err != nil {
		fail(err)
	}

	if len(args) > 0 {
		conn := mustFindConnection(a, args[0])
		filtered := entries[:0]
		for _, e := range entries {
			if e.ConnectionName == conn.Name {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if jsonFlag {
		if entries == nil {
			entries = []storage.AliasEntry{}
		}
		printJSON(entries)
		return
	}

	if len(entries) == 0 {
		fmt.Println("No aliases defined.")
		fmt.Println("Create one with: bssh alias add ALIAS CONNECTION")
		return
	}

	for _, e := range entries {
		fmt.Printf("  %s -> %s\n", e.Alias, e.ConnectionName)
	}
}
