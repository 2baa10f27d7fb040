package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	isatty "github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	bssherrors "bssh/internal/errors"
	"bssh/internal/proc"
	"bssh/internal/rank"
	"bssh/internal/storage"
)

var (
	connectUser        string
	connectPort        int
	connectBastion     string
	connectBastionUser string
	connectNoBastion   bool
	connectKerberos    bool
	connectKey         string
	connectFirst       bool
	connectDryRun      bool
)

var connectCmd = &cobra.Command{
	Use:   "connect [query] [-- ssh-args...]",
	Short: "Connect to a stored connection",
	Long: `Connect to a connection matched by the query.

The query is resolved in order: alias, exact name, then ranked search over
names, hosts, and tags. A single match connects immediately; several matches
open a numbered picker. Without a query the most recently used connections
are offered.

Flags override the stored profile for this connection only; the profile is
not modified. Arguments after -- are passed to ssh before the target.

Examples:
  bssh connect web-prod
  bssh connect webprod            # smushed prefix matches web-prod-server
  bssh connect web --first
  bssh connect db --user readonly --no-bastion
  bssh connect web-prod --dry-run
  bssh connect web-prod -- -L 8080:localhost:80`,
	Args: cobra.ArbitraryArgs,
	Run:  runConnect,
}

func init() {
	connectCmd.Flags().StringVarP(&connectUser, "user", "u", "", "Override the login user")
	connectCmd.Flags().IntVarP(&connectPort, "port", "p", 0, "Override the SSH port")
	connectCmd.Flags().StringVarP(&connectBastion, "bastion", "b", "", "Override the bastion host")
	connectCmd.Flags().StringVar(&connectBastionUser, "bastion-user", "", "Override the bastion user")
	connectCmd.Flags().BoolVar(&connectNoBastion, "no-bastion", false, "Connect directly, ignoring the profile's bastion")
	connectCmd.Flags().BoolVarP(&connectKerberos, "kerberos", "k", false, "Override Kerberos use (--kerberos=false disables)")
	connectCmd.Flags().StringVarP(&connectKey, "key", "i", "", "Override the SSH identity file")
	connectCmd.Flags().BoolVar(&connectFirst, "first", false, "Connect to the top-ranked match without asking")
	connectCmd.Flags().BoolVar(&connectDryRun, "dry-run", false, "Print the ssh command instead of running it")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) {
	a := mustApp()

	var query string
	var extraArgs []string
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		if dash > 0 {
			query = args[0]
		}
		extraArgs = args[dash:]
	} else if len(args) > 0 {
		query = args[0]
		extraArgs = args[1:]
	}

	conn := mustResolveTarget(a, query)
	applyConnectOverrides(cmd, conn)

	if connectDryRun {
		fmt.Printf("ssh %s\n", strings.Join(proc.Args(conn, extraArgs), " "))
		return
	}

	launchConnection(a, conn, extraArgs)
}

// mustResolveTarget picks the connection a query addresses: alias, exact
// name, then ranked search with auto-select or interactive pick.
func mustResolveTarget(a *app, query string) *storage.Connection {
	if query != "" {
		conn, err := a.aliases.Resolve(query)
		if err != nil {
			fail(err)
		}
		if conn != nil {
			return conn
		}

		conn, err = a.conns.GetByName(query)
		if err != nil {
			fail(err)
		}
		if conn != nil {
			return conn
		}
	}

	res, err := a.engine.Search(newContext(), query)
	if err != nil {
		fail(err)
	}
	if len(res.Items) == 0 {
		fail(bssherrors.Newf(bssherrors.NotFound, "nothing matches %q", query))
	}

	if res.Mode == rank.ModeRanked && len(res.Items) == 1 {
		conn := res.Items[0].Connection
		fmt.Printf("Connecting to '%s' (%s)\n", conn.Name, conn.Target())
		return &conn
	}
	if connectFirst {
		conn := res.Items[0].Connection
		return &conn
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) {
		names := make([]string, 0, len(res.Items))
		for _, it := range res.Items {
			names = append(names, it.Connection.Name)
		}
		fail(bssherrors.Newf(bssherrors.AmbiguousMatch,
			"%q matches several connections (%s); pass --first or a more specific query",
			query, strings.Join(names, ", ")))
	}

	return pickConnection(res, query)
}

// pickConnection runs the numbered terminal picker over a result list.
func pickConnection(res rank.Result, query string) *storage.Connection {
	if res.Mode == rank.ModeRecent {
		fmt.Println("Recently used connections:")
	} else {
		fmt.Printf("Connections matching '%s':\n", query)
	}
	fmt.Println()

	for i, it := range res.Items {
		conn := it.Connection
		detail := formatAgo(conn.LastUsed)
		if res.Mode == rank.ModeRanked {
			detail = fmt.Sprintf("%s match, score %.3f, used %s", it.Tier, it.Score, formatAgo(conn.LastUsed))
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, conn.Name, conn.Target())
		fmt.Printf("     %s\n", detail)
	}

	fmt.Printf("Select connection [1-%d, q to cancel]: ", len(res.Items))

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "q" || input == "quit":
			fmt.Println("Cancelled.")
			os.Exit(0)
		default:
			if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(res.Items) {
				conn := res.Items[n-1].Connection
				return &conn
			}
		}
		fmt.Printf("Select connection [1-%d, q to cancel]: ", len(res.Items))
	}

	fmt.Println("\nCancelled.")
	os.Exit(0)
	return nil
}

// applyConnectOverrides folds the command-line overrides into an in-memory
// copy of the profile. The stored profile stays untouched.
func applyConnectOverrides(cmd *cobra.Command, conn *storage.Connection) {
	flags := cmd.Flags()

	if connectUser != "" {
		conn.User = connectUser
	}
	if connectPort != 0 {
		conn.Port = connectPort
	}
	if flags.Changed("kerberos") {
		conn.UseKerberos = connectKerberos
	}
	if connectBastion != "" {
		b := connectBastion
		conn.Bastion = &b
	}
	if connectBastionUser != "" {
		bu := connectBastionUser
		conn.BastionUser = &bu
	}
	if connectNoBastion {
		conn.Bastion = nil
		conn.BastionUser = nil
	}
	if connectKey != "" {
		k := connectKey
		conn.KeyPath = &k
	}
}

// launchConnection spawns ssh for the connection, records the session, waits
// for the process, and exits with its exit code.
func launchConnection(a *app, conn *storage.Connection, extraArgs []string) {
	ctx := newContext()

	if conn.UseKerberos {
		if err := proc.EnsureKerberos(ctx, a.logger); err != nil {
			// A missing ticket degrades the connection, it doesn't block it;
			// ssh may still succeed with another method.
			a.logger.Warn("kerberos ticket setup failed", "error", err)
		}
	}

	sshCmd := a.spawner.Command(ctx, conn, extraArgs)
	pid, err := a.spawner.Start(sshCmd)
	if err != nil {
		fail(err)
	}

	sess, err := a.tracker.Start(ctx, conn.ID, pid)
	if err != nil {
		// ssh is already running; losing the record must not kill the
		// user's session.
		a.logger.Warn("failed to record session", "error", err)
	}

	exitCode := a.spawner.Wait(sshCmd)

	if sess != nil {
		if err := a.tracker.Finish(ctx, sess.ID, exitCode); err != nil {
			a.logger.Warn("failed to record session end", "session", sess.ID, "error", err)
		}
	}

	if exitCode != 0 {
		fmt.Fprintf(os.Stderr, "ssh exited with code %d\n", exitCode)
		os.Exit(exitCode)
	}
}
