package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	closeForce bool
	closeAll   bool
)

var closeCmd = &cobra.Command{
	Use:   "close [session-id|connection]",
	Short: "Close active sessions",
	Long: `Close active sessions by session id or connection name. Running
processes receive SIGTERM (SIGKILL with --force); processes that are already
gone have their records reclassified as stale.

Examples:
  bssh close web-prod
  bssh close 4fe5a2b0
  bssh close web-prod --force
  bssh close --all`,
	Args: cobra.MaximumNArgs(1),
	Run:  runClose,
}

func init() {
	closeCmd.Flags().BoolVarP(&closeForce, "force", "f", false, "Kill instead of terminating gracefully")
	closeCmd.Flags().BoolVar(&closeAll, "all", false, "Close every active session")
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) {
	a := mustApp()

	ctx, stop := newSignalContext()
	defer stop()

	if !closeAll && len(args) == 0 {
		// Without a target this is a listing, same as the sessions command.
		runSessions(cmd, nil)
		return
	}

	var out struct {
		Terminated   int `json:"terminated"`
		Reclassified int `json:"reclassified"`
	}

	if closeAll {
		res, err := a.tracker.CloseAll(ctx, closeForce)
		if err != nil {
			fail(err)
		}
		out.Terminated, out.Reclassified = res.Terminated, res.Reclassified
	} else {
		res, err := a.tracker.Close(ctx, args[0], closeForce)
		if err != nil {
			fail(err)
		}
		out.Terminated, out.Reclassified = res.Terminated, res.Reclassified
	}

	if jsonFlag {
		printJSON(out)
		return
	}

	fmt.Printf("Closed %d session(s), reclassified %d stale record(s)\n", out.Terminated, out.Reclassified)
}
