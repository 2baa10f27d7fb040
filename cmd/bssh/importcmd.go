package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	bssherrors "bssh/internal/errors"
	"bssh/internal/export"
	"bssh/internal/sshcfg"
)

var (
	importFile      string
	importDryRun    bool
	importNoBastion bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import connections from ssh_config or an archive",
	Long: `Import connection profiles. The source file's extension decides how it
is read: .yaml/.toml/.json (optionally .gz) are treated as bssh export
archives, anything else as an OpenSSH client config.

ssh_config imports take Host blocks with concrete patterns; wildcard
patterns are skipped. Existing profiles are never overwritten.

Examples:
  bssh import
  bssh import --file ~/.ssh/config --dry-run
  bssh import --file backup.yaml.gz`,
	Args: cobra.NoArgs,
	Run:  runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Source file (default: configured sshConfigPath)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without writing")
	importCmd.Flags().BoolVar(&importNoBastion, "no-bastion", false, "Do not apply the default bastion to ssh_config imports")
	rootCmd.AddCommand(importCmd)
}

// ImportResponse is the JSON shape of the import command.
type ImportResponse struct {
	Source   string   `json:"source"`
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
	Aliases  []string `json:"aliases"`
	DryRun   bool     `json:"dryRun"`
}

func runImport(cmd *cobra.Command, args []string) {
	a := mustApp()

	path := importFile
	if path == "" {
		path = a.cfg.SSHConfigPath
	}

	var (
		profiles   []export.Profile
		aliasPairs []export.AliasPair
		source     string
	)

	if format, compressed, ok := export.DetectPath(path); ok {
		source = "archive"
		f, err := os.Open(path)
		if err != nil {
			fail(bssherrors.Wrap(bssherrors.Configuration, "cannot open archive", err))
		}
		arch, err := export.Read(f, format, compressed)
		f.Close()
		if err != nil {
			fail(err)
		}
		profiles = arch.Connections
		aliasPairs = arch.Aliases
	} else {
		source = "ssh_config"
		hosts, err := sshcfg.ParseFile(path)
		if err != nil {
			fail(bssherrors.Wrap(bssherrors.Configuration, "cannot read ssh config", err))
		}
		for _, h := range hosts {
			profiles = append(profiles, export.Profile{
				Name:    h.Name,
				Host:    h.Addr(),
				User:    h.User,
				Port:    h.Port,
				KeyPath: h.IdentityFile,
				Tags:    []string{"imported"},
			})
		}
	}

	resp := ImportResponse{
		Source:   source,
		Imported: []string{},
		Skipped:  []string{},
		Aliases:  []string{},
		DryRun:   importDryRun,
	}

	// Names that will exist after the import, for alias targets in dry-run.
	willExist := map[string]bool{}

	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping profile: %v\n", err)
			continue
		}

		existing, err := a.conns.GetByName(p.Name)
		if err != nil {
			fail(err)
		}
		if existing != nil {
			resp.Skipped = append(resp.Skipped, p.Name)
			willExist[existing.Name] = true
			continue
		}

		if p.User == "" {
			p.User = a.cfg.DefaultUser
		}
		if p.Port == 0 {
			p.Port = a.cfg.DefaultPort
		}
		// ssh_config blocks carry no bastion directive, so the configured
		// default applies unless suppressed. Archives are complete records.
		if source == "ssh_config" && !importNoBastion && a.cfg.DefaultBastion != "" {
			p.Bastion = a.cfg.DefaultBastion
			p.BastionUser = a.cfg.DefaultBastionUser
			p.UseKerberos = a.cfg.UseKerberosByDefault
		}

		if !importDryRun {
			conn := p.Connection(uuid.New().String(), time.Now())
			if err := a.conns.Create(conn); err != nil {
				fail(err)
			}
		}
		resp.Imported = append(resp.Imported, p.Name)
		willExist[p.Name] = true
	}

	for _, pair := range aliasPairs {
		if !willExist[pair.Connection] {
			existing, err := a.conns.GetByName(pair.Connection)
			if err != nil {
				fail(err)
			}
			if existing == nil {
				fmt.Fprintf(os.Stderr, "Warning: skipping alias %q: no connection named %q\n",
					pair.Alias, pair.Connection)
				continue
			}
		}
		if shadowed, err := a.conns.GetByName(pair.Alias); err != nil {
			fail(err)
		} else if shadowed != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping alias %q: shadows a connection name\n", pair.Alias)
			continue
		}

		if !importDryRun {
			conn, err := a.conns.GetByName(pair.Connection)
			if err != nil {
				fail(err)
			}
			if conn == nil {
				continue
			}
			if err := a.aliases.Set(pair.Alias, conn.ID); err != nil {
				fail(err)
			}
		}
		resp.Aliases = append(resp.Aliases, pair.Alias)
	}

	if jsonFlag {
		printJSON(resp)
		return
	}

	verb := "Imported"
	if importDryRun {
		verb = "Would import"
	}
	fmt.Printf("%s %d connection(s) from %s", verb, len(resp.Imported), path)
	if len(resp.Skipped) > 0 {
		fmt.Printf(", skipped %d existing", len(resp.Skipped))
	}
	if len(resp.Aliases) > 0 {
		fmt.Printf(", %d alias(es)", len(resp.Aliases))
	}
	fmt.Println()

	for _, name := range resp.Imported {
		fmt.Printf("  + %s\n", name)
	}
	if importDryRun && len(resp.Imported) > 0 {
		fmt.Println("\nRe-run without --dry-run to apply.")
	}
}
