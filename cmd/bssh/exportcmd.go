package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	bssherrors "bssh/internal/errors"
	"bssh/internal/export"
)

var (
	exportOut    string
	exportFormat string
	exportGzip   bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export connections to an archive",
	Long: `Export all connection profiles and aliases to a portable archive.
Archives carry no ids or session history; importing them elsewhere
regenerates both.

Without --out the archive is written to stdout.

Examples:
  bssh export --out backup.yaml
  bssh export --out backup.json.gz --gzip
  bssh export --format toml > connections.toml`,
	Args: cobra.NoArgs,
	Run:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Destination file (default: stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Archive format: yaml, toml, or json (default: from file extension, else yaml)")
	exportCmd.Flags().BoolVar(&exportGzip, "gzip", false, "Compress the archive")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	a := mustApp()

	format := export.FormatYAML
	compress := exportGzip
	if exportOut != "" {
		if f, gz, ok := export.DetectPath(exportOut); ok {
			format = f
			compress = compress || gz
		}
	}
	if exportFormat != "" {
		f, err := export.ParseFormat(exportFormat)
		if err != nil {
			fail(bssherrors.Wrap(bssherrors.Configuration, "invalid --format", err))
		}
		format = f
	}

	conns, err := a.conns.List()
	if err != nil {
		fail(err)
	}
	aliases, err := a.aliases.List()
	if err != nil {
		fail(err)
	}

	arch := export.New(conns, aliases, time.Now())

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			fail(bssherrors.Wrap(bssherrors.Persistence, "cannot create archive file", err))
		}
		defer f.Close()
		out = f
	}

	if err := export.Write(out, format, compress, arch); err != nil {
		fail(err)
	}

	if exportOut != "" {
		fmt.Printf("Exported %d connection(s) and %d alias(es) to %s\n",
			len(arch.Connections), len(arch.Aliases), exportOut)
	}
}
