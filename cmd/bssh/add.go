package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"bssh/internal/sshkey"
	"bssh/internal/storage"
)

var (
	addUser        string
	addPort        int
	addBastion     string
	addBastionUser string
	addNoBastion   bool
	addKerberos    bool
	addKey         string
	addTags        []string
)

var addCmd = &cobra.Command{
	Use:   "add <name> <host>",
	Short: "Add a connection profile",
	Long: `Add a new connection profile to the store.

The display name must be unique (compared case-insensitively). Unset options
fall back to the configured defaults. Kerberos defaults on only for
connections routed through a bastion, unless set explicitly.

Examples:
  bssh add web-prod web1.prod.example.com
  bssh add web-prod web1.prod.example.com --user deploy --port 2222
  bssh add db-primary db1.internal --bastion jump.example.com --tag production --tag database
  bssh add ci ci.example.com --key ~/.ssh/ci_ed25519 --no-bastion`,
	Args: cobra.ExactArgs(2),
	Run:  runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addUser, "user", "u", "", "Login user (default from config)")
	addCmd.Flags().IntVarP(&addPort, "port", "p", 0, "SSH port (default from config)")
	addCmd.Flags().StringVarP(&addBastion, "bastion", "b", "", "Bastion host to route through")
	addCmd.Flags().StringVar(&addBastionUser, "bastion-user", "", "User on the bastion (default: connection user)")
	addCmd.Flags().BoolVar(&addNoBastion, "no-bastion", false, "Connect directly even when a default bastion is configured")
	addCmd.Flags().BoolVarP(&addKerberos, "kerberos", "k", false, "Use Kerberos authentication")
	addCmd.Flags().StringVarP(&addKey, "key", "i", "", "Path to the SSH identity file")
	addCmd.Flags().StringArrayVarP(&addTags, "tag", "t", nil, "Tag for grouping and search (repeatable)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	a := mustApp()
	name, host := args[0], args[1]

	user := addUser
	if user == "" {
		user = a.cfg.DefaultUser
	}
	port := addPort
	if port == 0 {
		port = a.cfg.DefaultPort
	}
	if port < 1 || port > 65535 {
		fail(fmt.Errorf("port %d is out of range [1,65535]", port))
	}

	bastion := addBastion
	bastionUser := addBastionUser
	if addNoBastion {
		bastion = ""
		bastionUser = ""
	} else if bastion == "" {
		bastion = a.cfg.DefaultBastion
		if bastionUser == "" {
			bastionUser = a.cfg.DefaultBastionUser
		}
	}

	// Kerberos is usually pointless on a direct connection, so the config
	// default only applies when the connection is routed through a bastion.
	useKerberos := addKerberos
	if !cmd.Flags().Changed("kerberos") {
		useKerberos = bastion != "" && a.cfg.UseKerberosByDefault
	}

	if addKey != "" {
		if err := sshkey.Validate(addKey); err != nil {
			fail(fmt.Errorf("key %s: %w", addKey, err))
		}
	}

	conn := &storage.Connection{
		ID:          uuid.New().String(),
		Name:        name,
		Host:        host,
		User:        user,
		Port:        port,
		UseKerberos: useKerberos,
		CreatedAt:   time.Now().UTC(),
		Tags:        addTags,
	}
	if bastion != "" {
		conn.Bastion = &bastion
	}
	if bastionUser != "" {
		conn.BastionUser = &bastionUser
	}
	if addKey != "" {
		key := addKey
		conn.KeyPath = &key
	}

	if err := a.conns.Create(conn); err != nil {
		fail(err)
	}

	if jsonFlag {
		printJSON(conn)
		return
	}

	fmt.Printf("Added connection '%s' (%s)\n", conn.Name, conn.Target())
	if conn.Bastion != nil {
		fmt.Printf("  via bastion %s\n", *conn.Bastion)
	}
	if len(conn.Tags) > 0 {
		fmt.Printf("  tags: %s\n", joinTags(conn.Tags))
	}
	fmt.Printf("\nConnect with: bssh connect %s\n", conn.Name)
}
