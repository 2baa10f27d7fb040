package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bssh/internal/sshkey"
)

var (
	editName        string
	editHost        string
	editUser        string
	editPort        int
	editBastion     string
	editBastionUser string
	editNoBastion   bool
	editKerberos    bool
	editKey         string
	editNoKey       bool
	editAddTags     []string
	editRemoveTags  []string
)

var editCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit a connection profile",
	Long: `Edit fields of an existing connection profile. Only the flags given
change; everything else is kept.

Examples:
  bssh edit web-prod --port 2222
  bssh edit web-prod --bastion jump.example.com --bastion-user ops
  bssh edit web-prod --add-tag critical --remove-tag staging
  bssh edit web-prod --rename web-prod-eu`,
	Args: cobra.ExactArgs(1),
	Run:  runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editName, "rename", "", "New display name")
	editCmd.Flags().StringVar(&editHost, "host", "", "New host")
	editCmd.Flags().StringVarP(&editUser, "user", "u", "", "New login user")
	editCmd.Flags().IntVarP(&editPort, "port", "p", 0, "New SSH port")
	editCmd.Flags().StringVarP(&editBastion, "bastion", "b", "", "New bastion host")
	editCmd.Flags().StringVar(&editBastionUser, "bastion-user", "", "New bastion user")
	editCmd.Flags().BoolVar(&editNoBastion, "no-bastion", false, "Remove the bastion hop")
	editCmd.Flags().BoolVarP(&editKerberos, "kerberos", "k", false, "Enable or disable Kerberos (use --kerberos=false to disable)")
	editCmd.Flags().StringVarP(&editKey, "key", "i", "", "New SSH identity file")
	editCmd.Flags().BoolVar(&editNoKey, "no-key", false, "Remove the identity file reference")
	editCmd.Flags().StringArrayVar(&editAddTags, "add-tag", nil, "Tag to add (repeatable)")
	editCmd.Flags().StringArrayVar(&editRemoveTags, "remove-tag", nil, "Tag to remove (repeatable)")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) {
	a := mustApp()
	conn := mustFindConnection(a, args[0])

	changed := false
	flags := cmd.Flags()

	if flags.Changed("rename") {
		conn.Name = editName
		changed = true
	}
	if flags.Changed("host") {
		conn.Host = editHost
		changed = true
	}
	if flags.Changed("user") {
		conn.User = editUser
		changed = true
	}
	if flags.Changed("port") {
		if editPort < 1 || editPort > 65535 {
			fail(fmt.Errorf("port %d is out of range [1,65535]", editPort))
		}
		conn.Port = editPort
		changed = true
	}
	if flags.Changed("bastion") {
		b := editBastion
		conn.Bastion = &b
		changed = true
	}
	if flags.Changed("bastion-user") {
		bu := editBastionUser
		conn.BastionUser = &bu
		changed = true
	}
	if editNoBastion {
		conn.Bastion = nil
		conn.BastionUser = nil
		changed = true
	}
	if flags.Changed("kerberos") {
		conn.UseKerberos = editKerberos
		changed = true
	}
	if flags.Changed("key") {
		if err := sshkey.Validate(editKey); err != nil {
			fail(fmt.Errorf("key %s: %w", editKey, err))
		}
		k := editKey
		conn.KeyPath = &k
		changed = true
	}
	if editNoKey {
		conn.KeyPath = nil
		changed = true
	}

	for _, tag := range editAddTags {
		if !conn.HasTag(tag) {
			conn.Tags = append(conn.Tags, tag)
			changed = true
		}
	}
	for _, tag := range editRemoveTags {
		for i, existing := range conn.Tags {
			if existing == tag {
				conn.Tags = append(conn.Tags[:i], conn.Tags[i+1:]...)
				changed = true
				break
			}
		}
	}

	if !changed {
		fmt.Println("Nothing to change. See 'bssh edit --help' for editable fields.")
		return
	}

	if err := a.conns.Update(conn); err != nil {
		fail(err)
	}

	if jsonFlag {
		printJSON(conn)
		return
	}
	fmt.Printf("Updated connection '%s'\n", conn.Name)
}
