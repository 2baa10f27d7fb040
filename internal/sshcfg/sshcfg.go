// Package sshcfg reads OpenSSH client configuration files for profile
// import. It understands the small subset of directives a connection profile
// can represent: Host, HostName, User, Port, and IdentityFile.
package sshcfg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Host is one importable Host block. Name is the host pattern; HostName the
// real address when the block sets one, otherwise empty.
type Host struct {
	Name         string
	HostName     string
	User         string
	Port         int
	IdentityFile string
}

// Addr returns the address to connect to: HostName when set, else the
// pattern itself.
func (h Host) Addr() string {
	if h.HostName != "" {
		return h.HostName
	}
	return h.Name
}

// ParseFile reads an ssh_config file and returns its importable host blocks.
func ParseFile(path string) ([]Host, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open ssh config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse extracts Host blocks from an ssh_config stream. Wildcard patterns
// (containing * or ?) are skipped since they name no concrete machine. A
// Host line with several patterns yields one block per concrete pattern,
// all sharing the block's settings.
func Parse(r io.Reader) ([]Host, error) {
	var hosts []Host
	var current []Host

	flush := func() {
		hosts = append(hosts, current...)
		current = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		keyword, value := splitDirective(line)
		if value == "" {
			continue
		}

		switch strings.ToLower(keyword) {
		case "host":
			flush()
			for _, pattern := range strings.Fields(value) {
				if strings.ContainsAny(pattern, "*?") {
					continue
				}
				current = append(current, Host{Name: pattern})
			}
		case "hostname":
			for i := range current {
				current[i].HostName = value
			}
		case "user":
			for i := range current {
				current[i].User = value
			}
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil || port < 1 || port > 65535 {
				continue
			}
			for i := range current {
				current[i].Port = port
			}
		case "identityfile":
			for i := range current {
				current[i].IdentityFile = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read ssh config: %w", err)
	}
	flush()

	return hosts, nil
}

// splitDirective breaks a config line into keyword and value. OpenSSH
// accepts both whitespace and = as the separator.
func splitDirective(line string) (string, string) {
	if i := strings.IndexAny(line, " \t="); i >= 0 {
		return line[:i], strings.Trim(strings.TrimSpace(line[i+1:]), `"`)
	}
	return line, ""
}
