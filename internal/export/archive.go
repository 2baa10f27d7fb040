// Package export round-trips connection profiles through portable archive
// files, for backups and for moving a profile collection between machines.
// Archives carry no identifiers or usage history; imports regenerate those.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"bssh/internal/storage"
)

// Format selects the archive encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// Version is the current archive document version.
const Version = 1

// Archive is the document written to disk.
type Archive struct {
	Version     int         `json:"version" yaml:"version" toml:"version"`
	ExportedAt  time.Time   `json:"exportedAt" yaml:"exportedAt" toml:"exportedAt"`
	Connections []Profile   `json:"connections" yaml:"connections" toml:"connections"`
	Aliases     []AliasPair `json:"aliases,omitempty" yaml:"aliases,omitempty" toml:"aliases,omitempty"`
}

// Profile is the portable form of one connection.
type Profile struct {
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Host        string   `json:"host" yaml:"host" toml:"host"`
	User        string   `json:"user" yaml:"user" toml:"user"`
	Port        int      `json:"port" yaml:"port" toml:"port"`
	Bastion     string   `json:"bastion,omitempty" yaml:"bastion,omitempty" toml:"bastion,omitempty"`
	BastionUser string   `json:"bastionUser,omitempty" yaml:"bastionUser,omitempty" toml:"bastionUser,omitempty"`
	UseKerberos bool     `json:"useKerberos" yaml:"useKerberos" toml:"useKerberos"`
	KeyPath     string   `json:"keyPath,omitempty" yaml:"keyPath,omitempty" toml:"keyPath,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
}

// AliasPair links an alias to a connection by display name, since archive
// entries have no stable ids.
type AliasPair struct {
	Alias      string `json:"alias" yaml:"alias" toml:"alias"`
	Connection string `json:"connection" yaml:"connection" toml:"connection"`
}

// Validate checks the fields an import cannot default.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile has no name")
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("profile %q has no host", p.Name)
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("profile %q has invalid port %d", p.Name, p.Port)
	}
	return nil
}

// Connection materializes the profile as a storable record.
func (p Profile) Connection(id string, createdAt time.Time) *storage.Connection {
	conn := &storage.Connection{
		ID:          id,
		Name:        p.Name,
		Host:        p.Host,
		User:        p.User,
		Port:        p.Port,
		UseKerberos: p.UseKerberos,
		CreatedAt:   createdAt,
		Tags:        p.Tags,
	}
	if p.Bastion != "" {
		b := p.Bastion
		conn.Bastion = &b
	}
	if p.BastionUser != "" {
		bu := p.BastionUser
		conn.BastionUser = &bu
	}
	if p.KeyPath != "" {
		kp := p.KeyPath
		conn.KeyPath = &kp
	}
	return conn
}

// New builds an archive from stored connections and aliases.
func New(conns []storage.Connection, aliases []storage.AliasEntry, exportedAt time.Time) *Archive {
	a := &Archive{
		Version:     Version,
		ExportedAt:  exportedAt.UTC(),
		Connections: make([]Profile, len(conns)),
	}

	for i, conn := range conns {
		p := Profile{
			Name:        conn.Name,
			Host:        conn.Host,
			User:        conn.User,
			Port:        conn.Port,
			UseKerberos: conn.UseKerberos,
			Tags:        conn.Tags,
		}
		if conn.Bastion != nil {
			p.Bastion = *conn.Bastion
		}
		if conn.BastionUser != nil {
			p.BastionUser = *conn.BastionUser
		}
		if conn.KeyPath != nil {
			p.KeyPath = *conn.KeyPath
		}
		a.Connections[i] = p
	}

	for _, al := range aliases {
		a.Aliases = append(a.Aliases, AliasPair{Alias: al.Alias, Connection: al.ConnectionName})
	}

	return a
}

// Write encodes the archive, gzip-compressing the stream when asked.
func Write(w io.Writer, format Format, compress bool, a *Archive) error {
	if compress {
		zw := gzip.NewWriter(w)
		if err := encode(zw, format, a); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}
	return encode(w, format, a)
}

// Read decodes an archive and checks its version.
func Read(r io.Reader, format Format, compressed bool) (*Archive, error) {
	if compressed {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("not a gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var a Archive
	if err := decode(r, format, &a); err != nil {
		return nil, err
	}
	if a.Version > Version {
		return nil, fmt.Errorf("archive version %d is newer than supported version %d", a.Version, Version)
	}
	return &a, nil
}

func encode(w io.Writer, format Format, a *Archive) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("failed to encode yaml archive: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(a); err != nil {
			return fmt.Errorf("failed to encode toml archive: %w", err)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("failed to encode json archive: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown archive format %q", format)
	}
}

func decode(r io.Reader, format Format, a *Archive) error {
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(a); err != nil {
			return fmt.Errorf("failed to decode yaml archive: %w", err)
		}
		return nil
	case FormatTOML:
		if err := toml.NewDecoder(r).Decode(a); err != nil {
			return fmt.Errorf("failed to decode toml archive: %w", err)
		}
		return nil
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(a); err != nil {
			return fmt.Errorf("failed to decode json archive: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown archive format %q", format)
	}
}

// DetectPath infers format and compression from a file name. ok is false for
// extensions that are no archive format, such as plain ssh_config files.
func DetectPath(path string) (format Format, compressed bool, ok bool) {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".gz") {
		compressed = true
		name = strings.TrimSuffix(name, ".gz")
	}

	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return FormatYAML, compressed, true
	case ".toml":
		return FormatTOML, compressed, true
	case ".json":
		return FormatJSON, compressed, true
	default:
		return "", compressed, false
	}
}

// ParseFormat validates a format flag value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want yaml, toml, or json)", s)
	}
}
