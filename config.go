package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	_ "github.com/lib/pq"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig is a named connection entry of the connections file.
type DatabaseConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     string `yaml:"port" toml:"port"`
	DBName   string `yaml:"dbname" toml:"dbname"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"sslmode" toml:"sslmode"`
}

// ConnectionsFile lists named databases, keyed by the name given on the command line.
type ConnectionsFile struct {
	Databases map[string]DatabaseConfig `yaml:"databases" toml:"databases"`
}

var validSSLModes = map[string]bool{
	"": true, "disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// LoadConnections reads the connections file, yaml or toml by extension.
// A missing file yields an empty set of connections.
func LoadConnections(fname string) (*ConnectionsFile, error) {
	res := &ConnectionsFile{Databases: map[string]DatabaseConfig{}}
	data, err := os.ReadFile(fname) // nolint gosec
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return nil, fmt.Errorf("can't read connections file %s: %w", fname, err)
	}

	switch {
	case strings.HasSuffix(fname, ".yml") || strings.HasSuffix(fname, ".yaml") || !strings.Contains(filepath.Base(fname), "."):
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true) // strict mode, fail on unknown fields
		if err := dec.Decode(res); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("can't unmarshal yaml connections %s: %w", fname, err)
		}
	case strings.HasSuffix(fname, ".toml"):
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(res); err != nil {
			return nil, fmt.Errorf("can't unmarshal toml connections %s: %w", fname, err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %s", fname)
	}
	if res.Databases == nil {
		res.Databases = map[string]DatabaseConfig{}
	}

	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connections file %s: %w", fname, err)
	}
	return res, nil
}

// Validate checks every entry and reports all problems at once.
func (c *ConnectionsFile) Validate() error {
	errs := new(multierror.Error)
	for name, db := range c.Databases {
		if db.Port != "" {
			if p, err := strconv.Atoi(db.Port); err != nil || p <= 0 || p > 65535 {
				errs = multierror.Append(errs, fmt.Errorf("database %q: invalid port %q", name, db.Port))
			}
		}
		if !validSSLModes[db.SSLMode] {
			errs = multierror.Append(errs, fmt.Errorf("database %q: invalid sslmode %q", name, db.SSLMode))
		}
	}
	return errs.ErrorOrNil()
}

// GetDatabase returns the named entry.
func (c *ConnectionsFile) GetDatabase(name string) (DatabaseConfig, bool) {
	db, ok := c.Databases[name]
	return db, ok
}

// defaultConnectionsPath returns databases.toml from the config dir when it exists, databases.yml otherwise.
func defaultConnectionsPath() (string, error) {
	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	if tomlPath := filepath.Join(dir, "databases.toml"); fileExists(tomlPath) {
		return tomlPath, nil
	}
	return filepath.Join(dir, "databases.yml"), nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// Config holds the resolved connection parameters and the initial query options.
type Config struct {
	Database string
	Host     string
	Port     string
	Username string
	Password string
	SSLMode  string
	Where    string
	OrderBy  string
	Limit    int
}

// merge fills the unset connection fields from a connections file entry.
// Explicit command-line values win.
func (c *Config) merge(db DatabaseConfig) {
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	set(&c.Database, db.DBName)
	set(&c.Host, db.Host)
	set(&c.Port, db.Port)
	set(&c.Username, db.User)
	set(&c.Password, db.Password)
	set(&c.SSLMode, db.SSLMode)
}

func (c *Config) buildConnectionString() (string, error) {
	if c.Database == "" {
		return "", fmt.Errorf("database name is required")
	}
	connStr := fmt.Sprintf("dbname=%s", c.Database)

	if c.Host != "" {
		connStr += fmt.Sprintf(" host=%s", c.Host)
	}
	if c.Port != "" {
		connStr += fmt.Sprintf(" port=%s", c.Port)
	}
	if c.Username != "" {
		connStr += fmt.Sprintf(" user=%s", c.Username)
	} else {
		if currentUser, err := user.Current(); err == nil {
			connStr += fmt.Sprintf(" user=%s", currentUser.Username)
		}
	}
	if c.Password != "" {
		connStr += fmt.Sprintf(" password=%s", c.Password)
	}
	if c.SSLMode != "" {
		connStr += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	} else {
		connStr += " sslmode=disable"
	}

	return connStr, nil
}

func (c *Config) connect(ctx context.Context) (*sql.DB, error) {
	connStr, err := c.buildConnectionString()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
