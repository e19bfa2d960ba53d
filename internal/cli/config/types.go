// Package config provides configuration management for the leapconn CLI.
//
// Configuration is layered with koanf: built-in defaults, then leapconn.yaml,
// then LEAPCONN_* environment variables, then explicitly set flags.
package config

import (
	"github.com/leapstack-labs/leapconn/pkg/entityclient"
)

// Config holds all CLI configuration options.
type Config struct {
	DataDirectory string                      `koanf:"data_directory"`
	Verbose       bool                        `koanf:"verbose"`
	OutputFormat  string                      `koanf:"output"`
	Connections   map[string]ConnectionConfig `koanf:"connections"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// ConnectionConfig is a named connection string.
type ConnectionConfig struct {
	ProviderName     string `koanf:"provider_name"`
	ConnectionString string `koanf:"connection_string"`
}

// Default configuration values.
const (
	DefaultDataDirectory = "."
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	// DefaultProviderName applies to connections without a provider_name.
	DefaultProviderName = entityclient.EntityClientProviderName
)

// ConfigFileNames are the file names searched for, in order.
var ConfigFileNames = []string{"leapconn.yaml", "leapconn.yml"}

// Lookup returns the named connection. It lets a Config serve as the
// entity client's source of named connections.
func (c *Config) Lookup(name string) (entityclient.NamedConnection, bool) {
	if c == nil {
		return entityclient.NamedConnection{}, false
	}
	cc, ok := c.Connections[name]
	if !ok {
		return entityclient.NamedConnection{}, false
	}
	return entityclient.NamedConnection{
		Name:             name,
		ProviderName:     cc.ProviderName,
		ConnectionString: cc.ConnectionString,
	}, true
}
