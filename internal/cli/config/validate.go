package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapconn/pkg/connstr"
	"github.com/leapstack-labs/leapconn/pkg/entityclient"
)

// OutputFormats lists the accepted values of the output setting.
var OutputFormats = []string{"auto", "text", "markdown", "json", "yaml"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !isOutputFormat(c.OutputFormat) {
		return fmt.Errorf("invalid output format %q\nHint: Use one of %s", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}

	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		cc := c.Connections[name]
		if strings.TrimSpace(cc.ConnectionString) == "" {
			errs = append(errs, fmt.Errorf("connection %q: connection_string is required", name))
			continue
		}
		if cc.ProviderName != entityclient.EntityClientProviderName {
			continue
		}
		if _, err := connstr.Parse(cc.ConnectionString, entityclient.Keywords); err != nil {
			errs = append(errs, fmt.Errorf("connection %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func isOutputFormat(s string) bool {
	for _, f := range OutputFormats {
		if s == f {
			return true
		}
	}
	return false
}
