// Package duckdb provides the DuckDB store provider.
package duckdb

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/leapconn/pkg/connstr"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

// Name is the invariant provider name.
const Name = "duckdb"

// Keywords is the provider connection string keyword table.
var Keywords = connstr.NewSynonyms(
	connstr.Keyword{Name: "data source", Aliases: []string{"datasource", "path", "database"}},
	connstr.Keyword{Name: "access mode", Aliases: []string{"accessmode"}},
	connstr.Keyword{Name: "threads"},
	connstr.Keyword{Name: "memory limit", Aliases: []string{"memorylimit"}},
)

// Params holds DuckDB connection settings decoded from the provider
// connection string.
type Params struct {
	DataSource  string `mapstructure:"data source"`
	AccessMode  string `mapstructure:"access mode"`
	Threads     int    `mapstructure:"threads"`
	MemoryLimit string `mapstructure:"memory limit"`
}

// Provider implements provider.Provider for DuckDB.
type Provider struct {
	provider.Base
}

// New creates a new DuckDB provider.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Provider {
	return &Provider{Base: provider.NewBase(Name, "duckdb", Keywords, logger, "data source")}
}

// DSN builds a DuckDB path with its configuration as query parameters.
// Use ":memory:" or leave the data source empty for an in-memory database.
func (p *Provider) DSN(values map[string]string) (string, error) {
	var params Params
	if err := provider.Decode(values, &params); err != nil {
		return "", err
	}

	path := params.DataSource
	if path == "" {
		path = ":memory:"
	}

	q := url.Values{}
	if params.AccessMode != "" {
		mode := strings.ToLower(strings.ReplaceAll(params.AccessMode, " ", "_"))
		switch mode {
		case "automatic", "read_only", "read_write":
			q.Set("access_mode", mode)
		default:
			return "", fmt.Errorf("invalid duckdb access mode %q", params.AccessMode)
		}
	}
	if params.Threads > 0 {
		q.Set("threads", strconv.Itoa(params.Threads))
	}
	if params.MemoryLimit != "" {
		q.Set("memory_limit", params.MemoryLimit)
	}

	p.Logger.Debug("built duckdb dsn", slog.String("path", path))
	if len(q) == 0 {
		return path, nil
	}
	return path + "?" + q.Encode(), nil
}
