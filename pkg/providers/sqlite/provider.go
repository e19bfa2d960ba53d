// Package sqlite provides the SQLite store provider backed by the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/leapstack-labs/leapconn/pkg/connstr"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

// Name is the invariant provider name.
const Name = "sqlite"

// Keywords is the provider connection string keyword table.
var Keywords = connstr.NewSynonyms(
	connstr.Keyword{Name: "data source", Aliases: []string{"datasource", "filename", "path"}},
	connstr.Keyword{Name: "mode"},
	connstr.Keyword{Name: "foreign keys", Aliases: []string{"foreignkeys"}},
	connstr.Keyword{Name: "journal mode", Aliases: []string{"journalmode"}},
	connstr.Keyword{Name: "busy timeout", Aliases: []string{"busytimeout", "default timeout"}},
)

var validModes = map[string]bool{"ro": true, "rw": true, "rwc": true, "memory": true}

// Params holds SQLite connection settings decoded from the provider
// connection string.
type Params struct {
	DataSource  string `mapstructure:"data source"`
	Mode        string `mapstructure:"mode"`
	ForeignKeys *bool  `mapstructure:"foreign keys"`
	JournalMode string `mapstructure:"journal mode"`
	// BusyTimeout is in milliseconds.
	BusyTimeout int `mapstructure:"busy timeout"`
}

// Provider implements provider.Provider for SQLite.
type Provider struct {
	provider.Base
}

// New creates a new SQLite provider.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Provider {
	return &Provider{Base: provider.NewBase(Name, "sqlite", Keywords, logger, "data source")}
}

// DSN builds a file: URI with _pragma parameters understood by the driver.
// An empty data source opens an in-memory database.
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
	if params.Mode != "" {
		mode := strings.ToLower(params.Mode)
		if !validModes[mode] {
			return "", fmt.Errorf("invalid sqlite mode %q", params.Mode)
		}
		q.Set("mode", mode)
	}
	// foreign keys default to on
	if params.ForeignKeys == nil || *params.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	} else {
		q.Add("_pragma", "foreign_keys(0)")
	}
	if params.JournalMode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(params.JournalMode)))
	}
	if params.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", params.BusyTimeout))
	}

	p.Logger.Debug("built sqlite dsn", slog.String("path", path))
	return "file:" + escapePath(path) + "?" + q.Encode(), nil
}

var pathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func escapePath(path string) string {
	return pathEscaper.Replace(path)
}
