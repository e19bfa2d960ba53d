// Package postgres provides the PostgreSQL store provider.
package postgres

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/leapconn/pkg/connstr"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

// Name is the invariant provider name.
const Name = "postgres"

// Keywords is the provider connection string keyword table.
var Keywords = connstr.NewSynonyms(
	connstr.Keyword{Name: "host", Aliases: []string{"server", "data source", "address", "addr"}},
	connstr.Keyword{Name: "port"},
	connstr.Keyword{Name: "database", Aliases: []string{"initial catalog", "dbname"}},
	connstr.Keyword{Name: "user id", Aliases: []string{"user", "username", "uid", "userid"}},
	connstr.Keyword{Name: "password", Aliases: []string{"pwd"}},
	connstr.Keyword{Name: "ssl mode", Aliases: []string{"sslmode"}},
	connstr.Keyword{Name: "search path", Aliases: []string{"searchpath"}},
	connstr.Keyword{Name: "application name", Aliases: []string{"applicationname"}},
	connstr.Keyword{Name: "timeout", Aliases: []string{"connect timeout", "connection timeout"}},
)

// Params holds PostgreSQL connection settings decoded from the provider
// connection string.
type Params struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user id"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl mode"`
	SearchPath      string `mapstructure:"search path"`
	ApplicationName string `mapstructure:"application name"`
	// Timeout is the connect timeout in seconds.
	Timeout int `mapstructure:"timeout"`
}

// Provider implements provider.Provider for PostgreSQL.
type Provider struct {
	provider.Base
}

// New creates a new PostgreSQL provider.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Provider {
	return &Provider{Base: provider.NewBase(Name, "pgx", Keywords, logger)}
}

// DSN builds a postgres:// URL understood by pgx.
func (p *Provider) DSN(values map[string]string) (string, error) {
	var params Params
	if err := provider.Decode(values, &params); err != nil {
		return "", err
	}

	host := params.Host
	if host == "" {
		host = "localhost"
	}
	port := params.Port
	if port == 0 {
		port = 5432
	}
	sslmode := params.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + params.Database,
	}
	if params.User != "" {
		if params.Password != "" {
			u.User = url.UserPassword(params.User, params.Password)
		} else {
			u.User = url.User(params.User)
		}
	}

	q := url.Values{}
	q.Set("sslmode", sslmode)
	if params.SearchPath != "" {
		q.Set("search_path", params.SearchPath)
	}
	if params.ApplicationName != "" {
		q.Set("application_name", params.ApplicationName)
	}
	if params.Timeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(params.Timeout))
	}
	u.RawQuery = q.Encode()

	dsn := u.String()
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("invalid postgres connection settings: %w", err)
	}

	p.Logger.Debug("built postgres dsn", slog.String("host", host), slog.String("database", params.Database))
	return dsn, nil
}
