// Package mysql provides the MySQL store provider.
package mysql

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/leapconn/pkg/connstr"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

// Name is the invariant provider name.
const Name = "mysql"

// Keywords is the provider connection string keyword table.
var Keywords = connstr.NewSynonyms(
	connstr.Keyword{Name: "server", Aliases: []string{"host", "data source", "address"}},
	connstr.Keyword{Name: "port"},
	connstr.Keyword{Name: "database", Aliases: []string{"initial catalog"}},
	connstr.Keyword{Name: "user id", Aliases: []string{"uid", "user", "username"}},
	connstr.Keyword{Name: "password", Aliases: []string{"pwd"}},
	connstr.Keyword{Name: "charset", Aliases: []string{"character set"}},
	connstr.Keyword{Name: "tls", Aliases: []string{"ssl mode", "sslmode"}},
	connstr.Keyword{Name: "parse time", Aliases: []string{"parsetime"}},
	connstr.Keyword{Name: "timeout", Aliases: []string{"connect timeout", "connection timeout"}},
)

// Params holds MySQL connection settings decoded from the provider
// connection string.
type Params struct {
	Server    string `mapstructure:"server"`
	Port      int    `mapstructure:"port"`
	Database  string `mapstructure:"database"`
	User      string `mapstructure:"user id"`
	Password  string `mapstructure:"password"`
	Charset   string `mapstructure:"charset"`
	TLS       string `mapstructure:"tls"`
	ParseTime bool   `mapstructure:"parse time"`
	// Timeout is the dial timeout in seconds.
	Timeout int `mapstructure:"timeout"`
}

// Provider implements provider.Provider for MySQL.
type Provider struct {
	provider.Base
}

// New creates a new MySQL provider.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Provider {
	return &Provider{Base: provider.NewBase(Name, "mysql", Keywords, logger)}
}

// DSN builds a go-sql-driver/mysql data source name.
func (p *Provider) DSN(values map[string]string) (string, error) {
	var params Params
	if err := provider.Decode(values, &params); err != nil {
		return "", err
	}

	host := params.Server
	if host == "" {
		host = "localhost"
	}
	port := params.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.User = params.User
	cfg.Passwd = params.Password
	cfg.DBName = params.Database
	cfg.ParseTime = params.ParseTime
	cfg.TLSConfig = params.TLS
	if params.Charset != "" {
		cfg.Params = map[string]string{"charset": params.Charset}
	}
	if params.Timeout > 0 {
		cfg.Timeout = time.Duration(params.Timeout) * time.Second
	}

	p.Logger.Debug("built mysql dsn", slog.String("addr", cfg.Addr), slog.String("database", cfg.DBName))
	return cfg.FormatDSN(), nil
}
