package entityclient

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapconn/pkg/connstr"
	"github.com/leapstack-labs/leapconn/pkg/datadir"
)

// entityTable names the entity keyword table in the parse cache.
const entityTable = "entityclient"

// NamedConnection is a connection string registered under a name.
type NamedConnection struct {
	Name             string
	ProviderName     string
	ConnectionString string
}

// NamedConnections looks up named connection strings.
type NamedConnections interface {
	Lookup(name string) (NamedConnection, bool)
}

// NamedConnectionMap is an in-memory NamedConnections keyed by name.
type NamedConnectionMap map[string]NamedConnection

// Lookup returns the named connection.
func (m NamedConnectionMap) Lookup(name string) (NamedConnection, bool) {
	nc, ok := m[name]
	if ok && nc.Name == "" {
		nc.Name = name
	}
	return nc, ok
}

// Settings is a resolved entity client connection string.
type Settings struct {
	// User holds the options as supplied by the caller.
	User *connstr.Options
	// Effective holds the options in force: User, or the named connection
	// that User refers to.
	Effective *connstr.Options
	// Name is the named connection used, empty when none was.
	Name string

	Metadata                    []string
	Provider                    string
	ProviderConnectionString    string
	HasProviderConnectionString bool
}

// IsEmpty reports whether the connection string held no pairs.
func (s *Settings) IsEmpty() bool {
	return s.Effective == nil || s.Effective.IsEmpty()
}

// Resolver turns entity client connection strings into Settings.
type Resolver struct {
	Named  NamedConnections
	Logger *slog.Logger
	Cache  *ParseCache
}

// NewResolver creates a resolver. named may be nil when no named
// connections are available. If logger is nil, a discard logger is used.
func NewResolver(named NamedConnections, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		Named:  named,
		Logger: logger,
		Cache:  NewParseCache(0),
	}
}

// Resolve parses connectionString with the entity client keywords,
// follows a "name" reference and validates the required keywords.
// The empty string resolves to empty Settings.
func (r *Resolver) Resolve(connectionString string) (*Settings, error) {
	user, err := r.parse(connectionString)
	if err != nil {
		return nil, err
	}

	s := &Settings{User: user, Effective: user}
	if user.IsEmpty() {
		return s, nil
	}

	if name := user.Get(KeywordName); name != "" {
		if user.Len() > 1 {
			return nil, ErrExtraParametersWithName
		}

		named, ok := r.lookup(name)
		if !ok || named.ProviderName != EntityClientProviderName {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNamedConnection, name)
		}

		effective, err := r.parse(named.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("named connection %q: %w", name, err)
		}
		if effective.Has(KeywordName) {
			return nil, &NestedNamedConnectionError{Name: name}
		}

		s.Name = name
		s.Effective = effective
	}

	metadata, err := requiredValue(s.Effective, KeywordMetadata)
	if err != nil {
		return nil, err
	}
	s.Metadata = splitMetadata(metadata)

	if s.Provider, err = requiredValue(s.Effective, KeywordProvider); err != nil {
		return nil, err
	}

	s.ProviderConnectionString, s.HasProviderConnectionString = s.Effective.Lookup(KeywordProviderConnectionString)

	r.logger().Debug("resolved connection string",
		slog.String("name", s.Name),
		slog.String("provider", s.Provider),
		slog.String("connection", s.Effective.Redacted()))
	return s, nil
}

func (r *Resolver) parse(raw string) (*connstr.Options, error) {
	if r.Cache == nil {
		return connstr.Parse(raw, Keywords)
	}
	return r.Cache.Parse(entityTable, raw, Keywords)
}

func (r *Resolver) lookup(name string) (NamedConnection, bool) {
	if r.Named == nil {
		return NamedConnection{}, false
	}
	return r.Named.Lookup(name)
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// requiredValue returns the trimmed value of keyword or a
// *MissingKeywordError when it is absent or blank.
func requiredValue(opts *connstr.Options, keyword string) (string, error) {
	v := strings.TrimSpace(opts.Get(keyword))
	if v == "" {
		return "", &MissingKeywordError{Keyword: keyword}
	}
	return v, nil
}

// splitMetadata splits a '|' separated metadata list, dropping blank paths.
// A path may start with the |DataDirectory| placeholder.
func splitMetadata(value string) []string {
	var paths []string
	add := func(p string) {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}

	start := 0
	for i := 0; i < len(value); i++ {
		if value[i] != '|' {
			continue
		}
		if strings.TrimSpace(value[start:i]) == "" && datadir.HasPlaceholder(value[i:]) {
			i += len(datadir.Placeholder) - 1
			continue
		}
		add(value[start:i])
		start = i + 1
	}
	add(value[start:])
	return paths
}
