// Package provider defines the store providers that turn a provider
// connection string into an open database/sql handle.
//
// This package contains the contract every provider implements and the
// registry they add themselves to. Concrete providers live in pkg/providers/
// subdirectories and register from their init functions.
package provider

import (
	"log/slog"

	"github.com/leapstack-labs/leapconn/pkg/connstr"
)

// Provider describes one store provider.
type Provider interface {
	// Name returns the invariant name the provider is registered under.
	Name() string

	// DriverName returns the database/sql driver name passed to sql.Open.
	DriverName() string

	// Synonyms returns the keyword table used to parse the provider
	// connection string. Keywords missing from it are rejected.
	Synonyms() connstr.Synonyms

	// PathKeywords lists canonical keywords whose values may start with
	// the |DataDirectory| placeholder.
	PathKeywords() []string

	// DSN builds the driver data source name from canonical keyword values.
	// Path keywords have already been expanded.
	DSN(values map[string]string) (string, error)
}

// Base carries the parts every provider shares. Embed it in concrete
// providers to get Name, DriverName, Synonyms and PathKeywords.
type Base struct {
	ProviderName string
	Driver       string
	Keywords     connstr.Synonyms
	Paths        []string
	Logger       *slog.Logger
}

// NewBase returns a Base with a discard logger when logger is nil.
func NewBase(name, driver string, keywords connstr.Synonyms, logger *slog.Logger, paths ...string) Base {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return Base{
		ProviderName: name,
		Driver:       driver,
		Keywords:     keywords,
		Paths:        paths,
		Logger:       logger,
	}
}

// Name returns the provider name.
func (b *Base) Name() string { return b.ProviderName }

// DriverName returns the database/sql driver name.
func (b *Base) DriverName() string { return b.Driver }

// Synonyms returns the keyword table.
func (b *Base) Synonyms() connstr.Synonyms { return b.Keywords }

// PathKeywords returns the keywords subject to DataDirectory expansion.
func (b *Base) PathKeywords() []string { return b.Paths }
