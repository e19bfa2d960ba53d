package provider

import (
	"context"
	"database/sql"
	"fmt"
	"maps"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapconn/pkg/connstr"
	"github.com/leapstack-labs/leapconn/pkg/datadir"
)

// Open parses a provider connection string, builds the driver DSN and
// returns a pinged *sql.DB.
func Open(ctx context.Context, p Provider, connectionString string, expander datadir.Expander) (*sql.DB, error) {
	dsn, err := BuildDSN(p, connectionString, expander)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(p.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", p.Name(), err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", p.Name(), err)
	}
	return db, nil
}

// BuildDSN parses a provider connection string with the provider's keyword
// table, expands path keywords and asks the provider for its DSN.
func BuildDSN(p Provider, connectionString string, expander datadir.Expander) (string, error) {
	opts, err := connstr.Parse(connectionString, p.Synonyms())
	if err != nil {
		return "", fmt.Errorf("invalid %s connection string: %w", p.Name(), err)
	}

	values := opts.Entries()
	expanded, err := expander.ExpandOptions(opts, p.PathKeywords()...)
	if err != nil {
		return "", err
	}
	maps.Copy(values, expanded)

	return p.DSN(values)
}

// Decode copies canonical keyword values into a params struct tagged with
// `mapstructure:"<keyword>"`. Strings are converted to the field types, so
// "5432" fills an int and "true" fills a bool.
func Decode(values map[string]string, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return fmt.Errorf("invalid connection option: %w", err)
	}
	return nil
}
