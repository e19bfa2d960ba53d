// Package entityclient resolves entity client connection strings into the
// metadata, store provider and provider connection string they name, and
// opens store connections through a shared pool.
package entityclient

import "github.com/leapstack-labs/leapconn/pkg/connstr"

// Canonical entity client keywords.
const (
	KeywordName                     = "name"
	KeywordMetadata                 = "metadata"
	KeywordProvider                 = "provider"
	KeywordProviderConnectionString = "provider connection string"
)

// EntityClientProviderName is the provider name a named connection must
// declare to be usable as an entity client connection.
const EntityClientProviderName = "leapconn.entityclient"

// Keywords is the entity client keyword table. Any other keyword is
// rejected when parsing.
var Keywords = connstr.NewSynonyms(
	connstr.Keyword{Name: KeywordName},
	connstr.Keyword{Name: KeywordMetadata},
	connstr.Keyword{Name: KeywordProvider},
	connstr.Keyword{Name: KeywordProviderConnectionString, Aliases: []string{"providerconnectionstring"}},
)
