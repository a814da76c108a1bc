package config

import (
	"os"
	"strings"

	"tollgate-hq/tollgate/pkg/limiter"
)

// Environment variables consulted by the table name fallback chain.
const (
	EnvFungibleTable    = "TOLLGATE_FUNGIBLE_TABLE"
	EnvNonFungibleTable = "TOLLGATE_NON_FUNGIBLE_TABLE"
	EnvLimitTable       = "TOLLGATE_LIMIT_TABLE"
	EnvServiceIndex     = "TOLLGATE_LIMIT_SERVICE_INDEX"
	EnvResourceIndex    = "TOLLGATE_RESOURCE_INDEX"

	// EnvTableBase synthesizes unset table names as base + "-" + suffix.
	EnvTableBase = "TOLLGATE_TABLE_BASE"
)

// Tables holds the resolved table and index names.
type Tables struct {
	Fungible    string
	NonFungible string
	Limit       string

	ServiceIndex  string
	ResourceIndex string
}

// ResolveTables resolves every table and index name through the fallback
// chain: explicit configuration, the name's own environment variable, a
// name synthesized from the table base, then the built-in default.
func (c *Config) ResolveTables() Tables {
	base := c.Tables.Base
	if base == "" {
		base = os.Getenv(EnvTableBase)
	}

	return Tables{
		Fungible:    resolveTable(c.Tables.Fungible, EnvFungibleTable, base, limiter.DefaultFungibleTable),
		NonFungible: resolveTable(c.Tables.NonFungible, EnvNonFungibleTable, base, limiter.DefaultNonFungibleTable),
		Limit:       resolveTable(c.Tables.Limit, EnvLimitTable, base, limiter.DefaultLimitTable),

		// Indexes are not synthesized from the base; they live inside
		// their table, not beside it.
		ServiceIndex:  resolveTable(c.Tables.ServiceIndex, EnvServiceIndex, "", limiter.DefaultServiceIndex),
		ResourceIndex: resolveTable(c.Tables.ResourceIndex, EnvResourceIndex, "", limiter.DefaultResourceIndex),
	}
}

// resolveTable applies the fallback chain for one name. The default doubles
// as the synthesis suffix, so a base of "prod" yields "prod-fungible".
func resolveTable(explicit, envVar, base, fallback string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if base != "" {
		return strings.TrimSuffix(base, "-") + "-" + fallback
	}
	return fallback
}
