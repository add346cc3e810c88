// Package router decides where a family's reads and writes go.
package router

import (
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ident"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

// Destination names a storage backend.
type Destination string

const (
	// Local means the embedded SQLite store is authoritative.
	Local Destination = "local"
	// Remote means the hosted backend is authoritative.
	Remote Destination = "remote"
)

// Route picks the backend for a family. A family is local if it is flagged
// offline OR its identifier still has the locally minted shape: the
// identifier pattern wins even when the flag is stale, so a half-migrated
// family can never be routed at a remote backend that doesn't know it.
func Route(f *types.Family) Destination {
	if f == nil {
		return Local
	}
	if f.IsOffline || ident.IsOffline(f.ID) {
		return Local
	}
	return Remote
}

// RouteID routes by identifier alone, for callers that only have an id.
func RouteID(id string) Destination {
	if ident.IsOffline(id) {
		return Local
	}
	return Remote
}
