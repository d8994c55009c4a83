// Package sqlite exposes the SQLite gazetteer store while keeping its
// implementation internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/internal/sqlite"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// NewBackend returns a detached SQLite store. A nil logger discards output.
//
// Example:
//
//	store := sqlite.NewBackend(nil)
//	err := store.Attach(types.Config{
//	    Backend:   types.BackendSQLite,
//	    DataDir:   ".gazetteer-db",
//	    Authority: types.AuthorityConfig{Code: 7655},
//	})
//	defer store.Detach()
func NewBackend(log *zap.Logger) types.Store {
	return sqlite.NewBackend(log)
}
