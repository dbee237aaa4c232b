// Package memorystorage provides the in-memory storage tier used when no
// database DSN or storage file is configured. It reuses the jsondb cache
// without a backing file.
package memorystorage

import (
	"github.com/clipr-link/clipr/internal/db/jsondb"
)

// MemoryStorage keeps all records in memory; nothing survives a restart.
type MemoryStorage struct {
	*jsondb.JSONDB
}

// New creates an empty in-memory storage.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewTransient(),
	}, nil
}
