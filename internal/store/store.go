// Package store provides durable CRUD over the project, environment and
// service collections. The default backend keeps each collection in a JSON
// file and serializes all mutations through a single mutex; a SQLite backend
// offers the same contract behind one database file.
package store

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"service-ninja/internal/domain"
	"service-ninja/internal/infra/config"
)

// Open creates the store selected by cfg.Backend.
func Open(cfg config.StoreConfig) (domain.Store, error) {
	switch cfg.Backend {
	case "json", "":
		return NewFileStore(cfg.Dir)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// newID generates a fresh unique entity identifier.
func newID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
