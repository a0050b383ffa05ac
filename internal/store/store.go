// Package store persists uploaded slot datasets so an interactive session
// can survive a server restart. Persistence is opt-in: the default driver is
// "none" and the dashboard runs entirely in memory.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// SlotInfo summarizes one persisted slot.
type SlotInfo struct {
	Slot       string    `json:"slot"`
	RowCount   int       `json:"row_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store is the persistence interface for slot datasets. One row per
// (session, slot); saving replaces wholesale, mirroring the in-memory swap.
type Store interface {
	SaveDataset(ctx context.Context, sessionID, slot string, ds *tabular.Dataset) error
	GetDataset(ctx context.Context, sessionID, slot string) (*tabular.Dataset, error)
	ListSlots(ctx context.Context, sessionID string) ([]SlotInfo, error)
	DeleteExpired(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver. Driver "none" (or empty)
// returns nil, nil: callers treat a nil store as memory-only operation.
func Open(ctx context.Context, driver, url string, ttl time.Duration) (Store, error) {
	switch driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		s, err := NewSQLite(url, ttl)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, url, ttl)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: none, sqlite, postgres)", driver)
	}
}
