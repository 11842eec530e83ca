package handlers

import (
	"context"

	"kiwi/internal/database"
	"kiwi/internal/indexer"
)

// Syncer is the sync engine as seen by the HTTP layer.
type Syncer interface {
	IsReady() bool
	IsRunning() bool
	TriggerSync() bool
	GetHealthStatus() indexer.HealthStatus
	GetProgress() indexer.Progress
	LastResult() *indexer.SyncResult
}

// ItemStore is the read side of the index.
type ItemStore interface {
	Ping(ctx context.Context) error
	GetItem(ctx context.Context, id string) (*database.Item, error)
	Stats(ctx context.Context) (database.Stats, error)
}

var (
	_ Syncer    = (*indexer.Indexer)(nil)
	_ ItemStore = (*database.Database)(nil)
)

type Handlers struct {
	store  ItemStore
	syncer Syncer
}

func New(store ItemStore, syncer Syncer) *Handlers {
	return &Handlers{
		store:  store,
		syncer: syncer,
	}
}
