package indexer

import (
	"context"
	"time"

	"kiwi/internal/database"
)

// Store is the index the engine reconciles against. *database.Database
// implements it.
type Store interface {
	Ping(ctx context.Context) error
	AllItemIDs(ctx context.Context) ([]string, error)
	ItemStates(ctx context.Context) (map[string]database.ItemState, error)
	GetItem(ctx context.Context, id string) (*database.Item, error)
	UpsertItems(ctx context.Context, items []database.Item) ([]database.RowError, error)
	DeleteItems(ctx context.Context, ids []string) (int64, error)
	DeleteRelationships(ctx context.Context, kind database.RelationKind, ids []string) error
	InsertRelationships(ctx context.Context, kind database.RelationKind, pairs []database.Pair) ([]database.RowError, error)
	ClearContentHashes(ctx context.Context, ids []string) error
	GetCursor(ctx context.Context) (time.Time, error)
	SetSyncState(ctx context.Context, cursor time.Time, count int) error
	CountItems(ctx context.Context) (int, error)
	GetItemCount(ctx context.Context) (int, error)
}

var _ Store = (*database.Database)(nil)
