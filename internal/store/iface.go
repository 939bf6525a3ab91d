package store

import (
	"context"
	"encoding/json"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Adapter is the persistence contract the state store writes through.
// Implementations: *sqlite.Store, *postgres.Store, *remote.Store, *remote.LiveStore, *grpc.Store.
//
// Persistence granularity is the whole collection: SaveCollection replaces every item of
// one kind. Errors are classified into the types in errors.go.
type Adapter interface {
	// LoadAll returns every collection. Missing collections are empty, never nil.
	LoadAll(ctx context.Context) (models.Snapshot, error)
	// SaveCollection replaces the collection of the given kind with items (a JSON array).
	SaveCollection(ctx context.Context, kind models.Kind, items json.RawMessage) error
	Close() error
}

// Subscriber is implemented by adapters that push changes made outside this process.
// onChange receives a full snapshot, including echoes of this process's own writes, and is
// never invoked synchronously from within SaveCollection. The first delivery is the
// initial snapshot.
type Subscriber interface {
	Subscribe(ctx context.Context, onChange func(models.Snapshot)) (unsubscribe func(), err error)
}

// BatchSaver is implemented by adapters that can replace several collections atomically.
type BatchSaver interface {
	SaveAll(ctx context.Context, cols map[models.Kind]json.RawMessage) error
}
