// Package storage defines the persistence behavior the ledger requires.
// Implementations live in the sub-packages.
package storage

import (
	"context"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/lineage"
)

// Reader represents the queries the ledger runs. Records that don't exist
// are reported with database.ErrNotFound.
type Reader interface {
	lineage.Store
	lineage.Lookup

	IndexByHash(ctx context.Context, hash string) (lineage.Index, error)
	StarLog(ctx context.Context, hash string) (database.StarLog, error)
	Fleet(ctx context.Context, hash string) (database.Fleet, error)
	EventSignature(ctx context.Context, hash string) (database.EventSignature, error)
	Event(ctx context.Context, key string) (database.Event, error)

	// Bindings returns every star log binding of the event signature.
	Bindings(ctx context.Context, signatureHash string) ([]database.Binding, error)

	// BindingsForStarLog returns the bindings of a star log ordered by index.
	BindingsForStarLog(ctx context.Context, starLogHash string) ([]database.Binding, error)

	// Consumers returns the hash of every event signature that ever listed
	// the key as an input.
	Consumers(ctx context.Context, key string) ([]string, error)

	QueryStarLogs(ctx context.Context, filter database.StarLogFilter) ([]database.StarLog, error)
	ChainHeads(ctx context.Context, height *uint64, limit int) ([]lineage.Index, error)
}

// Writer represents the inserts an admission performs.
type Writer interface {
	InsertIndex(ctx context.Context, idx lineage.Index) (lineage.Index, error)
	InsertStarLog(ctx context.Context, sl database.StarLog) error
	UpsertFleet(ctx context.Context, fleet database.Fleet) error
	InsertEventSignature(ctx context.Context, es database.EventSignature) error
	InsertEvent(ctx context.Context, ev database.Event) error
	IncrementConfirmations(ctx context.Context, signatureHash string) error
	InsertBinding(ctx context.Context, b database.Binding) error
}

// Tx is a unit of work. Nothing it writes is visible to other readers until
// Commit. Rollback after Commit is a no-op.
type Tx interface {
	Reader
	Writer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is a ledger persistence backend. Reads on the store see committed
// data only.
type Store interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
	Close() error
}
