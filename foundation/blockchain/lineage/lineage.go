// Package lineage tracks which chain every star log belongs to. A chain is an
// unbroken run of star logs; a new chain is minted whenever a star log lands
// on a height that its parent's chain already has an occupant for.
package lineage

import (
	"context"
	"errors"
	"fmt"
)

// NoID marks an absent root or previous reference.
const NoID int64 = -1

// ErrNotFound is returned when an index can't be resolved.
var ErrNotFound = errors.New("lineage index not found")

// Index is the lineage record kept for every accepted star log.
type Index struct {
	ID           int64  `json:"id"`
	RootID       int64  `json:"root_id"`
	PreviousID   int64  `json:"previous_id"`
	Height       uint64 `json:"height"`
	ChainID      int64  `json:"chain"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
}

// HasRoot reports whether the chain of this index diverged from another.
func (idx Index) HasRoot() bool {
	return idx.RootID != NoID
}

// =============================================================================

// Store is the behavior required to assign lineage to a new star log.
type Store interface {
	SlotOccupied(ctx context.Context, height uint64, chainID int64) (bool, error)
	MaxChainID(ctx context.Context) (int64, bool, error)
}

// Lookup resolves lineage indexes by id.
type Lookup interface {
	IndexByID(ctx context.Context, id int64) (Index, error)
}

// Next computes the lineage for a star log with the specified hashes. A nil
// previous index means the star log is a genesis. The returned index has no
// ID, that is assigned by storage on insert.
func Next(ctx context.Context, store Store, prev *Index, hash string, previousHash string) (Index, error) {
	idx := Index{
		ID:           NoID,
		RootID:       NoID,
		PreviousID:   NoID,
		Hash:         hash,
		PreviousHash: previousHash,
	}

	// Genesis starts chain zero or the next unused chain.
	if prev == nil {
		chainID, err := nextChainID(ctx, store)
		if err != nil {
			return Index{}, err
		}

		idx.ChainID = chainID
		return idx, nil
	}

	idx.Height = prev.Height + 1
	idx.PreviousID = prev.ID

	occupied, err := store.SlotOccupied(ctx, idx.Height, prev.ChainID)
	if err != nil {
		return Index{}, fmt.Errorf("slot occupied: %w", err)
	}

	// Extension keeps the chain and inherits where it diverged.
	if !occupied {
		idx.ChainID = prev.ChainID
		idx.RootID = prev.RootID
		return idx, nil
	}

	// Sibling: a new chain rooted at the parent.
	chainID, err := nextChainID(ctx, store)
	if err != nil {
		return Index{}, err
	}

	idx.ChainID = chainID
	idx.RootID = prev.ID

	return idx, nil
}

func nextChainID(ctx context.Context, store Store) (int64, error) {
	maxID, exists, err := store.MaxChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("max chain id: %w", err)
	}

	if !exists {
		return 0, nil
	}

	return maxID + 1, nil
}
