package lineage

import (
	"context"
	"fmt"
	"sort"
)

type slot struct {
	height  uint64
	chainID int64
}

// Arena holds lineage indexes addressed by their integer id. Root and
// previous references are ids into the same arena. An Arena is not safe for
// concurrent use, the owner provides the locking.
type Arena struct {
	nodes  []Index
	slots  map[slot]int64
	byHash map[string]int64
	heads  map[int64]int64
}

// NewArena constructs an empty arena.
func NewArena() *Arena {
	return &Arena{
		slots:  make(map[slot]int64),
		byHash: make(map[string]int64),
		heads:  make(map[int64]int64),
	}
}

// Clone returns an independent copy of the arena.
func (a *Arena) Clone() *Arena {
	cpy := Arena{
		nodes:  make([]Index, len(a.nodes)),
		slots:  make(map[slot]int64, len(a.slots)),
		byHash: make(map[string]int64, len(a.byHash)),
		heads:  make(map[int64]int64, len(a.heads)),
	}

	copy(cpy.nodes, a.nodes)
	for k, v := range a.slots {
		cpy.slots[k] = v
	}
	for k, v := range a.byHash {
		cpy.byHash[k] = v
	}
	for k, v := range a.heads {
		cpy.heads[k] = v
	}

	return &cpy
}

// Insert assigns the next id to the index and stores it.
func (a *Arena) Insert(idx Index) (Index, error) {
	if _, exists := a.byHash[idx.Hash]; exists {
		return Index{}, fmt.Errorf("hash %s already indexed", idx.Hash)
	}

	s := slot{height: idx.Height, chainID: idx.ChainID}
	if _, exists := a.slots[s]; exists {
		return Index{}, fmt.Errorf("height %d on chain %d already occupied", idx.Height, idx.ChainID)
	}

	idx.ID = int64(len(a.nodes))
	a.nodes = append(a.nodes, idx)
	a.slots[s] = idx.ID
	a.byHash[idx.Hash] = idx.ID

	if head, exists := a.heads[idx.ChainID]; !exists || a.nodes[head].Height < idx.Height {
		a.heads[idx.ChainID] = idx.ID
	}

	return idx, nil
}

// Len returns the number of indexes in the arena.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// IndexByID implements the Lookup interface.
func (a *Arena) IndexByID(ctx context.Context, id int64) (Index, error) {
	if id < 0 || id >= int64(len(a.nodes)) {
		return Index{}, fmt.Errorf("id[%d]: %w", id, ErrNotFound)
	}
	return a.nodes[id], nil
}

// IndexByHash returns the index of the star log with the hash.
func (a *Arena) IndexByHash(ctx context.Context, hash string) (Index, error) {
	id, exists := a.byHash[hash]
	if !exists {
		return Index{}, fmt.Errorf("hash[%s]: %w", hash, ErrNotFound)
	}
	return a.nodes[id], nil
}

// SlotOccupied implements the Store interface.
func (a *Arena) SlotOccupied(ctx context.Context, height uint64, chainID int64) (bool, error) {
	_, exists := a.slots[slot{height: height, chainID: chainID}]
	return exists, nil
}

// MaxChainID implements the Store interface.
func (a *Arena) MaxChainID(ctx context.Context) (int64, bool, error) {
	if len(a.heads) == 0 {
		return 0, false, nil
	}

	var maxID int64 = -1
	for chainID := range a.heads {
		maxID = max(maxID, chainID)
	}

	return maxID, true, nil
}

// Heads returns the highest index of every chain, highest first and then by
// chain id. A nil height keeps every chain, otherwise only chains whose head
// is at that height are returned.
func (a *Arena) Heads(height *uint64) []Index {
	heads := make([]Index, 0, len(a.heads))
	for _, id := range a.heads {
		idx := a.nodes[id]
		if height != nil && idx.Height != *height {
			continue
		}
		heads = append(heads, idx)
	}

	SortHeads(heads)
	return heads
}

// SortHeads orders chain heads by descending height, then ascending chain id.
// The first element is the best head.
func SortHeads(heads []Index) {
	sort.Slice(heads, func(i, j int) bool {
		if heads[i].Height != heads[j].Height {
			return heads[i].Height > heads[j].Height
		}
		return heads[i].ChainID < heads[j].ChainID
	})
}
