package lineage

import (
	"context"
	"fmt"
	"sort"
)

// Ancestry maps every chain in the history of an index to the highest
// height of that chain which belongs to the history. Heights above the
// ceiling are on the same chain but were added after the fork point.
type Ancestry map[int64]uint64

// Walk collects the ancestry of the index by following root references
// until a chain with no root is reached. A chain seen twice ends the walk,
// so the number of steps is bounded by the fork depth.
func Walk(ctx context.Context, lookup Lookup, of Index) (Ancestry, error) {
	anc := Ancestry{of.ChainID: of.Height}

	cur := of
	for cur.HasRoot() {
		root, err := lookup.IndexByID(ctx, cur.RootID)
		if err != nil {
			return nil, fmt.Errorf("walk root[%d]: %w", cur.RootID, err)
		}

		if _, seen := anc[root.ChainID]; seen {
			break
		}

		anc[root.ChainID] = root.Height
		cur = root
	}

	return anc, nil
}

// Contains reports whether a star log at the height on the chain is part
// of the history.
func (anc Ancestry) Contains(chainID int64, height uint64) bool {
	ceiling, exists := anc[chainID]
	if !exists {
		return false
	}
	return height <= ceiling
}

// HasChain reports whether the chain appears anywhere in the history.
func (anc Ancestry) HasChain(chainID int64) bool {
	_, exists := anc[chainID]
	return exists
}

// Chains returns the chain ids in the history in ascending order.
func (anc Ancestry) Chains() []int64 {
	chains := make([]int64, 0, len(anc))
	for id := range anc {
		chains = append(chains, id)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// IsAncestorLineage reports whether the candidate chain is in the ancestry
// of the index, the starting chain included.
func IsAncestorLineage(ctx context.Context, lookup Lookup, candidateChainID int64, of Index) (bool, error) {
	anc, err := Walk(ctx, lookup, of)
	if err != nil {
		return false, err
	}
	return anc.HasChain(candidateChainID), nil
}
