package lineage_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/lineage"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func add(t *testing.T, arena *lineage.Arena, prev *lineage.Index, hash string) lineage.Index {
	t.Helper()

	prevHash := "genesis"
	if prev != nil {
		prevHash = prev.Hash
	}

	idx, err := lineage.Next(context.Background(), arena, prev, hash, prevHash)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute lineage for %s: %s", failed, hash, err)
	}

	idx, err = arena.Insert(idx)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to insert %s: %s", failed, hash, err)
	}

	return idx
}

// =============================================================================

func Test_Next(t *testing.T) {
	arena := lineage.NewArena()

	t.Log("Given the need to assign lineage to star logs.")
	{
		g := add(t, arena, nil, "g")
		if g.ChainID != 0 || g.Height != 0 || g.HasRoot() {
			t.Fatalf("\t%s\tShould put the first genesis on chain 0 with no root: %+v", failed, g)
		}
		t.Logf("\t%s\tShould put the first genesis on chain 0 with no root.", success)

		a1 := add(t, arena, &g, "a1")
		if a1.ChainID != 0 || a1.Height != 1 || a1.HasRoot() || a1.PreviousID != g.ID {
			t.Fatalf("\t%s\tShould extend chain 0: %+v", failed, a1)
		}
		t.Logf("\t%s\tShould extend chain 0.", success)

		b1 := add(t, arena, &g, "b1")
		if b1.ChainID != 1 || b1.Height != 1 || b1.RootID != g.ID {
			t.Fatalf("\t%s\tShould fork a sibling onto chain 1 rooted at genesis: %+v", failed, b1)
		}
		t.Logf("\t%s\tShould fork a sibling onto a new chain.", success)

		b2 := add(t, arena, &b1, "b2")
		if b2.ChainID != 1 || b2.RootID != g.ID {
			t.Fatalf("\t%s\tShould propagate the root along chain 1: %+v", failed, b2)
		}
		t.Logf("\t%s\tShould propagate the root when extending a fork.", success)

		a2 := add(t, arena, &a1, "a2")
		c2 := add(t, arena, &a1, "c2")
		if a2.ChainID != 0 || c2.ChainID != 2 || c2.RootID != a1.ID {
			t.Fatalf("\t%s\tShould fork c2 onto chain 2 rooted at a1: %+v", failed, c2)
		}

		g2 := add(t, arena, nil, "g2")
		if g2.ChainID != 3 || g2.HasRoot() {
			t.Fatalf("\t%s\tShould give a second genesis the next chain: %+v", failed, g2)
		}
		t.Logf("\t%s\tShould give a second genesis the next chain.", success)

		heads := arena.Heads(nil)
		if len(heads) != 4 || heads[0].Hash != "a2" || heads[1].Hash != "b2" || heads[2].Hash != "c2" {
			t.Fatalf("\t%s\tShould order heads by height then chain: %+v", failed, heads)
		}
		t.Logf("\t%s\tShould order heads by height then chain.", success)

		height := uint64(0)
		if heads := arena.Heads(&height); len(heads) != 1 || heads[0].Hash != "g2" {
			t.Fatalf("\t%s\tShould filter heads by height: %+v", failed, heads)
		}
	}
}

func Test_Ancestry(t *testing.T) {
	ctx := context.Background()
	arena := lineage.NewArena()

	g := add(t, arena, nil, "g")
	a1 := add(t, arena, &g, "a1")
	b1 := add(t, arena, &g, "b1")
	a2 := add(t, arena, &a1, "a2")
	c2 := add(t, arena, &a1, "c2")
	b2 := add(t, arena, &b1, "b2")

	t.Log("Given the need to walk the ancestry of a star log.")
	{
		anc, err := lineage.Walk(ctx, arena, b2)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to walk b2: %s", failed, err)
		}

		if !anc.Contains(b1.ChainID, b1.Height) || !anc.Contains(g.ChainID, g.Height) {
			t.Fatalf("\t%s\tShould contain b1 and genesis: %v", failed, anc)
		}

		if anc.Contains(a1.ChainID, a1.Height) || anc.Contains(a2.ChainID, a2.Height) {
			t.Fatalf("\t%s\tShould not contain the sibling chain above the fork: %v", failed, anc)
		}
		t.Logf("\t%s\tShould bound each ancestor chain at its fork height.", success)

		ok, err := lineage.IsAncestorLineage(ctx, arena, g.ChainID, c2)
		if err != nil || !ok {
			t.Fatalf("\t%s\tShould find chain 0 in the lineage of c2: %v", failed, err)
		}

		ok, _ = lineage.IsAncestorLineage(ctx, arena, b1.ChainID, c2)
		if ok {
			t.Fatalf("\t%s\tShould not find chain 1 in the lineage of c2.", failed)
		}
		t.Logf("\t%s\tShould answer lineage membership.", success)
	}
}

// countingLookup is a map backed lookup that records how often it is used.
type countingLookup struct {
	nodes map[int64]lineage.Index
	calls int
}

func (c *countingLookup) IndexByID(ctx context.Context, id int64) (lineage.Index, error) {
	c.calls++
	idx, exists := c.nodes[id]
	if !exists {
		return lineage.Index{}, fmt.Errorf("id[%d]: %w", id, lineage.ErrNotFound)
	}
	return idx, nil
}

func Test_AncestryTerminates(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need for ancestry walks to terminate.")
	{
		const depth = 50

		arena := lineage.NewArena()
		prev := add(t, arena, nil, "g")
		for i := 0; i < depth; i++ {
			add(t, arena, &prev, fmt.Sprintf("main-%d", i))
			prev = add(t, arena, &prev, fmt.Sprintf("fork-%d", i))
		}

		lookup := countingLookup{nodes: make(map[int64]lineage.Index)}
		for id := int64(0); id < int64(arena.Len()); id++ {
			idx, _ := arena.IndexByID(ctx, id)
			lookup.nodes[id] = idx
		}

		anc, err := lineage.Walk(ctx, &lookup, prev)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to walk a deep fork: %s", failed, err)
		}

		if len(anc) != depth+1 {
			t.Fatalf("\t%s\tShould visit every chain once: got %d", failed, len(anc))
		}

		if lookup.calls > depth {
			t.Fatalf("\t%s\tShould need no more steps than the fork depth: got %d", failed, lookup.calls)
		}
		t.Logf("\t%s\tShould walk in steps bounded by the fork depth.", success)

		cyclic := countingLookup{
			nodes: map[int64]lineage.Index{
				0: {ID: 0, ChainID: 0, RootID: 1, Height: 5},
				1: {ID: 1, ChainID: 1, RootID: 0, Height: 4},
			},
		}

		anc, err = lineage.Walk(ctx, &cyclic, cyclic.nodes[0])
		if err != nil {
			t.Fatalf("\t%s\tShould be able to walk cyclic data: %s", failed, err)
		}

		if len(anc) != 2 || cyclic.calls != 2 {
			t.Fatalf("\t%s\tShould stop when a chain repeats: %v calls[%d]", failed, anc, cyclic.calls)
		}
		t.Logf("\t%s\tShould stop when a chain repeats.", success)
	}
}
