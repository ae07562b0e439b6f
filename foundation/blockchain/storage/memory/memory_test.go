package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/lineage"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/storage/memory"
)

func starLog(name string, prev string, height uint64, tm int64) database.StarLog {
	return database.StarLog{
		Hash:         signature.Hash(name),
		PreviousHash: prev,
		Height:       height,
		Time:         tm,
	}
}

func insert(t *testing.T, mem *memory.Memory, sl database.StarLog, prev *lineage.Index) lineage.Index {
	t.Helper()
	ctx := context.Background()

	tx, err := mem.Begin(ctx)
	if err != nil {
		t.Fatalf("Should be able to begin: %s", err)
	}
	defer tx.Rollback(ctx)

	idx, err := lineage.Next(ctx, tx, prev, sl.Hash, sl.PreviousHash)
	if err != nil {
		t.Fatalf("Should be able to compute lineage: %s", err)
	}

	if idx, err = tx.InsertIndex(ctx, idx); err != nil {
		t.Fatalf("Should be able to insert the index: %s", err)
	}

	sl.ChainID = idx.ChainID
	if err := tx.InsertStarLog(ctx, sl); err != nil {
		t.Fatalf("Should be able to insert the star log: %s", err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Should be able to commit: %s", err)
	}

	return idx
}

// =============================================================================

func Test_CommitRollback(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()

	tx, err := mem.Begin(ctx)
	if err != nil {
		t.Fatalf("Should be able to begin: %s", err)
	}

	es := database.EventSignature{
		Hash:    signature.Hash("sig"),
		Inputs:  []database.EventRef{{Index: 0, Key: "in"}},
		Outputs: []database.EventRef{{Index: 0, Key: "out"}},
	}
	if err := tx.InsertEventSignature(ctx, es); err != nil {
		t.Fatalf("Should be able to insert a signature: %s", err)
	}

	if _, err := tx.EventSignature(ctx, es.Hash); err != nil {
		t.Fatalf("Should see its own writes: %s", err)
	}

	if _, err := mem.EventSignature(ctx, es.Hash); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Should not expose uncommitted writes: %v", err)
	}

	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Should be able to roll back: %s", err)
	}

	if _, err := mem.EventSignature(ctx, es.Hash); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Should discard rolled back writes: %v", err)
	}

	tx, _ = mem.Begin(ctx)
	tx.InsertEventSignature(ctx, es)
	tx.IncrementConfirmations(ctx, es.Hash)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Should be able to commit: %s", err)
	}
	tx.Rollback(ctx)

	got, err := mem.EventSignature(ctx, es.Hash)
	if err != nil || got.Confirmations != 1 {
		t.Fatalf("Should expose committed writes: %+v %v", got, err)
	}

	consumers, _ := mem.Consumers(ctx, "in")
	if len(consumers) != 1 || consumers[0] != es.Hash {
		t.Fatalf("Should index the consumers of an input: %v", consumers)
	}
}

func Test_UpsertFleet(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	hash := signature.Hash("fleet")

	tx, _ := mem.Begin(ctx)
	tx.UpsertFleet(ctx, database.Fleet{Hash: hash})
	tx.UpsertFleet(ctx, database.Fleet{Hash: hash, PublicKey: "KEY"})
	tx.UpsertFleet(ctx, database.Fleet{Hash: hash})
	tx.Commit(ctx)

	f, err := mem.Fleet(ctx, hash)
	if err != nil || f.PublicKey != "KEY" {
		t.Fatalf("Should keep the first known public key: %+v %v", f, err)
	}
}

func Test_Queries(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()

	g := insert(t, mem, starLog("g", signature.ZeroHash, 0, 100), nil)
	a := insert(t, mem, starLog("a", signature.Hash("g"), 1, 200), &g)
	insert(t, mem, starLog("b", signature.Hash("g"), 1, 300), &g)
	insert(t, mem, starLog("c", signature.Hash("a"), 2, 400), &a)

	sls, err := mem.QueryStarLogs(ctx, database.StarLogFilter{Limit: 10})
	if err != nil {
		t.Fatalf("Should be able to query star logs: %s", err)
	}

	if len(sls) != 4 || sls[0].Hash != signature.Hash("c") || sls[3].Hash != signature.Hash("g") {
		t.Fatalf("Should order star logs newest first: %+v", sls)
	}

	before := int64(300)
	sls, _ = mem.QueryStarLogs(ctx, database.StarLogFilter{BeforeTime: &before, Limit: 10})
	if len(sls) != 2 {
		t.Fatalf("Should filter by time: got %d", len(sls))
	}

	sls, _ = mem.QueryStarLogs(ctx, database.StarLogFilter{PreviousHash: signature.Hash("g"), Limit: 1, Offset: 1})
	if len(sls) != 1 || sls[0].Hash != signature.Hash("a") {
		t.Fatalf("Should filter by previous hash and page: %+v", sls)
	}

	heads, _ := mem.ChainHeads(ctx, nil, 10)
	if len(heads) != 2 || heads[0].Hash != signature.Hash("c") || heads[1].ChainID != 1 {
		t.Fatalf("Should list the chain heads: %+v", heads)
	}
}
