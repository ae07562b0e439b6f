// Package memory implements the ledger storage in memory. A transaction
// works on a private copy of the data which replaces the shared copy on
// commit, so readers never observe a partial admission.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/lineage"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/storage"
)

// Memory represents the storage implementation for keeping the ledger in
// memory. This implements the storage.Store interface.
type Memory struct {
	mu   sync.RWMutex
	wmu  sync.Mutex
	data *data
}

// New constructs an empty Memory value for use.
func New() *Memory {
	return &Memory{data: newData()}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Begin starts a transaction. Only one transaction can be open at a time,
// Begin blocks until the previous one finishes.
func (m *Memory) Begin(ctx context.Context) (storage.Tx, error) {
	m.wmu.Lock()

	m.mu.RLock()
	cpy := m.data.clone()
	m.mu.RUnlock()

	return &tx{mem: m, data: cpy}, nil
}

// snapshot returns the committed data for a read.
func (m *Memory) snapshot() *data {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}

// =============================================================================
// Reads on the store go to the committed data. Committed data is never
// modified in place, a commit swaps the pointer.

// SlotOccupied implements the lineage.Store interface.
func (m *Memory) SlotOccupied(ctx context.Context, height uint64, chainID int64) (bool, error) {
	return m.snapshot().SlotOccupied(ctx, height, chainID)
}

// MaxChainID implements the lineage.Store interface.
func (m *Memory) MaxChainID(ctx context.Context) (int64, bool, error) {
	return m.snapshot().MaxChainID(ctx)
}

// IndexByID implements the lineage.Lookup interface.
func (m *Memory) IndexByID(ctx context.Context, id int64) (lineage.Index, error) {
	return m.snapshot().IndexByID(ctx, id)
}

// IndexByHash implements the storage.Reader interface.
func (m *Memory) IndexByHash(ctx context.Context, hash string) (lineage.Index, error) {
	return m.snapshot().IndexByHash(ctx, hash)
}

// StarLog implements the storage.Reader interface.
func (m *Memory) StarLog(ctx context.Context, hash string) (database.StarLog, error) {
	return m.snapshot().StarLog(ctx, hash)
}

// Fleet implements the storage.Reader interface.
func (m *Memory) Fleet(ctx context.Context, hash string) (database.Fleet, error) {
	return m.snapshot().Fleet(ctx, hash)
}

// EventSignature implements the storage.Reader interface.
func (m *Memory) EventSignature(ctx context.Context, hash string) (database.EventSignature, error) {
	return m.snapshot().EventSignature(ctx, hash)
}

// Event implements the storage.Reader interface.
func (m *Memory) Event(ctx context.Context, key string) (database.Event, error) {
	return m.snapshot().Event(ctx, key)
}

// Bindings implements the storage.Reader interface.
func (m *Memory) Bindings(ctx context.Context, signatureHash string) ([]database.Binding, error) {
	return m.snapshot().Bindings(ctx, signatureHash)
}

// BindingsForStarLog implements the storage.Reader interface.
func (m *Memory) BindingsForStarLog(ctx context.Context, starLogHash string) ([]database.Binding, error) {
	return m.snapshot().BindingsForStarLog(ctx, starLogHash)
}

// Consumers implements the storage.Reader interface.
func (m *Memory) Consumers(ctx context.Context, key string) ([]string, error) {
	return m.snapshot().Consumers(ctx, key)
}

// QueryStarLogs implements the storage.Reader interface.
func (m *Memory) QueryStarLogs(ctx context.Context, filter database.StarLogFilter) ([]database.StarLog, error) {
	return m.snapshot().QueryStarLogs(ctx, filter)
}

// ChainHeads implements the storage.Reader interface.
func (m *Memory) ChainHeads(ctx context.Context, height *uint64, limit int) ([]lineage.Index, error) {
	return m.snapshot().ChainHeads(ctx, height, limit)
}

// =============================================================================

// tx is a transaction over a private copy of the data.
type tx struct {
	*data
	mem  *Memory
	done bool
}

// Commit publishes the transaction's data.
func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already finished")
	}

	t.mem.mu.Lock()
	t.mem.data = t.data
	t.mem.mu.Unlock()

	t.finish()
	return nil
}

// Rollback discards the transaction's data.
func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}

	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	t.mem.wmu.Unlock()
}

// =============================================================================

// data is one version of the ledger.
type data struct {
	arena      *lineage.Arena
	starLogs   map[string]database.StarLog
	fleets     map[string]database.Fleet
	signatures map[string]database.EventSignature
	events     map[string]database.Event
	bindings   map[string][]database.Binding
	logBinds   map[string][]database.Binding
	consumers  map[string][]string
}

func newData() *data {
	return &data{
		arena:      lineage.NewArena(),
		starLogs:   make(map[string]database.StarLog),
		fleets:     make(map[string]database.Fleet),
		signatures: make(map[string]database.EventSignature),
		events:     make(map[string]database.Event),
		bindings:   make(map[string][]database.Binding),
		logBinds:   make(map[string][]database.Binding),
		consumers:  make(map[string][]string),
	}
}

func (d *data) clone() *data {
	cpy := data{
		arena:      d.arena.Clone(),
		starLogs:   make(map[string]database.StarLog, len(d.starLogs)),
		fleets:     make(map[string]database.Fleet, len(d.fleets)),
		signatures: make(map[string]database.EventSignature, len(d.signatures)),
		events:     make(map[string]database.Event, len(d.events)),
		bindings:   make(map[string][]database.Binding, len(d.bindings)),
		logBinds:   make(map[string][]database.Binding, len(d.logBinds)),
		consumers:  make(map[string][]string, len(d.consumers)),
	}

	for k, v := range d.starLogs {
		cpy.starLogs[k] = v
	}
	for k, v := range d.fleets {
		cpy.fleets[k] = v
	}
	for k, v := range d.signatures {
		cpy.signatures[k] = v
	}
	for k, v := range d.events {
		cpy.events[k] = v
	}
	for k, v := range d.bindings {
		cpy.bindings[k] = slices.Clone(v)
	}
	for k, v := range d.logBinds {
		cpy.logBinds[k] = slices.Clone(v)
	}
	for k, v := range d.consumers {
		cpy.consumers[k] = slices.Clone(v)
	}

	return &cpy
}

// SlotOccupied implements the lineage.Store interface.
func (d *data) SlotOccupied(ctx context.Context, height uint64, chainID int64) (bool, error) {
	return d.arena.SlotOccupied(ctx, height, chainID)
}

// MaxChainID implements the lineage.Store interface.
func (d *data) MaxChainID(ctx context.Context) (int64, bool, error) {
	return d.arena.MaxChainID(ctx)
}

// IndexByID implements the lineage.Lookup interface.
func (d *data) IndexByID(ctx context.Context, id int64) (lineage.Index, error) {
	return d.arena.IndexByID(ctx, id)
}

func (d *data) IndexByHash(ctx context.Context, hash string) (lineage.Index, error) {
	return d.arena.IndexByHash(ctx, hash)
}

func (d *data) StarLog(ctx context.Context, hash string) (database.StarLog, error) {
	sl, exists := d.starLogs[hash]
	if !exists {
		return database.StarLog{}, fmt.Errorf("star log[%s]: %w", hash, database.ErrNotFound)
	}
	return sl, nil
}

func (d *data) Fleet(ctx context.Context, hash string) (database.Fleet, error) {
	f, exists := d.fleets[hash]
	if !exists {
		return database.Fleet{}, fmt.Errorf("fleet[%s]: %w", hash, database.ErrNotFound)
	}
	return f, nil
}

func (d *data) EventSignature(ctx context.Context, hash string) (database.EventSignature, error) {
	es, exists := d.signatures[hash]
	if !exists {
		return database.EventSignature{}, fmt.Errorf("event signature[%s]: %w", hash, database.ErrNotFound)
	}
	return es, nil
}

func (d *data) Event(ctx context.Context, key string) (database.Event, error) {
	ev, exists := d.events[key]
	if !exists {
		return database.Event{}, fmt.Errorf("event[%s]: %w", key, database.ErrNotFound)
	}
	return ev, nil
}

func (d *data) Bindings(ctx context.Context, signatureHash string) ([]database.Binding, error) {
	return slices.Clone(d.bindings[signatureHash]), nil
}

func (d *data) BindingsForStarLog(ctx context.Context, starLogHash string) ([]database.Binding, error) {
	binds := slices.Clone(d.logBinds[starLogHash])
	sort.Slice(binds, func(i, j int) bool { return binds[i].Index < binds[j].Index })
	return binds, nil
}

func (d *data) Consumers(ctx context.Context, key string) ([]string, error) {
	return slices.Clone(d.consumers[key]), nil
}

func (d *data) QueryStarLogs(ctx context.Context, filter database.StarLogFilter) ([]database.StarLog, error) {
	var sls []database.StarLog
	for _, sl := range d.starLogs {
		if filter.Match(sl) {
			sls = append(sls, sl)
		}
	}

	sort.Slice(sls, func(i, j int) bool {
		switch {
		case sls[i].Time != sls[j].Time:
			return sls[i].Time > sls[j].Time
		case sls[i].Height != sls[j].Height:
			return sls[i].Height > sls[j].Height
		default:
			return sls[i].Hash < sls[j].Hash
		}
	})

	if filter.Offset >= len(sls) {
		return nil, nil
	}
	sls = sls[filter.Offset:]

	if filter.Limit > 0 && len(sls) > filter.Limit {
		sls = sls[:filter.Limit]
	}

	return sls, nil
}

func (d *data) ChainHeads(ctx context.Context, height *uint64, limit int) ([]lineage.Index, error) {
	heads := d.arena.Heads(height)
	if limit > 0 && len(heads) > limit {
		heads = heads[:limit]
	}
	return heads, nil
}

// =============================================================================

func (d *data) InsertIndex(ctx context.Context, idx lineage.Index) (lineage.Index, error) {
	return d.arena.Insert(idx)
}

func (d *data) InsertStarLog(ctx context.Context, sl database.StarLog) error {
	if _, exists := d.starLogs[sl.Hash]; exists {
		return fmt.Errorf("star log[%s]: already stored", sl.Hash)
	}

	sl.Events = nil
	d.starLogs[sl.Hash] = sl
	return nil
}

func (d *data) UpsertFleet(ctx context.Context, fleet database.Fleet) error {
	existing, exists := d.fleets[fleet.Hash]
	if exists && (existing.PublicKey != "" || fleet.PublicKey == "") {
		return nil
	}

	d.fleets[fleet.Hash] = fleet
	return nil
}

func (d *data) InsertEventSignature(ctx context.Context, es database.EventSignature) error {
	if _, exists := d.signatures[es.Hash]; exists {
		return fmt.Errorf("event signature[%s]: already stored", es.Hash)
	}

	d.signatures[es.Hash] = es
	for _, in := range es.Inputs {
		d.consumers[in.Key] = append(d.consumers[in.Key], es.Hash)
	}

	return nil
}

func (d *data) InsertEvent(ctx context.Context, ev database.Event) error {
	if _, exists := d.events[ev.Key]; exists {
		return fmt.Errorf("event[%s]: already stored", ev.Key)
	}

	d.events[ev.Key] = ev
	return nil
}

func (d *data) IncrementConfirmations(ctx context.Context, signatureHash string) error {
	es, exists := d.signatures[signatureHash]
	if !exists {
		return fmt.Errorf("event signature[%s]: %w", signatureHash, database.ErrNotFound)
	}

	es.Confirmations++
	d.signatures[signatureHash] = es
	return nil
}

func (d *data) InsertBinding(ctx context.Context, b database.Binding) error {
	sl, exists := d.starLogs[b.StarLogHash]
	if !exists {
		return fmt.Errorf("binding star log[%s]: %w", b.StarLogHash, database.ErrNotFound)
	}
	b.Height = sl.Height
	b.ChainID = sl.ChainID

	d.bindings[b.SignatureHash] = append(d.bindings[b.SignatureHash], b)
	d.logBinds[b.StarLogHash] = append(d.logBinds[b.StarLogHash], b)
	return nil
}
