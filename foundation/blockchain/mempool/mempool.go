// Package mempool maintains the pending events waiting for a star log.
package mempool

import (
	"sync"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/mempool/selector"
)

// Mempool represents a cache of signed events keyed by event hash.
type Mempool struct {
	pool     map[string]database.SignedEvent
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default select strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyOldest)
}

// NewWithStrategy constructs a new mempool with specified select strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.SignedEvent),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of events in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces an event in the mempool.
func (mp *Mempool) Upsert(ev database.SignedEvent) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[ev.Hash] = ev

	return len(mp.pool)
}

// Exists reports whether the event is pending.
func (mp *Mempool) Exists(hash string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[hash]
	return exists
}

// Delete removes an event from the mempool.
func (mp *Mempool) Delete(hash string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, hash)
}

// Truncate clears all the events from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.SignedEvent)
}

// Copy returns every pending event ordered by time.
func (mp *Mempool) Copy() []database.SignedEvent {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	m := make(map[string][]database.SignedEvent)
	for _, ev := range mp.pool {
		m[ev.FleetHash] = append(m[ev.FleetHash], ev)
	}

	oldest, _ := selector.Retrieve(selector.StrategyOldest)
	return oldest(m)
}

// PickBest uses the configured select strategy to return the next set of
// events for a star log. An event spending an input already spent by a
// picked event is skipped. Pass -1 for as many as possible.
func (mp *Mempool) PickBest(howMany int) []database.SignedEvent {

	// Group the events by fleet.
	m := make(map[string][]database.SignedEvent)
	mp.mu.RLock()
	{
		if howMany == -1 {
			howMany = len(mp.pool)
		}

		for _, ev := range mp.pool {
			m[ev.FleetHash] = append(m[ev.FleetHash], ev)
		}
	}
	mp.mu.RUnlock()

	spent := make(map[string]struct{})
	var final []database.SignedEvent

next:
	for _, ev := range mp.selectFn(m) {
		if len(final) == howMany {
			break
		}

		for _, in := range ev.Inputs {
			if _, exists := spent[in.Key]; exists {
				continue next
			}
		}

		for _, in := range ev.Inputs {
			spent[in.Key] = struct{}{}
		}

		final = append(final, ev)
	}

	return final
}
