package worker

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Progress is what a probe goroutine reports while it searches for a nonce.
type Progress struct {
	Worker          int       `json:"worker"`
	StarLog         string    `json:"star_log"`
	Tries           uint64    `json:"tries"`
	HashesPerSecond float64   `json:"hashes_per_second"`
	ElapsedMinutes  float64   `json:"elapsed_minutes"`
	Found           bool      `json:"found"`
	Nonce           uint64    `json:"nonce,omitempty"`
	Updated         time.Time `json:"updated"`
}

// ProgressKey returns the key a probe goroutine reports under.
func ProgressKey(worker int) string {
	return fmt.Sprintf("probe/%d", worker)
}

// ProgressStore represents the key value store probe goroutines report
// into. Reports are best effort, a store is free to drop them.
type ProgressStore interface {
	Put(key string, p Progress) error
	Get(key string) (Progress, bool)
	All() []Progress
}

// =============================================================================

// MemoryProgress is a ProgressStore kept in process memory.
type MemoryProgress struct {
	mu      sync.RWMutex
	reports map[string]Progress
}

// NewMemoryProgress constructs an empty progress store.
func NewMemoryProgress() *MemoryProgress {
	return &MemoryProgress{
		reports: make(map[string]Progress),
	}
}

// Put replaces the report under the key.
func (mp *MemoryProgress) Put(key string, p Progress) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.reports[key] = p
	return nil
}

// Get returns the report under the key.
func (mp *MemoryProgress) Get(key string) (Progress, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	p, exists := mp.reports[key]
	return p, exists
}

// All returns every report ordered by worker.
func (mp *MemoryProgress) All() []Progress {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	all := make([]Progress, 0, len(mp.reports))
	for _, p := range mp.reports {
		all = append(all, p)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Worker < all[j].Worker })

	return all
}
