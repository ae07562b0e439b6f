// Package database defines the records of the ledger, their canonical
// serialization and the reasons a submission is rejected.
package database

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
)

// StarLog is a mined entry of the ledger. Every star log is also a star
// system events can be located at.
type StarLog struct {
	Hash         string        `json:"hash" validate:"required,len=64,hexadecimal"`
	PreviousHash string        `json:"previous_hash" validate:"required,len=64,hexadecimal"`
	Height       uint64        `json:"height"`
	Version      int           `json:"version" validate:"gte=0"`
	Difficulty   uint32        `json:"difficulty"`
	Nonce        uint64        `json:"nonce"`
	Time         int64         `json:"time" validate:"gte=0"`
	EventsHash   string        `json:"events_hash" validate:"required,len=64,hexadecimal"`
	Meta         string        `json:"meta"`
	MetaHash     string        `json:"meta_hash" validate:"required,len=64,hexadecimal"`
	IntervalHash string        `json:"interval_hash,omitempty"`
	ChainID      int64         `json:"chain"`
	Size         int           `json:"size"`
	Events       []SignedEvent `json:"events" validate:"unique=Index,dive"`
}

// Header returns the canonical serialization of the star log. Mining
// compares headers without the nonce, the final hash includes it.
func (sl StarLog) Header(includeNonce bool) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(sl.Version))
	b.WriteString(sl.PreviousHash)
	b.WriteString(strconv.FormatUint(uint64(sl.Difficulty), 10))
	b.WriteString(sl.EventsHash)
	b.WriteString(sl.MetaHash)
	b.WriteString(strconv.FormatInt(sl.Time, 10))

	if includeNonce {
		b.WriteString(strconv.FormatUint(sl.Nonce, 10))
	}

	return b.String()
}

// ComputeHash returns the hash the star log should carry.
func (sl StarLog) ComputeHash() string {
	return signature.Hash(sl.Header(true))
}

// HashWithNonce returns the hash of a header prefix with the nonce appended.
// Miners compute the prefix once and try nonces against it.
func HashWithNonce(prefix string, nonce uint64) string {
	return signature.Hash(prefix + strconv.FormatUint(nonce, 10))
}

// SortedEvents returns a copy of the events ordered by index.
func (sl StarLog) SortedEvents() []SignedEvent {
	evs := make([]SignedEvent, len(sl.Events))
	copy(evs, sl.Events)
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Index < evs[j].Index })
	return evs
}

// ComputeEventsHash returns the hash of the event hashes in index order.
func (sl StarLog) ComputeEventsHash() string {
	var b strings.Builder
	for _, ev := range sl.SortedEvents() {
		b.WriteString(ev.Hash)
	}
	return signature.Hash(b.String())
}

// Validate checks the star log is structurally complete.
func (sl StarLog) Validate() error {
	if err := check(sl); err != nil {
		return err
	}

	for _, ev := range sl.Events {
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("event[%d]: %w", ev.Index, err)
		}
	}

	return nil
}

// Seal fills in the derived hashes of a star log being assembled. The
// nonce still has to be found before the hash is final.
func (sl StarLog) Seal() StarLog {
	sl.EventsHash = sl.ComputeEventsHash()
	sl.MetaHash = signature.Hash(sl.Meta)
	sl.Hash = sl.ComputeHash()
	return sl
}

// =============================================================================

// StarLogFilter narrows a star log query. Results are ordered by time,
// newest first.
type StarLogFilter struct {
	PreviousHash string
	BeforeTime   *int64
	SinceTime    *int64
	Limit        int
	Offset       int
}

// Match reports whether the star log passes the filter.
func (f StarLogFilter) Match(sl StarLog) bool {
	if f.PreviousHash != "" && sl.PreviousHash != f.PreviousHash {
		return false
	}
	if f.BeforeTime != nil && sl.Time >= *f.BeforeTime {
		return false
	}
	if f.SinceTime != nil && sl.Time < *f.SinceTime {
		return false
	}
	return true
}

// ChainHead summarizes the highest star log of a chain.
type ChainHead struct {
	ChainID int64  `json:"chain"`
	Height  uint64 `json:"height"`
	HeadID  int64  `json:"head_index_id"`
	Hash    string `json:"star_log"`
}
