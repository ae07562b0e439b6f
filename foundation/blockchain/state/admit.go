package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/difficulty"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/lineage"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/storage"
)

// EventError identifies the event of a star log that caused the star log
// to be rejected.
type EventError struct {
	Index int
	Hash  string
	Err   error
}

// Error implements the error interface.
func (ee *EventError) Error() string {
	return fmt.Sprintf("event[%d]: %s", ee.Index, ee.Err)
}

// Unwrap returns the rejection reason.
func (ee *EventError) Unwrap() error {
	return ee.Err
}

// =============================================================================

// SubmitStarLog decodes a star log received from a client, validates it
// against the consensus rules and, if that passes, adds it to the ledger.
// Any failure leaves the ledger untouched.
func (s *State) SubmitStarLog(ctx context.Context, raw []byte) (database.StarLog, error) {
	if len(raw) > s.rules.StarLogsMaxBytes {
		return database.StarLog{}, s.rejected("starlog", fmt.Errorf("%w: star log is %d bytes, limit is %d", database.ErrMalformedInput, len(raw), s.rules.StarLogsMaxBytes))
	}

	var sl database.StarLog
	if err := json.Unmarshal(raw, &sl); err != nil {
		return database.StarLog{}, s.rejected("starlog", fmt.Errorf("%w: %s", database.ErrMalformedInput, err))
	}
	sl.Size = len(raw)

	sl, err := s.AdmitStarLog(ctx, sl)
	if err != nil {
		return database.StarLog{}, err
	}

	// If a mining operation is running it is working on a head that may
	// no longer be the best one.
	s.signalCancelMining()

	return sl, nil
}

// AdmitStarLog validates a decoded star log against the consensus rules
// and, if that passes, adds it to the ledger.
func (s *State) AdmitStarLog(ctx context.Context, sl database.StarLog) (database.StarLog, error) {
	s.evHandler("state: AdmitStarLog: started: hash[%s]: prev[%s]: events[%d]", sl.Hash, sl.PreviousHash, len(sl.Events))

	admitted, err := s.admitStarLog(ctx, sl)
	if err != nil {
		s.evHandler("state: AdmitStarLog: REJECTED: hash[%s]: %s", sl.Hash, err)
		return database.StarLog{}, s.rejected("starlog", err)
	}
	sl = admitted

	s.evHandler("state: AdmitStarLog: completed: hash[%s]: height[%d]: chain[%d]", sl.Hash, sl.Height, sl.ChainID)

	// Remove the confirmed events from the mempool.
	for _, ev := range sl.Events {
		s.mempool.Delete(ev.Hash)
	}
	mempoolGauge.Set(float64(s.mempool.Count()))
	starLogsAdmitted.Inc()

	s.starLogEvent(sl)

	return sl, nil
}

// =============================================================================

// admitStarLog performs the checks that need no storage and then the
// transactional part of the admission.
func (s *State) admitStarLog(ctx context.Context, sl database.StarLog) (database.StarLog, error) {
	if sl.Size == 0 {
		data, err := json.Marshal(sl)
		if err != nil {
			return database.StarLog{}, fmt.Errorf("%w: %s", database.ErrMalformedInput, err)
		}
		sl.Size = len(data)
	}

	if err := sl.Validate(); err != nil {
		return database.StarLog{}, err
	}

	if err := s.validateHeader(sl); err != nil {
		return database.StarLog{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.storage.Begin(ctx)
	if err != nil {
		return database.StarLog{}, err
	}
	defer tx.Rollback(ctx)

	sl, err = s.writeStarLog(ctx, tx, sl)
	if err != nil {
		return database.StarLog{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.StarLog{}, err
	}

	return sl, nil
}

// validateHeader checks the hashes, the time and the proof of work.
func (s *State) validateHeader(sl database.StarLog) error {
	if sl.MetaHash != signature.Hash(sl.Meta) {
		return fmt.Errorf("%w: meta hash does not match meta", database.ErrInvalidHash)
	}

	if sl.EventsHash != sl.ComputeEventsHash() {
		return fmt.Errorf("%w: events hash does not match events", database.ErrInvalidHash)
	}

	if sl.Hash != sl.ComputeHash() {
		return fmt.Errorf("%w: hash does not match header", database.ErrInvalidHash)
	}

	if now := time.Now().Unix(); sl.Time > now {
		return fmt.Errorf("%w: time %d is in the future", database.ErrRuleViolation, sl.Time)
	}

	ok, err := s.rules.Codec().MeetsTarget(sl.Hash, sl.Difficulty)
	if err != nil {
		return fmt.Errorf("%w: %s", database.ErrRuleViolation, err)
	}
	if !ok {
		return fmt.Errorf("%w: hash does not meet difficulty %#08x", database.ErrRuleViolation, sl.Difficulty)
	}

	return nil
}

// writeStarLog performs every check that needs the ledger and records the
// star log with its lineage and events inside the transaction.
func (s *State) writeStarLog(ctx context.Context, tx storage.Tx, sl database.StarLog) (database.StarLog, error) {
	switch _, err := tx.IndexByHash(ctx, sl.Hash); {
	case err == nil:
		return database.StarLog{}, fmt.Errorf("%w: star log %s", database.ErrDuplicateEntry, sl.Hash)
	case !errors.Is(err, database.ErrNotFound):
		return database.StarLog{}, err
	}

	var prevIdx *lineage.Index
	var prev database.StarLog
	anc := lineage.Ancestry{}

	if s.rules.IsGenesis(sl.PreviousHash) {
		if sl.Height != 0 {
			return database.StarLog{}, fmt.Errorf("%w: genesis height is %d", database.ErrHeightMismatch, sl.Height)
		}

		if sl.Difficulty != s.rules.DifficultyStart {
			return database.StarLog{}, fmt.Errorf("%w: got %#08x, exp %#08x", database.ErrDifficultyMismatch, sl.Difficulty, s.rules.DifficultyStart)
		}

		sl.IntervalHash = ""
	} else {
		idx, err := tx.IndexByHash(ctx, sl.PreviousHash)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return database.StarLog{}, fmt.Errorf("%w: previous star log %s", database.ErrUnknownAncestor, sl.PreviousHash)
			}
			return database.StarLog{}, err
		}
		prevIdx = &idx

		if prev, err = tx.StarLog(ctx, sl.PreviousHash); err != nil {
			return database.StarLog{}, err
		}

		if sl.Height != idx.Height+1 {
			return database.StarLog{}, fmt.Errorf("%w: got %d, exp %d", database.ErrHeightMismatch, sl.Height, idx.Height+1)
		}

		exp, err := s.expectedDifficulty(ctx, tx, prev, sl.Height)
		if err != nil {
			return database.StarLog{}, err
		}
		if sl.Difficulty != exp {
			return database.StarLog{}, fmt.Errorf("%w: got %#08x, exp %#08x", database.ErrDifficultyMismatch, sl.Difficulty, exp)
		}

		sl.IntervalHash = nextIntervalHash(prev, sl.Height, s.rules.DifficultyInterval)

		// Events spend against the history of the previous star log. Every
		// star log in it is below the new height.
		if anc, err = lineage.Walk(ctx, tx, idx); err != nil {
			return database.StarLog{}, err
		}
	}

	idx, err := lineage.Next(ctx, tx, prevIdx, sl.Hash, sl.PreviousHash)
	if err != nil {
		return database.StarLog{}, err
	}

	if idx, err = tx.InsertIndex(ctx, idx); err != nil {
		return database.StarLog{}, err
	}
	sl.ChainID = idx.ChainID

	if err := tx.InsertStarLog(ctx, sl); err != nil {
		return database.StarLog{}, err
	}

	ad := admission{
		tx:       tx,
		starLog:  sl,
		height:   sl.Height,
		ancestry: anc,
		spent:    make(map[string]struct{}),
	}

	seen := make(map[string]struct{})
	for _, ev := range sl.SortedEvents() {
		if _, exists := seen[ev.Hash]; exists {
			return database.StarLog{}, &EventError{Index: ev.Index, Hash: ev.Hash, Err: fmt.Errorf("%w: event %s appears twice", database.ErrDuplicateEntry, ev.Hash)}
		}
		seen[ev.Hash] = struct{}{}

		if err := s.admitEvent(ctx, ad, ev); err != nil {
			return database.StarLog{}, &EventError{Index: ev.Index, Hash: ev.Hash, Err: err}
		}
	}

	return sl, nil
}

// expectedDifficulty returns the difficulty a star log at the height on top
// of prev must carry.
func (s *State) expectedDifficulty(ctx context.Context, r storage.Reader, prev database.StarLog, height uint64) (uint32, error) {
	if !difficulty.IsRetargetHeight(height, s.rules.DifficultyInterval) {
		return prev.Difficulty, nil
	}

	start := prev
	if prev.IntervalHash != "" {
		var err error
		if start, err = r.StarLog(ctx, prev.IntervalHash); err != nil {
			return 0, fmt.Errorf("interval start %s: %w", prev.IntervalHash, err)
		}
	}

	elapsed := prev.Time - start.Time

	return s.rules.Codec().Recalculate(prev.Difficulty, elapsed, s.rules.DifficultyDuration)
}

// nextIntervalHash returns the star log that starts the difficulty interval
// of a star log at the height on top of prev. A star log that starts an
// interval references nothing.
func nextIntervalHash(prev database.StarLog, height uint64, interval uint64) string {
	if difficulty.IsRetargetHeight(height, interval) {
		return ""
	}

	if prev.IntervalHash == "" {
		return prev.Hash
	}

	return prev.IntervalHash
}

// starLogEvent provides a specific event about a new star log for the
// websocket feed.
func (s *State) starLogEvent(sl database.StarLog) {
	data, err := json.Marshal(sl)
	if err != nil {
		data = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: starlog: %s`, string(data))
}
