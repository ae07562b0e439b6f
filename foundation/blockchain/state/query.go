package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/rules"
)

// RetrieveRules returns the consensus rules the ledger runs with.
func (s *State) RetrieveRules() rules.Rules {
	return s.rules
}

// QueryMempoolLength returns the number of events waiting for a star log.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryPendingEvents returns the events waiting for a star log, oldest
// first.
func (s *State) QueryPendingEvents(limit int) []database.SignedEvent {
	evs := s.mempool.Copy()
	if limit > 0 && len(evs) > limit {
		evs = evs[:limit]
	}
	return evs
}

// RemovePending drops an event from the mempool. Miners use this for events
// that no longer fit the best chain.
func (s *State) RemovePending(hash string) {
	s.mempool.Delete(hash)
	mempoolGauge.Set(float64(s.mempool.Count()))
}

// QueryEvent returns the event with the key.
func (s *State) QueryEvent(ctx context.Context, key string) (database.Event, error) {
	return s.storage.Event(ctx, key)
}

// QueryStarLogs returns the star logs matching the filter newest first,
// each with its events.
func (s *State) QueryStarLogs(ctx context.Context, filter database.StarLogFilter) ([]database.StarLog, error) {
	if filter.Limit < 1 || filter.Limit > s.rules.StarLogsMaxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", database.ErrMalformedInput, s.rules.StarLogsMaxLimit)
	}

	if filter.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", database.ErrMalformedInput)
	}

	if filter.SinceTime != nil && filter.BeforeTime != nil && *filter.SinceTime >= *filter.BeforeTime {
		return nil, fmt.Errorf("%w: since time must be before before time", database.ErrMalformedInput)
	}

	sls, err := s.storage.QueryStarLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	for i := range sls {
		evs, err := s.resolveEvents(ctx, sls[i].Hash)
		if err != nil {
			return nil, err
		}
		sls[i].Events = evs
	}

	return sls, nil
}

// QueryChains returns the head of every chain ordered by height, highest
// first. A height narrows the result to chains whose head is there.
func (s *State) QueryChains(ctx context.Context, height *uint64, limit int) ([]database.ChainHead, error) {
	if limit < 1 || limit > s.rules.ChainsMaxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", database.ErrMalformedInput, s.rules.ChainsMaxLimit)
	}

	heads, err := s.storage.ChainHeads(ctx, height, limit)
	if err != nil {
		return nil, err
	}

	chs := make([]database.ChainHead, len(heads))
	for i, idx := range heads {
		chs[i] = database.ChainHead{
			ChainID: idx.ChainID,
			Height:  idx.Height,
			HeadID:  idx.ID,
			Hash:    idx.Hash,
		}
	}

	return chs, nil
}

// =============================================================================

// resolveEvents rebuilds the signed events bound to a star log from what
// was recorded, so they verify the same way they did on admission.
func (s *State) resolveEvents(ctx context.Context, starLogHash string) ([]database.SignedEvent, error) {
	binds, err := s.storage.BindingsForStarLog(ctx, starLogHash)
	if err != nil {
		return nil, err
	}

	evs := make([]database.SignedEvent, 0, len(binds))
	for _, b := range binds {
		es, err := s.storage.EventSignature(ctx, b.SignatureHash)
		if err != nil {
			return nil, err
		}

		fleet, err := s.storage.Fleet(ctx, es.FleetHash)
		if err != nil {
			return nil, err
		}

		ev := database.SignedEvent{
			Index:         b.Index,
			Hash:          es.Hash,
			FleetHash:     es.FleetHash,
			FleetKey:      fleet.PublicKey,
			Signature:     es.Signature,
			Type:          es.Type,
			Time:          es.Time,
			Confirmations: es.Confirmations,
			Inputs:        es.Inputs,
			Outputs:       make([]database.EventOutput, 0, len(es.Outputs)),
		}

		for _, ref := range es.Outputs {
			e, err := s.storage.Event(ctx, ref.Key)
			if err != nil {
				return nil, err
			}
			ev.Outputs = append(ev.Outputs, e.Output(ref.Index))
		}

		evs = append(evs, ev)
	}

	return evs, nil
}
