package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/lineage"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/storage"
)

// admission is the context events of one submission are validated in.
type admission struct {
	tx storage.Tx

	// starLog is the star log carrying the events. It is empty for an
	// event submitted on its own.
	starLog database.StarLog

	// height is the height the events are spent at.
	height uint64

	// ancestry is the history the events are spent against.
	ancestry lineage.Ancestry

	// spent holds the keys consumed earlier in the same submission.
	spent map[string]struct{}
}

func (ad admission) standalone() bool {
	return ad.starLog.Hash == ""
}

// =============================================================================

// SubmitEvent validates an event received on its own and, if that passes,
// records it unconfirmed and adds it to the mempool for a future star log.
func (s *State) SubmitEvent(ctx context.Context, raw []byte) (database.SignedEvent, error) {
	ev, err := s.submitEvent(ctx, raw)
	if err != nil {
		s.evHandler("state: SubmitEvent: REJECTED: %s", err)
		return database.SignedEvent{}, s.rejected("event", err)
	}

	n := s.mempool.Upsert(ev)
	mempoolGauge.Set(float64(n))
	eventsAccepted.Inc()

	s.evHandler("state: SubmitEvent: accepted: hash[%s]: type[%s]: mempool[%d]", ev.Hash, ev.Type, n)

	data, err := json.Marshal(ev)
	if err == nil {
		s.evHandler(`viewer: event: %s`, string(data))
	}

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return ev, nil
}

func (s *State) submitEvent(ctx context.Context, raw []byte) (database.SignedEvent, error) {
	if len(raw) > s.rules.EventsMaxBytes {
		return database.SignedEvent{}, fmt.Errorf("%w: event is %d bytes, limit is %d", database.ErrMalformedInput, len(raw), s.rules.EventsMaxBytes)
	}

	var ev database.SignedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return database.SignedEvent{}, fmt.Errorf("%w: %s", database.ErrMalformedInput, err)
	}

	if err := ev.Validate(); err != nil {
		return database.SignedEvent{}, err
	}

	if ev.Type == database.EventReward {
		return database.SignedEvent{}, fmt.Errorf("%w: reward events are only accepted inside a star log", database.ErrRuleViolation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mempool.Exists(ev.Hash) {
		return database.SignedEvent{}, fmt.Errorf("%w: event %s is pending", database.ErrDuplicateEntry, ev.Hash)
	}

	tx, err := s.storage.Begin(ctx)
	if err != nil {
		return database.SignedEvent{}, err
	}
	defer tx.Rollback(ctx)

	switch _, err := tx.EventSignature(ctx, ev.Hash); {
	case err == nil:
		return database.SignedEvent{}, fmt.Errorf("%w: event %s", database.ErrDuplicateEntry, ev.Hash)
	case !errors.Is(err, database.ErrNotFound):
		return database.SignedEvent{}, err
	}

	// An event on its own is spent against the best chain as if it was in
	// the next star log on top of it.
	ad := admission{
		tx:       tx,
		ancestry: lineage.Ancestry{},
		spent:    make(map[string]struct{}),
	}

	heads, err := tx.ChainHeads(ctx, nil, 1)
	if err != nil {
		return database.SignedEvent{}, err
	}
	if len(heads) > 0 {
		ad.height = heads[0].Height + 1
		if ad.ancestry, err = lineage.Walk(ctx, tx, heads[0]); err != nil {
			return database.SignedEvent{}, err
		}
	}

	ev.Confirmations = 0
	if err := s.admitEvent(ctx, ad, ev); err != nil {
		return database.SignedEvent{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.SignedEvent{}, err
	}

	return ev, nil
}

// =============================================================================

// verifyEvent checks the event was signed by the fleet it claims and hashes
// to the value it carries.
func verifyEvent(ev database.SignedEvent) error {
	if ev.FleetHash != signature.FleetHash(ev.FleetKey) {
		return fmt.Errorf("%w: fleet hash does not match fleet key", database.ErrInvalidSignature)
	}

	header := ev.Header()

	if ev.Hash != signature.Hash(header) {
		return fmt.Errorf("%w: event hash does not match header", database.ErrInvalidHash)
	}

	if !signature.Verify(ev.FleetKey, ev.Signature, header) {
		return fmt.Errorf("%w: event %s", database.ErrInvalidSignature, ev.Hash)
	}

	return nil
}

// admitEvent validates one event inside the admission and records it. An
// event seen before is a re-confirmation and reuses what was recorded.
func (s *State) admitEvent(ctx context.Context, ad admission, ev database.SignedEvent) error {
	if err := verifyEvent(ev); err != nil {
		return err
	}

	es, err := ad.tx.EventSignature(ctx, ev.Hash)
	switch {
	case err == nil:
		if err := s.reconfirmEvent(ctx, ad, es); err != nil {
			return err
		}

	case errors.Is(err, database.ErrNotFound):
		if err := s.firstSighting(ctx, ad, ev); err != nil {
			return err
		}

	default:
		return err
	}

	if ad.standalone() {
		return nil
	}

	b := database.Binding{
		StarLogHash:   ad.starLog.Hash,
		SignatureHash: ev.Hash,
		Index:         ev.Index,
	}

	return ad.tx.InsertBinding(ctx, b)
}

// reconfirmEvent validates an event signature that is already recorded
// against the lineage of the new star log.
func (s *State) reconfirmEvent(ctx context.Context, ad admission, es database.EventSignature) error {
	binds, err := ad.tx.Bindings(ctx, es.Hash)
	if err != nil {
		return err
	}

	for _, b := range binds {
		if b.Height < ad.height && ad.ancestry.Contains(b.ChainID, b.Height) {
			return fmt.Errorf("%w: event %s is already confirmed in star log %s", database.ErrDuplicateEntry, es.Hash, b.StarLogHash)
		}
	}

	inputs := make([]database.Event, 0, len(es.Inputs))
	for _, in := range es.Inputs {
		e, err := resolveInput(ctx, ad.tx, in.Key)
		if err != nil {
			return err
		}
		inputs = append(inputs, e)
	}

	outputs := make([]database.EventOutput, 0, len(es.Outputs))
	for _, out := range es.Outputs {
		e, err := ad.tx.Event(ctx, out.Key)
		if err != nil {
			return fmt.Errorf("event %s output %s: %w", es.Hash, out.Key, err)
		}
		outputs = append(outputs, e.Output(out.Index))
	}

	if err := s.conserve(es.Type, es.FleetHash, inputs, outputs); err != nil {
		return err
	}

	if err := s.checkSpends(ctx, ad, inputs); err != nil {
		return err
	}

	return ad.tx.IncrementConfirmations(ctx, es.Hash)
}

// firstSighting validates an event signature never seen before and creates
// the events it outputs.
func (s *State) firstSighting(ctx context.Context, ad admission, ev database.SignedEvent) error {
	inputs := make([]database.Event, 0, len(ev.Inputs))
	for _, in := range ev.SortedInputs() {
		e, err := resolveInput(ctx, ad.tx, in.Key)
		if err != nil {
			return err
		}
		inputs = append(inputs, e)
	}

	outputs := ev.SortedOutputs()
	keys := make(map[string]struct{})

	for _, out := range outputs {
		if _, exists := keys[out.Key]; exists {
			return fmt.Errorf("%w: %s repeats in the event", database.ErrDuplicateOutputKey, out.Key)
		}
		keys[out.Key] = struct{}{}

		switch _, err := ad.tx.Event(ctx, out.Key); {
		case err == nil:
			return fmt.Errorf("%w: %s", database.ErrDuplicateOutputKey, out.Key)
		case !errors.Is(err, database.ErrNotFound):
			return err
		}

		if out.StarSystem == "" {
			if ev.Type != database.EventReward {
				return fmt.Errorf("%w: output %s has no star system", database.ErrUnknownStarSystem, out.Key)
			}
			continue
		}

		switch _, err := ad.tx.StarLog(ctx, out.StarSystem); {
		case errors.Is(err, database.ErrNotFound):
			return fmt.Errorf("%w: output %s at %s", database.ErrUnknownStarSystem, out.Key, out.StarSystem)
		case err != nil:
			return err
		}
	}

	if err := s.conserve(ev.Type, ev.FleetHash, inputs, outputs); err != nil {
		return err
	}

	if err := s.checkSpends(ctx, ad, inputs); err != nil {
		return err
	}

	confirmations := 1
	if ad.standalone() {
		confirmations = 0
	}

	es := database.NewEventSignature(ev)
	es.Confirmations = confirmations
	if err := ad.tx.InsertEventSignature(ctx, es); err != nil {
		return err
	}

	if err := ad.tx.UpsertFleet(ctx, database.Fleet{Hash: ev.FleetHash, PublicKey: ev.FleetKey}); err != nil {
		return err
	}

	for _, out := range outputs {
		location := out.StarSystem
		if location == "" {
			location = ad.starLog.Hash
		}

		e := database.Event{
			Key:        out.Key,
			Type:       out.Type,
			FleetHash:  out.FleetHash,
			Count:      out.Count,
			StarSystem: out.StarSystem,
			Location:   location,
			ModelType:  out.ModelType,
			Model:      out.Model,
			Origin:     ev.Hash,
		}

		if err := ad.tx.InsertEvent(ctx, e); err != nil {
			return err
		}

		if err := ad.tx.UpsertFleet(ctx, database.Fleet{Hash: out.FleetHash}); err != nil {
			return err
		}
	}

	return nil
}

// resolveInput looks up the event an input consumes.
func resolveInput(ctx context.Context, r storage.Reader, key string) (database.Event, error) {
	e, err := r.Event(ctx, key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Event{}, fmt.Errorf("%w: %s", database.ErrUnknownInput, key)
		}
		return database.Event{}, err
	}
	return e, nil
}
