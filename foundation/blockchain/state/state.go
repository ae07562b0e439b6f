// Package state is the core API for the ledger and implements all the
// consensus rules and processing.
package state

import (
	"crypto/rsa"
	"fmt"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/mempool"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/rules"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/storage"
	"github.com/sasha-s/go-deadlock"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting star logs.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to start the ledger.
type Config struct {
	Rules          rules.Rules
	Storage        storage.Store
	SelectStrategy string
	MinerKey       *rsa.PrivateKey
	EvHandler      EventHandler
}

// State manages the ledger. Admissions are serialized by mu, reads go to
// the storage directly and see committed data only.
type State struct {
	mu         deadlock.Mutex
	rules      rules.Rules
	evHandler  EventHandler
	minerKey   *rsa.PrivateKey
	minerFleet string

	mempool *mempool.Mempool
	storage storage.Store

	Worker Worker
}

// New constructs a new ledger state for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}

	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = "oldest"
	}

	// Construct a mempool with the specified select strategy.
	mempool, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, err
	}

	state := State{
		rules:     cfg.Rules,
		evHandler: ev,
		minerKey:  cfg.MinerKey,
		mempool:   mempool,
		storage:   cfg.Storage,
	}

	if cfg.MinerKey != nil {
		pub, err := signature.EncodePublicKey(cfg.MinerKey)
		if err != nil {
			return nil, fmt.Errorf("miner key: %w", err)
		}
		state.minerFleet = signature.FleetHash(pub)
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all mining activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return s.storage.Close()
}

// CanMine reports whether the node has a miner fleet configured.
func (s *State) CanMine() bool {
	return s.minerKey != nil
}

// MinerFleet returns the fleet hash rewards are minted to.
func (s *State) MinerFleet() string {
	return s.minerFleet
}

// signalCancelMining stops a mining operation working on a head that is
// no longer the best one and lets it start over.
func (s *State) signalCancelMining() {
	if s.Worker == nil {
		return
	}

	done := s.Worker.SignalCancelMining()
	done()

	s.Worker.SignalStartMining()
}
