package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/rules"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/google/uuid"
)

// ErrNoMiner is returned when a star log is requested to be assembled and
// the node has no miner fleet.
var ErrNoMiner = errors.New("no miner fleet configured")

// =============================================================================

// NewRewardOutput returns the output of a reward event minting the default
// vessel to the fleet.
func NewRewardOutput(r rules.Rules, fleetHash string, key string) database.EventOutput {
	return database.EventOutput{
		Index:     0,
		Type:      database.EventReward,
		FleetHash: fleetHash,
		Key:       key,
		Count:     r.ShipReward,
		ModelType: database.ModelVessel,
		Model: &database.Vessel{
			Blueprint: r.DefaultHull.Blueprint,
			Modules: []database.Module{
				{
					Index:      0,
					ModuleType: rules.ModuleCargo,
					Blueprint:  r.DefaultCargo.Blueprint,
					Health:     r.DefaultCargo.Health,
					Contents:   &database.Cargo{Fuel: r.RewardFuel},
				},
				{
					Index:      1,
					ModuleType: rules.ModuleJumpDrive,
					Blueprint:  r.DefaultJumpDrive.Blueprint,
					Health:     r.DefaultJumpDrive.Health,
				},
			},
		},
	}
}

// AssembleStarLog builds a star log on top of the best chain head carrying
// a reward for the miner fleet and the best pending events. The star log
// is sealed but its nonce still has to be found.
func (s *State) AssembleStarLog(ctx context.Context) (database.StarLog, error) {
	if s.minerKey == nil {
		return database.StarLog{}, ErrNoMiner
	}

	now := time.Now().Unix()

	sl := database.StarLog{
		PreviousHash: signature.ZeroHash,
		Version:      s.rules.Version,
		Difficulty:   s.rules.DifficultyStart,
		Time:         now,
	}

	heads, err := s.storage.ChainHeads(ctx, nil, 1)
	if err != nil {
		return database.StarLog{}, err
	}

	if len(heads) > 0 {
		prev, err := s.storage.StarLog(ctx, heads[0].Hash)
		if err != nil {
			return database.StarLog{}, err
		}

		sl.PreviousHash = prev.Hash
		sl.Height = prev.Height + 1

		if sl.Difficulty, err = s.expectedDifficulty(ctx, s.storage, prev, sl.Height); err != nil {
			return database.StarLog{}, err
		}
	}

	reward := database.SignedEvent{
		Type:    database.EventReward,
		Time:    now,
		Inputs:  []database.EventRef{},
		Outputs: []database.EventOutput{NewRewardOutput(s.rules, s.minerFleet, uuid.NewString())},
	}

	if reward, err = reward.Sign(s.minerKey); err != nil {
		return database.StarLog{}, err
	}

	sl.Events = append(sl.Events, reward)
	for i, ev := range s.mempool.PickBest(-1) {
		ev.Index = i + 1
		sl.Events = append(sl.Events, ev)
	}

	// Drop the newest pending events until the star log fits.
	for len(sl.Events) > 1 {
		data, err := json.Marshal(sl.Seal())
		if err != nil {
			return database.StarLog{}, err
		}
		if len(data) <= s.rules.StarLogsMaxBytes {
			break
		}
		sl.Events = sl.Events[:len(sl.Events)-1]
	}

	s.evHandler("state: AssembleStarLog: prev[%s]: height[%d]: events[%d]", sl.PreviousHash, sl.Height, len(sl.Events))

	return sl.Seal(), nil
}
