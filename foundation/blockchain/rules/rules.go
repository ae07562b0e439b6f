// Package rules maintains the consensus parameters of the ledger. A Rules
// value is built once at startup and never changes afterwards.
package rules

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/difficulty"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
)

// Module types a vessel can carry.
const (
	ModuleHull      = "hull"
	ModuleJumpDrive = "jump_drive"
	ModuleCargo     = "cargo"
)

// Blueprint is the default design of a hull or module handed out as a
// reward.
type Blueprint struct {
	Blueprint string `json:"blueprint"`
	Health    int    `json:"health"`
}

// Rules represents the consensus parameters every node must agree on.
type Rules struct {
	Version            int       `json:"version"`
	DifficultyFudge    int       `json:"difficulty_fudge"`
	DifficultyInterval uint64    `json:"difficulty_interval"`
	DifficultyDuration int64     `json:"difficulty_duration"`
	DifficultyStart    uint32    `json:"difficulty_start"`
	ShipReward         uint64    `json:"ship_reward"`
	RewardFuel         uint64    `json:"reward_fuel"`
	CartesianDigits    int       `json:"cartesian_digits"`
	JumpCostMin        int64     `json:"jump_cost_min"`
	JumpCostMax        int64     `json:"jump_cost_max"`
	JumpDistanceMax    float64   `json:"jump_distance_max"`
	StarLogsMaxBytes   int       `json:"star_logs_max_bytes"`
	EventsMaxBytes     int       `json:"events_max_bytes"`
	StarLogsMaxLimit   int       `json:"star_logs_max_limit"`
	EventsMaxLimit     int       `json:"events_max_limit"`
	ChainsMaxLimit     int       `json:"chains_max_limit"`
	DefaultHull        Blueprint `json:"default_hull"`
	DefaultCargo       Blueprint `json:"default_cargo"`
	DefaultJumpDrive   Blueprint `json:"default_jump_drive"`

	codec difficulty.Codec
}

// Default returns the rules the ledger runs with when nothing is overridden.
func Default() Rules {
	return Rules{
		Version:            0,
		DifficultyFudge:    0,
		DifficultyInterval: 10080,
		DifficultyDuration: 1209600,
		DifficultyStart:    0x1d00ffff,
		ShipReward:         10,
		RewardFuel:         100,
		CartesianDigits:    3,
		JumpCostMin:        1,
		JumpCostMax:        1000,
		JumpDistanceMax:    2048,
		StarLogsMaxBytes:   999999,
		EventsMaxBytes:     999999,
		StarLogsMaxLimit:   10,
		EventsMaxLimit:     10,
		ChainsMaxLimit:     10,
		DefaultHull:        Blueprint{Blueprint: signature.Hash("default_hull"), Health: 100},
		DefaultCargo:       Blueprint{Blueprint: signature.Hash("default_cargo"), Health: 100},
		DefaultJumpDrive:   Blueprint{Blueprint: signature.Hash("default_jump_drive"), Health: 100},
	}
}

// New validates the rules and prepares them for use. Any error here is a
// configuration problem and should stop the node.
func New(r Rules) (Rules, error) {
	codec, err := difficulty.New(r.DifficultyFudge)
	if err != nil {
		return Rules{}, err
	}

	if err := r.validate(); err != nil {
		return Rules{}, err
	}

	r.codec = codec
	return r, nil
}

// Codec returns the difficulty codec configured with the rules' fudge.
func (r Rules) Codec() difficulty.Codec {
	return r.codec
}

// MaximumTarget returns the easiest target, rotated by the fudge.
func (r Rules) MaximumTarget() string {
	return r.codec.MaximumTarget()
}

// IsGenesis reports whether the previous hash marks a genesis star log.
func (r Rules) IsGenesis(previousHash string) bool {
	return previousHash == signature.ZeroHash
}

func (r Rules) validate() error {
	switch {
	case r.DifficultyInterval == 0:
		return errors.New("difficulty interval must be greater than zero")
	case r.DifficultyDuration <= 0:
		return errors.New("difficulty duration must be greater than zero")
	case r.CartesianDigits < 3 || r.CartesianDigits > 21:
		return fmt.Errorf("cartesian digits must be a value from 3 to 21: got %d", r.CartesianDigits)
	case r.JumpCostMin < 0:
		return errors.New("jump cost min must be equal to or greater than zero")
	case r.JumpCostMax <= 0:
		return errors.New("jump cost max must be greater than zero")
	case r.JumpCostMax <= r.JumpCostMin:
		return errors.New("jump cost min must be less than jump cost max")
	case r.JumpDistanceMax <= 0:
		return errors.New("jump distance max must be greater than zero")
	case r.StarLogsMaxBytes <= 0 || r.EventsMaxBytes <= 0:
		return errors.New("size limits must be greater than zero")
	case r.StarLogsMaxLimit <= 0 || r.EventsMaxLimit <= 0 || r.ChainsMaxLimit <= 0:
		return errors.New("query limits must be greater than zero")
	}

	for name, bp := range map[string]Blueprint{
		ModuleHull:      r.DefaultHull,
		ModuleCargo:     r.DefaultCargo,
		ModuleJumpDrive: r.DefaultJumpDrive,
	} {
		if !signature.IsHash(bp.Blueprint) {
			return fmt.Errorf("default %s blueprint must be a sha256 hash", name)
		}
	}

	return nil
}
