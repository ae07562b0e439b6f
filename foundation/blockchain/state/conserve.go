package state

import (
	"fmt"
	"math/bits"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/rules"
)

// conserve applies the conservation rule of the event type. The inputs are
// the events consumed, the outputs are ordered by index.
func (s *State) conserve(typ database.EventType, signer string, inputs []database.Event, outputs []database.EventOutput) error {
	for _, out := range outputs {
		if out.Type != typ {
			return violation("output %s is a %s in a %s event", out.Key, out.Type, typ)
		}
	}

	switch typ {
	case database.EventReward:
		return s.conserveReward(signer, inputs, outputs)
	case database.EventJump:
		return s.conserveJump(signer, inputs, outputs)
	case database.EventAttack:
		return s.conserveAttack(signer, inputs, outputs)
	case database.EventTransfer:
		return s.conserveTransfer(signer, inputs, outputs)
	}

	return violation("unknown event type %d", int(typ))
}

// conserveReward checks a reward mints exactly the default vessel to the
// signer.
func (s *State) conserveReward(signer string, inputs []database.Event, outputs []database.EventOutput) error {
	if len(inputs) != 0 {
		return violation("reward has %d inputs", len(inputs))
	}

	if len(outputs) != 1 {
		return violation("reward has %d outputs", len(outputs))
	}

	out := outputs[0]

	switch {
	case out.FleetHash != signer:
		return violation("reward is not for the signing fleet")
	case out.Count != s.rules.ShipReward:
		return violation("reward of %d ships, exp %d", out.Count, s.rules.ShipReward)
	case out.ModelType != database.ModelVessel || out.Model == nil:
		return violation("reward carries no vessel")
	case out.Model.Blueprint != s.rules.DefaultHull.Blueprint:
		return violation("reward hull is not the default")
	case len(out.Model.Modules) != 2:
		return violation("reward vessel has %d modules", len(out.Model.Modules))
	}

	cargo, exists := out.Model.Module(0)
	if !exists || !isDefault(cargo, rules.ModuleCargo, s.rules.DefaultCargo) {
		return violation("reward module 0 is not the default cargo")
	}

	if cargo.Contents == nil || cargo.Contents.Fuel != s.rules.RewardFuel {
		return violation("reward cargo does not hold %d fuel", s.rules.RewardFuel)
	}

	drive, exists := out.Model.Module(1)
	if !exists || !isDefault(drive, rules.ModuleJumpDrive, s.rules.DefaultJumpDrive) {
		return violation("reward module 1 is not the default jump drive")
	}

	return nil
}

// conserveJump checks the ships that arrive at the destination are the ones
// that left the origin minus the fuel cost of the jump.
func (s *State) conserveJump(signer string, inputs []database.Event, outputs []database.EventOutput) error {
	if len(inputs) == 0 || len(outputs) == 0 {
		return violation("jump needs inputs and outputs")
	}

	origin, err := sharedOrigin(signer, inputs)
	if err != nil {
		return err
	}

	var destination string
	var remaining, arrived uint64

	for _, out := range outputs {
		if out.FleetHash != signer {
			return violation("jump output %s changes fleet", out.Key)
		}

		var ok bool
		switch {
		case out.StarSystem == origin:
			remaining, ok = addCount(remaining, out.Count)

		case destination == "":
			destination = out.StarSystem
			arrived, ok = addCount(arrived, out.Count)

		case out.StarSystem == destination:
			arrived, ok = addCount(arrived, out.Count)

		default:
			return violation("jump has more than one destination")
		}

		if !ok {
			return violation("jump output counts overflow")
		}
	}

	if destination == "" {
		return violation("jump has no destination")
	}

	total, err := sumCounts(inputs)
	if err != nil {
		return err
	}

	if remaining >= total {
		return violation("jump moves no ships")
	}
	count := total - remaining

	cost := s.rules.FuelCost(origin, destination)

	switch {
	case cost == rules.Unreachable:
		return violation("destination %s is out of range", destination)
	case uint64(cost) >= count:
		return violation("jump of %d ships costs %d, nothing arrives", count, cost)
	case arrived != count-uint64(cost):
		return violation("jump of %d ships costs %d, %d arrive", count, cost, arrived)
	}

	return nil
}

// conserveAttack checks the stronger of the two fleets keeps the difference
// and the weaker fleet is destroyed.
func (s *State) conserveAttack(signer string, inputs []database.Event, outputs []database.EventOutput) error {
	if len(inputs) < 2 {
		return violation("attack has %d inputs", len(inputs))
	}

	origin := inputs[0].Location
	totals := make(map[string]uint64)

	for _, in := range inputs {
		if in.Location != origin {
			return violation("attack inputs are in more than one star system")
		}

		total, ok := addCount(totals[in.FleetHash], in.Count)
		if !ok {
			return violation("attack input counts overflow")
		}
		totals[in.FleetHash] = total
	}

	if len(totals) != 2 {
		return violation("attack involves %d fleets", len(totals))
	}

	if _, exists := totals[signer]; !exists {
		return violation("attack does not involve the signing fleet")
	}

	var strong, weak string
	for fleet := range totals {
		if strong == "" {
			strong = fleet
			continue
		}
		weak = fleet
	}
	if totals[weak] > totals[strong] {
		strong, weak = weak, strong
	}

	survivors := totals[strong] - totals[weak]

	// A tie destroys both fleets and leaves nothing to output.
	if survivors == 0 {
		if len(outputs) != 0 {
			return violation("attack between equal fleets has %d outputs", len(outputs))
		}
		return nil
	}

	if len(outputs) != 1 {
		return violation("attack has %d outputs, exp 1 for the stronger fleet", len(outputs))
	}

	out := outputs[0]

	switch {
	case out.StarSystem != origin:
		return violation("attack output %s leaves the star system", out.Key)
	case out.FleetHash == weak:
		return violation("weaker fleet keeps %d ships", out.Count)
	case out.FleetHash != strong:
		return violation("attack output %s belongs to an outside fleet", out.Key)
	case out.Count != survivors:
		return violation("stronger fleet keeps %d ships, exp %d", out.Count, survivors)
	}

	return nil
}

// conserveTransfer checks the ships handed over in a star system add up to
// the ships the signer gave up.
func (s *State) conserveTransfer(signer string, inputs []database.Event, outputs []database.EventOutput) error {
	if len(inputs) == 0 || len(outputs) == 0 {
		return violation("transfer needs inputs and outputs")
	}

	origin, err := sharedOrigin(signer, inputs)
	if err != nil {
		return err
	}

	var total uint64
	for _, out := range outputs {
		if out.StarSystem != origin {
			return violation("transfer output %s leaves the star system", out.Key)
		}

		var ok bool
		if total, ok = addCount(total, out.Count); !ok {
			return violation("transfer output counts overflow")
		}
	}

	in, err := sumCounts(inputs)
	if err != nil {
		return err
	}

	if in != total {
		return violation("transfer of %d ships outputs %d", in, total)
	}

	return nil
}

// =============================================================================

// sharedOrigin checks every input belongs to the signer and sits in one
// star system, and returns that system.
func sharedOrigin(signer string, inputs []database.Event) (string, error) {
	origin := inputs[0].Location

	for _, in := range inputs {
		if in.FleetHash != signer {
			return "", violation("input %s does not belong to the signing fleet", in.Key)
		}
		if in.Location != origin {
			return "", violation("inputs are in more than one star system")
		}
	}

	return origin, nil
}

func sumCounts(events []database.Event) (uint64, error) {
	var total uint64
	for _, e := range events {
		var ok bool
		if total, ok = addCount(total, e.Count); !ok {
			return 0, violation("input counts overflow")
		}
	}
	return total, nil
}

// addCount adds two ship counts and reports false if the sum would pass
// database.MaxCount.
func addCount(a uint64, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 || sum > database.MaxCount {
		return 0, false
	}
	return sum, true
}

func isDefault(m database.Module, moduleType string, bp rules.Blueprint) bool {
	return m.ModuleType == moduleType && m.Blueprint == bp.Blueprint && m.Health == bp.Health && !m.Delta
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", database.ErrRuleViolation, fmt.Sprintf(format, args...))
}
