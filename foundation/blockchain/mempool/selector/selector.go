// Package selector provides different event selecting algorithms.
package selector

import (
	"fmt"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyOldest = "oldest"
	StrategyFleet  = "fleet"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyOldest: oldestSelect,
	StrategyFleet:  fleetSelect,
}

// Func defines a function that takes a pool of pending events grouped by
// fleet hash and returns all of them in the order they should be considered
// for the next star log. Every strategy MUST keep the events of one fleet in
// time order.
type Func func(events map[string][]database.SignedEvent) []database.SignedEvent

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byTime provides sorting support by the event time, using the hash to keep
// the order stable between calls.
type byTime []database.SignedEvent

// Len returns the number of events in the list.
func (bt byTime) Len() int {
	return len(bt)
}

// Less orders events oldest first.
func (bt byTime) Less(i, j int) bool {
	if bt[i].Time != bt[j].Time {
		return bt[i].Time < bt[j].Time
	}
	return bt[i].Hash < bt[j].Hash
}

// Swap moves events in the order of the time value.
func (bt byTime) Swap(i, j int) {
	bt[i], bt[j] = bt[j], bt[i]
}
