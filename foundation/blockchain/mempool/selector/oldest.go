package selector

import (
	"sort"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
)

// oldestSelect returns every event ordered by time regardless of the fleet
// that signed it.
var oldestSelect = func(m map[string][]database.SignedEvent) []database.SignedEvent {
	var final []database.SignedEvent
	for _, evs := range m {
		final = append(final, evs...)
	}

	sort.Sort(byTime(final))

	return final
}
