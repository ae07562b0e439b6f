package selector

import (
	"sort"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
)

// fleetSelect gives every fleet a turn before any fleet gets a second one,
// so a busy fleet can't crowd the others out of a star log.
var fleetSelect = func(m map[string][]database.SignedEvent) []database.SignedEvent {

	// Sort the events per fleet by time.
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byTime(m[key]))
		}
	}

	// Pick the first event in the slice for each fleet. Each iteration
	// represents a new row of selections. Keep doing that until all the
	// events have been selected.
	var rows [][]database.SignedEvent
	for {
		var row []database.SignedEvent
		for key := range m {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	// Order each row by time so map iteration order never leaks out.
	var final []database.SignedEvent
	for _, row := range rows {
		sort.Sort(byTime(row))
		final = append(final, row...)
	}

	return final
}
