package selector_test

import (
	"testing"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func event(fleet string, tm int64) database.SignedEvent {
	return database.SignedEvent{
		Hash:      signature.Hash(fleet + string(rune(tm))),
		FleetHash: fleet,
		Time:      tm,
	}
}

func group(evs ...database.SignedEvent) map[string][]database.SignedEvent {
	m := make(map[string][]database.SignedEvent)
	for _, ev := range evs {
		m[ev.FleetHash] = append(m[ev.FleetHash], ev)
	}
	return m
}

func TestSelect(t *testing.T) {
	type table struct {
		name     string
		strategy string
		events   []database.SignedEvent
		exp      []int64
	}

	tt := []table{
		{
			name:     "oldest",
			strategy: selector.StrategyOldest,
			events: []database.SignedEvent{
				event("bill", 5), event("bill", 1), event("bill", 2),
				event("pavl", 4), event("pavl", 3),
			},
			exp: []int64{1, 2, 3, 4, 5},
		},
		{
			name:     "fleet",
			strategy: selector.StrategyFleet,
			events: []database.SignedEvent{
				event("bill", 5), event("bill", 1), event("bill", 2),
				event("pavl", 4), event("pavl", 3),
			},
			exp: []int64{1, 3, 2, 4, 5},
		},
	}

	t.Log("Given the need to order pending events.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen using the %q strategy.", testID, tst.strategy)
				{
					fn, err := selector.Retrieve(tst.strategy)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to retrieve the strategy: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to retrieve the strategy.", success, testID)

					got := fn(group(tst.events...))
					if len(got) != len(tst.exp) {
						t.Fatalf("\t%s\tTest %d:\tShould get back every event: got %d", failed, testID, len(got))
					}

					for i, ev := range got {
						if ev.Time != tst.exp[i] {
							t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, ev.Time)
							t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.exp[i])
							t.Fatalf("\t%s\tTest %d:\tShould get the events in order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get the events in order.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func TestUnknownStrategy(t *testing.T) {
	if _, err := selector.Retrieve("tip"); err == nil {
		t.Fatalf("Should not be able to retrieve an unknown strategy.")
	}
}
