package events_test

import (
	"testing"

	"github.com/ardanlabs/cryptoverse/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Send(t *testing.T) {
	evts := events.New()

	all := evts.Acquire("all")
	starLogs := evts.Acquire("starlogs", "starlog")

	t.Log("Given the need to fan out ledger events.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen sending a mix of messages.", testID)
		{
			evts.Send("state: AdmitStarLog: started")
			evts.Send(`viewer: event: {"hash":"e1"}`)
			evts.Send(`viewer: starlog: {"hash":"s1"}`)
			evts.Send(`viewer: starlog: not json`)

			if len(all) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould deliver only viewer messages: got %d", failed, testID, len(all))
			}
			t.Logf("\t%s\tTest %d:\tShould deliver only viewer messages.", success, testID)

			if msg := <-all; msg.Kind != "event" || string(msg.Data) != `{"hash":"e1"}` {
				t.Fatalf("\t%s\tTest %d:\tShould keep the order and payload: %+v", failed, testID, msg)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the order and payload.", success, testID)

			if len(starLogs) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould filter by kind: got %d", failed, testID, len(starLogs))
			}
			t.Logf("\t%s\tTest %d:\tShould filter by kind.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen releasing subscribers.", testID)
		{
			if err := evts.Release("all"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould release the subscriber: %s", failed, testID, err)
			}

			if err := evts.Release("all"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail to release it twice.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to release it twice.", success, testID)

			evts.Shutdown()

			<-starLogs
			if _, open := <-starLogs; open {
				t.Fatalf("\t%s\tTest %d:\tShould close every channel on shutdown.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close every channel on shutdown.", success, testID)
		}
	}
}
