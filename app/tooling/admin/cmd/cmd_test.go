package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/rules"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/ardanlabs/cryptoverse/foundation/nameservice"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Should be able to run %v: %s", args, err)
	}

	return out.String()
}

func Test_Commands(t *testing.T) {
	dir := t.TempDir()

	t.Log("Given the need to administer fleets.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen generating a fleet key.", testID)
		{
			execute(t, "keys", "--fleet", "vega", "--fleet-path", dir, "--bits", "1024")
			t.Logf("\t%s\tTest %d:\tShould generate the key.", success, testID)

			out := execute(t, "fleet", "--fleet", "vega", "--fleet-path", dir)

			var fleet struct {
				Name      string `json:"name"`
				Hash      string `json:"hash"`
				PublicKey string `json:"public_key"`
			}
			if err := json.Unmarshal([]byte(out), &fleet); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould print the fleet: %s", failed, testID, err)
			}

			if !signature.IsHash(fleet.Hash) || signature.FleetHash(signature.ExpandPublicKey(fleet.PublicKey)) != fleet.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould print a matching hash and key: %+v", failed, testID, fleet)
			}
			t.Logf("\t%s\tTest %d:\tShould print a matching hash and key.", success, testID)

			ns, err := nameservice.New(dir)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould load the fleet path: %s", failed, testID, err)
			}

			system := signature.Hash("sol")

			ev, err := buildEvent(ns, database.EventJump, 1000, []string{"k0"}, []string{"vega:k1:" + system + ":7", fleet.Hash + "::" + system})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould build a jump: %s", failed, testID, err)
			}

			if len(ev.Inputs) != 1 || len(ev.Outputs) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould carry every input and output: %+v", failed, testID, ev)
			}

			first, second := ev.Outputs[0], ev.Outputs[1]
			if first.FleetHash != fleet.Hash || first.Key != "k1" || first.Count != 7 || first.StarSystem != system || first.Type != database.EventJump {
				t.Fatalf("\t%s\tTest %d:\tShould resolve the fleet name: %+v", failed, testID, first)
			}
			if second.Index != 1 || second.Key == "" || second.Count != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould fill in a random key: %+v", failed, testID, second)
			}
			t.Logf("\t%s\tTest %d:\tShould build a jump.", success, testID)

			ev, err = buildEvent(ns, database.EventReward, 1000, nil, []string{"vega"})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould build a reward: %s", failed, testID, err)
			}

			if out := ev.Outputs[0]; out.Count != rules.Default().ShipReward || out.Model == nil || out.FleetHash != fleet.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould mint the default vessel: %+v", failed, testID, out)
			}
			t.Logf("\t%s\tTest %d:\tShould mint the default vessel.", success, testID)

			if _, err := buildEvent(ns, database.EventTransfer, 1000, nil, []string{"nobody"}); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject an unknown fleet.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an unknown fleet.", success, testID)

			if _, err := buildEvent(ns, database.EventTransfer, 1000, nil, []string{"vega:k::x:1"}); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject too many parts.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject too many parts.", success, testID)
		}
	}
}
