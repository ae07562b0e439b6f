package database_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

var (
	fleet   = signature.Hash("fleet")
	system  = signature.Hash("system")
	hullBP  = signature.Hash("hull")
	cargoBP = signature.Hash("cargo")
	driveBP = signature.Hash("drive")
)

func vessel() *database.Vessel {
	return &database.Vessel{
		Blueprint: hullBP,
		Modules: []database.Module{
			{Index: 1, ModuleType: "jump_drive", Blueprint: driveBP, Health: 100},
			{Index: 0, ModuleType: "cargo", Blueprint: cargoBP, Health: 100, Contents: &database.Cargo{Fuel: 50}},
		},
	}
}

// =============================================================================

func Test_StarLogHeader(t *testing.T) {
	sl := database.StarLog{
		Version:      0,
		PreviousHash: signature.ZeroHash,
		Difficulty:   486604799,
		EventsHash:   signature.Hash(""),
		MetaHash:     signature.Hash("meta"),
		Time:         1500000000,
		Nonce:        42,
	}

	t.Log("Given the need to serialize star log headers.")
	{
		exp := "0" + signature.ZeroHash + "486604799" + signature.Hash("") + signature.Hash("meta") + "1500000000"

		if got := sl.Header(false); got != exp {
			t.Logf("\t%s\tgot: %s", failed, got)
			t.Logf("\t%s\texp: %s", failed, exp)
			t.Fatalf("\t%s\tShould serialize the header without the nonce.", failed)
		}
		t.Logf("\t%s\tShould serialize the header without the nonce.", success)

		if got := sl.Header(true); got != exp+"42" {
			t.Fatalf("\t%s\tShould append the nonce: %s", failed, got)
		}
		t.Logf("\t%s\tShould append the nonce.", success)

		if database.HashWithNonce(sl.Header(false), 42) != sl.ComputeHash() {
			t.Fatalf("\t%s\tShould hash a prefix and nonce like the full header.", failed)
		}
		t.Logf("\t%s\tShould hash a prefix and nonce like the full header.", success)
	}
}

func Test_EventsHash(t *testing.T) {
	a := database.SignedEvent{Index: 0, Hash: signature.Hash("a")}
	b := database.SignedEvent{Index: 1, Hash: signature.Hash("b")}

	sl := database.StarLog{Events: []database.SignedEvent{b, a}}

	exp := signature.Hash(a.Hash + b.Hash)
	if got := sl.ComputeEventsHash(); got != exp {
		t.Logf("got: %s", got)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should hash the event hashes in index order.")
	}

	empty := database.StarLog{}
	if empty.ComputeEventsHash() != signature.Hash("") {
		t.Fatalf("Should hash the empty string when there are no events.")
	}
}

func Test_EventHeader(t *testing.T) {
	ev := database.SignedEvent{
		FleetHash: fleet,
		FleetKey:  "KEY",
		Type:      database.EventJump,
		Inputs: []database.EventRef{
			{Index: 1, Key: "in-b"},
			{Index: 0, Key: "in-a"},
		},
		Outputs: []database.EventOutput{
			{Index: 1, Type: database.EventJump, FleetHash: fleet, Key: "out-b", StarSystem: system, Count: 7},
			{Index: 0, Type: database.EventJump, FleetHash: fleet, Key: "out-a", Count: 0, ModelType: database.ModelVessel, Model: vessel()},
		},
	}

	t.Log("Given the need to serialize event headers.")
	{
		model := hullBP + cargoBP + "cargofalse100" + "50" + driveBP + "jump_drivefalse100"
		exp := fleet + "KEY" + "jump" + "in-a" + "in-b" +
			"jump" + fleet + "out-a" + "" + "0" + model +
			"jump" + fleet + "out-b" + system + "7"

		if got := ev.Header(); got != exp {
			t.Logf("\t%s\tgot: %s", failed, got)
			t.Logf("\t%s\texp: %s", failed, exp)
			t.Fatalf("\t%s\tShould serialize inputs, outputs and modules in index order.", failed)
		}
		t.Logf("\t%s\tShould serialize inputs, outputs and modules in index order.", success)

		tampered := ev
		tampered.Outputs = append([]database.EventOutput(nil), ev.Outputs...)
		tampered.Outputs[0].Count = 8
		if tampered.ComputeHash() == ev.ComputeHash() {
			t.Fatalf("\t%s\tShould change the hash when a count changes.", failed)
		}
		t.Logf("\t%s\tShould change the hash when a count changes.", success)
	}
}

func Test_Validate(t *testing.T) {
	good := database.SignedEvent{
		Hash:      signature.Hash("event"),
		FleetHash: fleet,
		FleetKey:  "KEY",
		Signature: "abcdef",
		Type:      database.EventTransfer,
		Inputs:    []database.EventRef{{Index: 0, Key: "in"}},
		Outputs:   []database.EventOutput{{Index: 0, Type: database.EventTransfer, FleetHash: fleet, Key: "out", Count: 1}},
	}

	if err := good.Validate(); err != nil {
		t.Fatalf("Should accept a complete event: %s", err)
	}

	tt := []struct {
		name   string
		mutate func(ev *database.SignedEvent)
	}{
		{"missing hash", func(ev *database.SignedEvent) { ev.Hash = "" }},
		{"short fleet hash", func(ev *database.SignedEvent) { ev.FleetHash = "abc" }},
		{"unknown type", func(ev *database.SignedEvent) { ev.Type = database.EventUnknown }},
		{"duplicate input index", func(ev *database.SignedEvent) {
			ev.Inputs = []database.EventRef{{Index: 0, Key: "a"}, {Index: 0, Key: "b"}}
		}},
		{"empty output key", func(ev *database.SignedEvent) {
			ev.Outputs = []database.EventOutput{{Index: 0, Type: database.EventTransfer, FleetHash: fleet}}
		}},
		{"count above the maximum", func(ev *database.SignedEvent) {
			ev.Outputs = []database.EventOutput{{Index: 0, Type: database.EventTransfer, FleetHash: fleet, Key: "out", Count: database.MaxCount + 1}}
		}},
		{"model without type", func(ev *database.SignedEvent) {
			ev.Outputs = []database.EventOutput{{Index: 0, Type: database.EventTransfer, FleetHash: fleet, Key: "out", Model: vessel()}}
		}},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			ev := good
			tst.mutate(&ev)

			if err := ev.Validate(); !errors.Is(err, database.ErrMalformedInput) {
				t.Fatalf("Should reject the event as malformed: %v", err)
			}
		})
	}
}

func Test_EventTypeJSON(t *testing.T) {
	var ev struct {
		Type database.EventType `json:"type"`
	}

	if err := json.Unmarshal([]byte(`{"type":"attack"}`), &ev); err != nil {
		t.Fatalf("Should be able to decode an event type: %s", err)
	}

	if ev.Type != database.EventAttack {
		t.Fatalf("Should decode attack: got %s", ev.Type)
	}

	if err := json.Unmarshal([]byte(`{"type":"warp"}`), &ev); err == nil {
		t.Fatalf("Should reject an unknown event type.")
	}

	data, _ := json.Marshal(ev)
	if !strings.Contains(string(data), `"attack"`) {
		t.Fatalf("Should encode the event type by name: %s", data)
	}

	if !database.IsRejection(errors.Join(database.ErrAlreadySpent)) || database.IsRejection(errors.New("disk")) {
		t.Fatalf("Should tell rejections apart from failures.")
	}
}
