package database

import (
	"crypto/rsa"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
)

// MaxCount is the largest ship count an output can carry.
const MaxCount uint64 = math.MaxInt64

// EventRef points at an event key from an event signature. The index gives
// the canonical order of the inputs or outputs.
type EventRef struct {
	Index int    `json:"index" validate:"gte=0"`
	Key   string `json:"key" validate:"required,max=128"`
}

// EventOutput is an event created by a signed event.
type EventOutput struct {
	Index      int       `json:"index" validate:"gte=0"`
	Type       EventType `json:"type" validate:"required"`
	FleetHash  string    `json:"fleet_hash" validate:"required,len=64,hexadecimal"`
	Key        string    `json:"key" validate:"required,max=128"`
	StarSystem string    `json:"star_system" validate:"omitempty,len=64,hexadecimal"`
	Count      uint64    `json:"count"`
	ModelType  string    `json:"model_type,omitempty" validate:"omitempty,oneof=vessel"`
	Model      *Vessel   `json:"model,omitempty"`
}

// SignedEvent is a game action signed by the fleet performing it. This is
// how clients submit events, alone or inside a star log.
type SignedEvent struct {
	Index         int           `json:"index" validate:"gte=0"`
	Hash          string        `json:"hash" validate:"required,len=64,hexadecimal"`
	FleetHash     string        `json:"fleet_hash" validate:"required,len=64,hexadecimal"`
	FleetKey      string        `json:"fleet_key" validate:"required"`
	Signature     string        `json:"signature" validate:"required,hexadecimal"`
	Type          EventType     `json:"type" validate:"required"`
	Time          int64         `json:"time" validate:"gte=0"`
	Confirmations int           `json:"confirmations"`
	Inputs        []EventRef    `json:"inputs" validate:"unique=Index,dive"`
	Outputs       []EventOutput `json:"outputs" validate:"unique=Index,dive"`
}

// Header returns the canonical serialization of the event that is hashed
// and signed: fleet hash, fleet key and type, then every input key and
// every output ordered by index.
func (ev SignedEvent) Header() string {
	var b strings.Builder
	b.WriteString(ev.FleetHash)
	b.WriteString(ev.FleetKey)
	b.WriteString(ev.Type.String())

	for _, in := range ev.SortedInputs() {
		b.WriteString(in.Key)
	}

	for _, out := range ev.SortedOutputs() {
		b.WriteString(out.Type.String())
		b.WriteString(out.FleetHash)
		b.WriteString(out.Key)
		b.WriteString(out.StarSystem)
		b.WriteString(strconv.FormatUint(out.Count, 10))
		b.WriteString(out.Model.header())
	}

	return b.String()
}

// ComputeHash returns the hash the event should carry.
func (ev SignedEvent) ComputeHash() string {
	return signature.Hash(ev.Header())
}

// SortedInputs returns a copy of the inputs ordered by index.
func (ev SignedEvent) SortedInputs() []EventRef {
	ins := make([]EventRef, len(ev.Inputs))
	copy(ins, ev.Inputs)
	sort.SliceStable(ins, func(i, j int) bool { return ins[i].Index < ins[j].Index })
	return ins
}

// SortedOutputs returns a copy of the outputs ordered by index.
func (ev SignedEvent) SortedOutputs() []EventOutput {
	outs := make([]EventOutput, len(ev.Outputs))
	copy(outs, ev.Outputs)
	sort.SliceStable(outs, func(i, j int) bool { return outs[i].Index < outs[j].Index })
	return outs
}

// Validate checks the event is structurally complete.
func (ev SignedEvent) Validate() error {
	if err := check(ev); err != nil {
		return err
	}

	for _, out := range ev.Outputs {
		if out.Model != nil && out.ModelType != ModelVessel {
			return fmt.Errorf("%w: output %s carries a model without a model type", ErrMalformedInput, out.Key)
		}
		if out.Count > MaxCount {
			return fmt.Errorf("%w: output %s count %d is above %d", ErrMalformedInput, out.Key, out.Count, MaxCount)
		}
	}

	return nil
}

// Sign stamps the event with the fleet's key, hash and signature.
func (ev SignedEvent) Sign(privateKey *rsa.PrivateKey) (SignedEvent, error) {
	pub, err := signature.EncodePublicKey(privateKey)
	if err != nil {
		return SignedEvent{}, err
	}

	ev.FleetKey = pub
	ev.FleetHash = signature.FleetHash(pub)
	ev.Hash = ev.ComputeHash()

	sig, err := signature.Sign(privateKey, ev.Header())
	if err != nil {
		return SignedEvent{}, err
	}
	ev.Signature = sig

	return ev, nil
}

// =============================================================================

// Fleet is the identity of a player. The public key is unknown until the
// fleet signs an event itself.
type Fleet struct {
	Hash      string `json:"hash"`
	PublicKey string `json:"public_key,omitempty"`
}

// Event is a spendable resource unit. Whether it is spent depends on the
// chain it is looked at from, so nothing on it records that.
type Event struct {
	Key        string    `json:"key"`
	Type       EventType `json:"type"`
	FleetHash  string    `json:"fleet_hash"`
	Count      uint64    `json:"count"`
	StarSystem string    `json:"star_system"`
	Location   string    `json:"location"`
	ModelType  string    `json:"model_type,omitempty"`
	Model      *Vessel   `json:"model,omitempty"`
	Origin     string    `json:"origin"`
}

// Output converts the event back into the output that created it.
func (e Event) Output(index int) EventOutput {
	return EventOutput{
		Index:      index,
		Type:       e.Type,
		FleetHash:  e.FleetHash,
		Key:        e.Key,
		StarSystem: e.StarSystem,
		Count:      e.Count,
		ModelType:  e.ModelType,
		Model:      e.Model,
	}
}

// EventSignature is the stored record of a signed event. It can be bound
// to more than one star log.
type EventSignature struct {
	Hash          string     `json:"hash"`
	FleetHash     string     `json:"fleet_hash"`
	Signature     string     `json:"signature"`
	Type          EventType  `json:"type"`
	Time          int64      `json:"time"`
	Confirmations int        `json:"confirmations"`
	Inputs        []EventRef `json:"inputs"`
	Outputs       []EventRef `json:"outputs"`
}

// NewEventSignature builds the stored record for a signed event.
func NewEventSignature(ev SignedEvent) EventSignature {
	es := EventSignature{
		Hash:      ev.Hash,
		FleetHash: ev.FleetHash,
		Signature: ev.Signature,
		Type:      ev.Type,
		Time:      ev.Time,
		Inputs:    ev.SortedInputs(),
		Outputs:   make([]EventRef, 0, len(ev.Outputs)),
	}

	for _, out := range ev.SortedOutputs() {
		es.Outputs = append(es.Outputs, EventRef{Index: out.Index, Key: out.Key})
	}

	return es
}

// Binding places an event signature inside a star log. Height and ChainID
// are those of the star log.
type Binding struct {
	StarLogHash   string `json:"star_log_hash"`
	SignatureHash string `json:"signature_hash"`
	Index         int    `json:"index"`
	Height        uint64 `json:"height"`
	ChainID       int64  `json:"chain"`
}
