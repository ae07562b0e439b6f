package database

import "fmt"

// EventType is the closed set of game actions an event can represent.
type EventType int

// Set of event types.
const (
	EventUnknown EventType = iota
	EventReward
	EventJump
	EventAttack
	EventTransfer
)

var eventTypeNames = map[EventType]string{
	EventReward:   "reward",
	EventJump:     "jump",
	EventAttack:   "attack",
	EventTransfer: "transfer",
}

// ParseEventType converts the wire name of an event type.
func ParseEventType(s string) (EventType, error) {
	for et, name := range eventTypeNames {
		if name == s {
			return et, nil
		}
	}
	return EventUnknown, fmt.Errorf("%w: unknown event type %q", ErrMalformedInput, s)
}

// String implements the fmt.Stringer interface.
func (et EventType) String() string {
	if name, exists := eventTypeNames[et]; exists {
		return name
	}
	return "unknown"
}

// MarshalText implements the encoding.TextMarshaler interface.
func (et EventType) MarshalText() ([]byte, error) {
	name, exists := eventTypeNames[et]
	if !exists {
		return nil, fmt.Errorf("unknown event type %d", int(et))
	}
	return []byte(name), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (et *EventType) UnmarshalText(data []byte) error {
	v, err := ParseEventType(string(data))
	if err != nil {
		return err
	}
	*et = v
	return nil
}
