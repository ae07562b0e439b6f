// Package events allows for the registering and receiving of ledger events.
// Only messages raised for the viewer are fanned out, everything else the
// ledger reports is for the logs.
package events

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// viewerPrefix marks a message raised for websocket clients. The rest of
// the message is the kind, a colon and the JSON payload.
const viewerPrefix = "viewer: "

// Message is what a websocket client receives.
type Message struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Parse extracts the viewer message from a raw ledger event.
func Parse(s string) (Message, bool) {
	rest, ok := strings.CutPrefix(s, viewerPrefix)
	if !ok {
		return Message{}, false
	}

	kind, data, ok := strings.Cut(rest, ": ")
	if !ok || !json.Valid([]byte(data)) {
		return Message{}, false
	}

	return Message{Kind: kind, Data: json.RawMessage(data)}, true
}

// =============================================================================

type subscriber struct {
	ch    chan Message
	kinds []string
}

func (sub subscriber) wants(kind string) bool {
	return len(sub.kinds) == 0 || slices.Contains(sub.kinds, kind)
}

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	m  map[string]subscriber
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]subscriber),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, sub := range evt.m {
		delete(evt.m, id)
		close(sub.ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used to
// receive events. With no kinds every kind is delivered.
func (evt *Events) Acquire(id string, kinds ...string) <-chan Message {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	sub, exists := evt.m[id]
	if exists {
		return sub.ch
	}

	// Since a message will be dropped if the websocket receiver is
	// not ready to receive, this arbitrary buffer should give the receiver
	// enough time to not lose a message. Websocket send could take long.
	const messageBuffer = 100

	sub = subscriber{
		ch:    make(chan Message, messageBuffer),
		kinds: kinds,
	}
	evt.m[id] = sub

	return sub.ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	sub, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(sub.ch)
	return nil
}

// Send signals a viewer message to every registered channel that wants its
// kind. Send will not block waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	msg, ok := Parse(s)
	if !ok {
		return
	}

	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, sub := range evt.m {
		if !sub.wants(msg.Kind) {
			continue
		}

		select {
		case sub.ch <- msg:
		default:
		}
	}
}
