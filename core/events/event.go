package events

import (
	"sync"

	"hgigs/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Typed is implemented by events that can render themselves into the generic
// attribute form consumed by journals, metrics and stream subscribers.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Multi fans a single event out to every configured emitter in order.
type Multi []Emitter

// NewMulti drops nil entries and flattens nested fan-outs.
func NewMulti(emitters ...Emitter) Multi {
	out := make(Multi, 0, len(emitters))
	for _, emitter := range emitters {
		switch e := emitter.(type) {
		case nil:
			continue
		case Multi:
			out = append(out, e...)
		default:
			out = append(out, e)
		}
	}
	return out
}

// Emit implements the Emitter interface.
func (m Multi) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Payload extracts the generic representation of evt, if it has one.
func Payload(evt Event) *types.Event {
	typed, ok := evt.(Typed)
	if !ok {
		return nil
	}
	return typed.Event()
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events returns a snapshot of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in emission order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.EventType()
	}
	return out
}
