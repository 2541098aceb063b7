package worker

import (
	"time"

	"stovelink"
)

// EventKind classifies worker emissions toward the presentation layer.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventSnapshot     EventKind = "snapshot"
	EventLog          EventKind = "log"
)

// Event is one immutable worker emission. Only the fields relevant to the
// Kind are populated.
type Event struct {
	Kind     EventKind
	At       time.Time
	Address  string                   // connected
	Reason   string                   // disconnected
	Snapshot *stovelink.StoveSnapshot // snapshot
	Message  string                   // log
}

// Emitter delivers events over a bounded channel. When the consumer lags,
// the oldest buffered event is dropped so the worker never blocks on
// presentation. A fresh snapshot always supersedes a stale one anyway.
type Emitter struct {
	ch chan Event
}

func NewEmitter(buffer int) *Emitter {
	if buffer < 1 {
		buffer = 1
	}
	return &Emitter{ch: make(chan Event, buffer)}
}

// Emit enqueues ev, evicting the oldest buffered event if the channel is
// full. It never blocks.
func (e *Emitter) Emit(ev Event) {
	for {
		select {
		case e.ch <- ev:
			return
		default:
		}
		select {
		case <-e.ch:
		default:
		}
	}
}

// Events returns the receive side of the event stream.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}
