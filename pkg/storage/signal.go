package storage

import (
	"sync/atomic"
	"time"
)

// State describes backend availability as observed by the health monitor.
type State int

const (
	// StateUnknown is the initial state before the first conclusive probe.
	StateUnknown State = iota
	// StateAvailable means the backend answered the most recent probe.
	StateAvailable
	// StateUnavailable means the backend failed enough consecutive probes
	// to be considered down.
	StateUnavailable
)

// String returns the state name for logging and metrics labels.
func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Signal is an immutable snapshot of backend availability.
type Signal struct {
	State    State
	Since    time.Time // last transition time
	Failures int       // consecutive probe failures observed
}

// SignalHolder publishes the current Signal. The health monitor is the
// single writer; the hybrid store reads it on every operation. Snapshots
// are swapped atomically so readers never observe a half-updated signal.
type SignalHolder struct {
	current atomic.Pointer[Signal]
}

// NewSignalHolder creates a holder starting in StateUnknown.
func NewSignalHolder() *SignalHolder {
	h := &SignalHolder{}
	h.current.Store(&Signal{State: StateUnknown, Since: time.Now()})
	return h
}

// Current returns the latest published signal.
func (h *SignalHolder) Current() Signal {
	return *h.current.Load()
}

// publish replaces the current signal. Only the monitor calls this.
func (h *SignalHolder) publish(s Signal) {
	h.current.Store(&s)
}
