package events

import "sync"

// Recorder accumulates emitted events in memory so callers such as the RPC
// layer can page through recent activity. A bounded capacity keeps long-lived
// nodes from growing without limit; once full the oldest events are dropped.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	events   []Event
}

// NewRecorder constructs a recorder retaining at most capacity events. A
// non-positive capacity disables the bound.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{capacity: capacity}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	if r.capacity > 0 && len(r.events) > r.capacity {
		r.events = r.events[len(r.events)-r.capacity:]
	}
}

// Events returns a snapshot of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
