package events

import "sync"

// Recorder is an append-only event log fed from a Bus. Observers that poll
// (the MCP server) read it with Since.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	off    func()
}

// Record subscribes a new Recorder to every event on bus.
func Record(bus Bus) *Recorder {
	r := &Recorder{}
	r.off = bus.On(Any, r.append)
	return r
}

func (r *Recorder) append(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Since returns the events from idx onward. Negative idx is clamped to 0.
func (r *Recorder) Since(idx int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.events) {
		return nil
	}
	out := make([]Event, len(r.events)-idx)
	copy(out, r.events[idx:])
	return out
}

// Named returns the recorded events with the given name, in order.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset drops the history.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Close unsubscribes from the bus.
func (r *Recorder) Close() {
	if r.off != nil {
		r.off()
	}
}
