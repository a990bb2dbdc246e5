// Package events is the in-process publish/subscribe channel between the
// batch engine, the adapters and whoever observes them (CLI progress, the MCP
// server, tests). A Bus is always passed in explicitly; there is no global.
package events

import (
	"sync"
	"time"
)

// Event names published by the pipeline.
const (
	BatchStart  = "batch:start"
	BatchFinish = "batch:finish"
	Progress    = "progress:step"
	RowUpdated  = "row:updated"
	LogAdd      = "log:add"
	ExportDone  = "export:done"

	// Any subscribes a handler to every event.
	Any = "*"
)

// Event is one published notification.
type Event struct {
	Name    string
	Payload any
	Time    time.Time
}

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

// Bus is the publish/subscribe contract components depend on.
type Bus interface {
	// On registers h for name and returns a func that unregisters it.
	On(name string, h Handler) (off func())
	// Emit calls every handler registered for name or for Any once, in
	// registration order, before returning.
	Emit(name string, payload any)
}

// Local is the in-process Bus implementation. It is safe for concurrent use;
// handlers may emit further events.
type Local struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id   int
	name string
	fn   Handler
}

// NewLocal returns an empty bus.
func NewLocal() *Local {
	return &Local{}
}

// On implements Bus.
func (b *Local) On(name string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.off(id) })
	}
}

func (b *Local) off(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit implements Bus. Named and Any handlers share one registration order.
func (b *Local) Emit(name string, payload any) {
	b.mu.Lock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == name || s.name == Any {
			matched = append(matched, s)
		}
	}
	b.mu.Unlock()

	ev := Event{Name: name, Payload: payload, Time: time.Now().UTC()}
	for _, s := range matched {
		s.fn(ev)
	}
}

// Discard is a Bus that drops everything.
type Discard struct{}

// On implements Bus.
func (Discard) On(string, Handler) func() { return func() {} }

// Emit implements Bus.
func (Discard) Emit(string, any) {}
