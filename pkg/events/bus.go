// Package events provides the in-process typed event bus that decouples
// producers of occurrences (transports, the stream monitor, the command
// processor) from the plugins and components that consume them.
package events

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/grvsrs/hostbot/pkg/logger"
)

type registration struct {
	id      uintptr
	handler Handler
}

// Bus is a synchronous in-process event bus. Handlers for a type run in
// subscription order on the emitting goroutine; a handler returning
// StopPropagation ends the current emission.
//
// The bus is owned by the host object that constructs it, never a package
// global, so multiple bot instances and test fixtures can coexist.
type Bus struct {
	mu       sync.Mutex
	handlers map[Type][]registration
}

// NewBus creates a bus with a slot for every declared event type.
func NewBus() *Bus {
	b := &Bus{handlers: make(map[Type][]registration, len(AllTypes()))}
	for _, t := range AllTypes() {
		b.handlers[t] = nil
	}
	return b
}

// slot returns the handler list for t, panicking on undeclared types.
// The type registry is closed at construction, so an unknown type is a
// programming defect rather than a runtime condition to tolerate.
func (b *Bus) slot(t Type) []registration {
	regs, ok := b.handlers[t]
	if !ok {
		panic(fmt.Sprintf("events: unknown event type %q", t))
	}
	return regs
}

// Subscribe registers handler for the given event type. Subscribing the
// same handler twice for one type is a no-op. Handler identity is the
// function's code pointer: two closures built from the same literal, or
// one method bound to two different receivers, count as the same
// handler and at most one of them can be subscribed per type. A
// component that needs several live instances on one bus must give each
// instance a distinct named function. If insertFirst is true the
// handler is placed ahead of all currently registered handlers, for
// consumers that need first refusal of an emission.
func (b *Bus) Subscribe(t Type, handler Handler, insertFirst bool) {
	if handler == nil {
		panic("events: nil handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.slot(t)
	id := reflect.ValueOf(handler).Pointer()
	for _, r := range regs {
		if r.id == id {
			return
		}
	}

	reg := registration{id: id, handler: handler}
	if insertFirst {
		b.handlers[t] = append([]registration{reg}, regs...)
	} else {
		b.handlers[t] = append(regs, reg)
	}
}

// Unsubscribe removes handler from the given event type. Removing a
// handler that was never subscribed is a no-op.
func (b *Bus) Unsubscribe(t Type, handler Handler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.slot(t)
	id := reflect.ValueOf(handler).Pointer()
	for i, r := range regs {
		if r.id == id {
			b.handlers[t] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit invokes every handler currently subscribed for t, in subscription
// order, passing args through unchanged. The first handler that returns
// StopPropagation ends the emission; other emissions are unaffected.
//
// The handler list is snapshotted before invocation, so subscribe and
// unsubscribe calls made by handlers take effect from the next emission.
func (b *Bus) Emit(t Type, args ...interface{}) {
	b.mu.Lock()
	regs := b.slot(t)
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	b.mu.Unlock()

	logger.DebugCF("events", "emit", map[string]interface{}{
		"type": string(t), "handlers": len(snapshot),
	})

	for _, r := range snapshot {
		if r.handler(args...) == StopPropagation {
			return
		}
	}
}

// HandlerCount returns the number of handlers subscribed for t.
func (b *Bus) HandlerCount(t Type) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slot(t))
}
