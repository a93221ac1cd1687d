package events

import (
	"context"
	"sync"

	"melodyhub/internal/logger"
)

// EventBus is the publish/subscribe surface the modules depend on.
type EventBus interface {
	// Publish delivers the event synchronously to every subscriber.
	Publish(ctx context.Context, event Event) error

	// PublishAsync queues the event for background delivery; it never blocks.
	PublishAsync(event Event)

	// Subscribe registers a handler for the given event types. An empty type
	// list subscribes to everything. The returned function unsubscribes.
	Subscribe(types []EventType, handler EventHandler) (unsubscribe func())

	// Stop drains the async queue and stops delivery.
	Stop()
}

type subscription struct {
	id      int
	types   map[EventType]bool
	handler EventHandler
}

func (s *subscription) matches(t EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

type bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewBus creates a started event bus with a buffered async queue.
func NewBus(bufferSize int) EventBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	b := &bus{
		subs:  make(map[int]*subscription),
		queue: make(chan Event, bufferSize),
		done:  make(chan struct{}),
	}
	go b.dispatchLoop()
	return b
}

func (b *bus) dispatchLoop() {
	for {
		select {
		case ev := <-b.queue:
			b.deliver(ev)
		case <-b.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case ev := <-b.queue:
					b.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (b *bus) deliver(ev Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(ev.Type) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (b *bus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.deliver(event)
	return nil
}

func (b *bus) PublishAsync(event Event) {
	select {
	case b.queue <- event:
	default:
		logger.Warn("event queue full, dropping event", "type", event.Type)
	}
}

func (b *bus) Subscribe(types []EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	typeSet := make(map[EventType]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	b.subs[id] = &subscription{id: id, types: typeSet, handler: handler}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *bus) Stop() {
	b.once.Do(func() { close(b.done) })
}
