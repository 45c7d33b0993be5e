package player

import (
	"context"
	"sync"
)

// PlayFromSearch is dispatched when a search result should start playing.
const PlayFromSearch = "play-from-search"

// Event is a custom event carried over a [Bus].
type Event struct {
	Name    string
	PlayURL string
}

// HandlerFunc reacts to a dispatched [Event].
type HandlerFunc func(ctx context.Context, e Event)

// Bus is a window-scoped event dispatcher. Handlers run synchronously on the dispatching goroutine in
// subscription order.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[string][]subscription
}

type subscription struct {
	id int
	fn HandlerFunc
}

// NewBus creates an empty [Bus].
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]subscription)}
}

// Subscribe registers fn for events named name and returns a function that removes it.
func (b *Bus) Subscribe(name string, fn HandlerFunc) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	b.handlers[name] = append(b.handlers[name], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, s := range subs {
		if s.id == id {
			b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[name]) == 0 {
		delete(b.handlers, name)
	}
}

// Dispatch delivers e to every handler subscribed to e.Name.
func (b *Bus) Dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[e.Name]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ctx, e)
	}
}

// Len reports how many handlers are subscribed to name.
func (b *Bus) Len(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}
