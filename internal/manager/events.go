package manager

import (
	"sync"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
)

// Listener receives registry events. It runs on the goroutine that caused the event and
// must not block.
type Listener func(domain.Event)

type eventBus struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

// Subscribe registers l and returns a function that removes it.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	b := &m.events
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]Listener)
	}
	id := b.next
	b.next++
	b.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

func (m *Manager) emit(t domain.EventType, sourceID string) {
	ev := domain.Event{Type: t, SourceID: sourceID, At: m.now()}

	b := &m.events
	b.mu.RLock()
	ls := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.RUnlock()

	for _, l := range ls {
		l(ev)
	}
}
