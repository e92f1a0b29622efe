package adapters

import (
	"sync"

	"github.com/rs/zerolog/log"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// EventBusAdapter fans lifecycle events out to in-process subscribers. A
// subscriber whose buffer is full misses events rather than stalling the
// tracker.
type EventBusAdapter struct {
	mu     *sync.RWMutex
	nextID *int
	subs   map[int]chan types.Event
}

func NewEventBusAdapter() EventBusAdapter {
	next := 0
	return EventBusAdapter{mu: &sync.RWMutex{}, nextID: &next, subs: map[int]chan types.Event{}}
}

func (b EventBusAdapter) Publish(event types.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			log.Warn().Int("subscriber", id).Str("action", string(event.Action)).Msg("event subscriber is full, dropping event")
		}
	}
}

func (b EventBusAdapter) Subscribe(buffer int) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan types.Event, buffer)
	b.mu.Lock()
	id := *b.nextID
	*b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

var _ ports.EventBusPort = EventBusAdapter{}
