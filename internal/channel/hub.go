package channel

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Subscription is one observer's inbox. C is closed on Unsubscribe.
type Subscription struct {
	ID string
	C  <-chan Notification

	ch   chan Notification
	once sync.Once
}

// PublishResult describes a best-effort broadcast. A zero result means no
// observer was connected, which is a normal outcome.
type PublishResult struct {
	Delivered int
	Dropped   int
}

func (r PublishResult) NoObservers() bool {
	return r.Delivered == 0 && r.Dropped == 0
}

// Hub fans notifications out to observers without ever blocking the sender.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscription)}
}

func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Notification, buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	count := len(h.subs)
	h.mu.Unlock()

	log.Debug().Str("observerId", sub.ID).Int("observers", count).Msg("Observer subscribed")
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	delete(h.subs, sub.ID)
	count := len(h.subs)
	sub.once.Do(func() { close(sub.ch) })
	h.mu.Unlock()

	log.Debug().Str("observerId", sub.ID).Int("observers", count).Msg("Observer unsubscribed")
}

func (h *Hub) Publish(n Notification) PublishResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result PublishResult
	for _, sub := range h.subs {
		select {
		case sub.ch <- n:
			result.Delivered++
		default:
			result.Dropped++
		}
	}
	return result
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
