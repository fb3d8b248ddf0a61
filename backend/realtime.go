package backend

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const hubBuffer = 64

type hubSub struct {
	table  string
	ch     chan ChangeEvent
	lagged atomic.Bool
}

// Hub fans out row change events to in-process subscribers.
// Each subscriber gets its own buffered channel drained by one goroutine,
// so handlers see events in publish order. A full buffer drops the event,
// and the subscriber then gets a ChangeResync once it catches up.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]*hubSub
	next   int
	closed bool
	log    *zap.SugaredLogger
}

// NewHub creates a hub. log may be nil.
func NewHub(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{subs: make(map[int]*hubSub), log: log}
}

// Publish delivers ev to every subscriber of ev.Table without blocking.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.subs {
		if sub.table != ev.Table {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			sub.lagged.Store(true)
			h.log.Warnw("realtime subscriber lagging, event dropped", "sub", id, "table", ev.Table, "type", ev.Type)
		}
	}
}

// Subscribe calls handler for every event published on table until the
// returned func is called or the hub is closed.
func (h *Hub) Subscribe(table string, handler func(ChangeEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return func() {}
	}
	id := h.next
	h.next++
	sub := &hubSub{table: table, ch: make(chan ChangeEvent, hubBuffer)}
	h.subs[id] = sub

	go func() {
		for ev := range sub.ch {
			handler(ev)
			if sub.lagged.CompareAndSwap(true, false) {
				handler(ChangeEvent{Table: table, Type: ChangeResync})
			}
		}
	}()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later Subscribe calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
