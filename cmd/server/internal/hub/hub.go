package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Observer is one connected client receiving market notifications. SendBytes
// must never block the caller; a slow observer drops messages instead.
type Observer interface {
	ID() string
	SendBytes(b []byte)
	Close()
}

// Hub owns the set of currently connected observers and fans every
// notification out to all of them. There is a single instrument, so every
// observer implicitly receives the full feed; there is no replay for
// observers that connect late.
type Hub struct {
	observers map[Observer]bool
	logger    *zap.Logger
	mu        sync.RWMutex
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		observers: make(map[Observer]bool),
		logger:    logger,
	}
}

// Register adds an observer to the active set. Each connection is a distinct
// registration; no duplicate detection is needed.
func (h *Hub) Register(o Observer) {
	h.mu.Lock()
	h.observers[o] = true
	count := len(h.observers)
	h.mu.Unlock()

	h.logger.Debug("Observer registered", zap.String("id", o.ID()), zap.Int("total", count))
}

// Unregister removes an observer and closes it. Removing an observer that is
// already gone is a no-op.
func (h *Hub) Unregister(o Observer) {
	h.mu.Lock()
	_, ok := h.observers[o]
	delete(h.observers, o)
	count := len(h.observers)
	h.mu.Unlock()

	if !ok {
		return
	}
	o.Close()
	h.logger.Debug("Observer unregistered", zap.String("id", o.ID()), zap.Int("total", count))
}

// Broadcast marshals v once and delivers it to every registered observer.
// Delivery is best-effort: a full or dead observer never blocks the others,
// and its connection pumps take care of unregistering it.
func (h *Hub) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Broadcast marshal error", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for o := range h.observers {
		o.SendBytes(payload)
	}
}

// Count reports the number of currently registered observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}
