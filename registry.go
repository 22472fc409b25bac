package urmp

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// HandlerFunc processes one application message. The message is only valid
// for the duration of the call; it returns to the pool afterwards.
type HandlerFunc func(m *Message, c *Connection)

// Registry maps numeric message ids (the first two payload bytes of every
// application message) to handlers. Each Server and Client owns its own
// registry; there is no process-wide registration state.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uint16]HandlerFunc
}

func newRegistry() *Registry {
	return &Registry{handlers: make(map[uint16]HandlerFunc)}
}

// Register maps id to fn. Registering an id twice returns
// ErrDuplicateHandler. The returned registration removes the mapping
// deterministically when no longer wanted.
func (r *Registry) Register(id uint16, fn HandlerFunc) (*HandlerRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[id]; ok {
		return nil, fmt.Errorf("message id %d: %w", id, ErrDuplicateHandler)
	}
	r.handlers[id] = fn
	return &HandlerRegistration{registry: r, id: id}, nil
}

// dispatch reads the message id and invokes the matching handler. Messages
// without a handler are logged and dropped; they are not an error.
func (r *Registry) dispatch(m *Message, c *Connection) {
	id, err := m.ReadUint16()
	if err != nil {
		log.WithField("ConnectionID", c.ID()).Warn("Message too short for an id")
		return
	}

	r.mu.RLock()
	fn := r.handlers[id]
	r.mu.RUnlock()

	if fn == nil {
		log.WithFields(log.Fields{
			"MessageID":    id,
			"ConnectionID": c.ID(),
		}).Warn("No handler for message")
		return
	}
	fn(m, c)
}

// HandlerRegistration is the removal handle returned by Register.
type HandlerRegistration struct {
	registry *Registry
	id       uint16
	once     sync.Once
}

// Remove unregisters the handler. Safe to call more than once.
func (h *HandlerRegistration) Remove() {
	h.once.Do(func() {
		h.registry.mu.Lock()
		delete(h.registry.handlers, h.id)
		h.registry.mu.Unlock()
	})
}
