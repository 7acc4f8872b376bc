package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/config"
)

// Message is a notification from the engine's peer connection.
type Message struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Handler processes the raw params of one method.
type Handler func(ctx context.Context, params json.RawMessage) error

// Registry maps method names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register sets the handler for method, replacing any previous one.
func (r *Registry) Register(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Lookup returns the handler for method.
func (r *Registry) Lookup(method string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[method]
	return h, ok
}

// Methods returns the number of registered methods.
func (r *Registry) Methods() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Handle registers fn for method, decoding params into T first. Absent params
// decode as the zero T.
func Handle[T any](r *Registry, method string, fn func(ctx context.Context, params T) error) {
	r.Register(method, func(ctx context.Context, raw json.RawMessage) error {
		var params T
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &params); err != nil {
				return fmt.Errorf("decode %s params: %w", method, err)
			}
		}
		return fn(ctx, params)
	})
}

// Dispatcher routes messages to their handlers through a Sequencer.
type Dispatcher struct {
	registry *Registry
	seq      *Sequencer
	logger   config.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry *Registry, seq *Sequencer, logger config.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, seq: seq, logger: config.OrNop(logger)}
}

// Dispatch queues msg. The handler is resolved when the item runs, so
// handlers registered by earlier messages apply to later ones. It reports
// whether the message was accepted.
func (d *Dispatcher) Dispatch(msg Message) bool {
	return d.seq.Enqueue(Item{
		Payload: msg,
		Process: func(ctx context.Context, item Item) error {
			h, ok := d.registry.Lookup(msg.Method)
			if !ok {
				d.logger.Debug("no handler for notification", "id", item.ID, "method", msg.Method)
				return nil
			}
			if err := h(ctx, msg.Params); err != nil {
				return fmt.Errorf("%s: %w", msg.Method, err)
			}
			return nil
		},
	})
}
