package respond

import (
	"context"
	"sync"

	"shield-respond/internal/schema"
)

// HandlerResult is the outcome an action handler reports back to the engine.
type HandlerResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Output  map[string]any `json:"output,omitempty"`
}

// Handler performs the real-world effect of one action type (blocking an
// address, quarantining a file, revoking tokens). Implementations live
// outside the engine and are registered at startup; the engine trusts the
// returned result and recovers from any panic.
type Handler interface {
	// Type returns the action-type identifier this handler serves.
	Type() string

	// Execute performs the action for the given threat. The context
	// carries the per-action deadline; implementations should honor it.
	Execute(ctx context.Context, threat *schema.Threat, ectx schema.Context, params map[string]any) (*HandlerResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	ActionType string
	Fn         func(ctx context.Context, threat *schema.Threat, ectx schema.Context, params map[string]any) (*HandlerResult, error)
}

func (h HandlerFunc) Type() string { return h.ActionType }

func (h HandlerFunc) Execute(ctx context.Context, threat *schema.Threat, ectx schema.Context, params map[string]any) (*HandlerResult, error) {
	return h.Fn(ctx, threat, ectx, params)
}

// HandlerRegistry maps action-type identifiers to handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]Handler),
	}
}

// Register stores a handler under its action type. Registering the same
// type twice replaces the previous handler.
func (r *HandlerRegistry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Resolve returns the handler for an action type.
func (r *HandlerRegistry) Resolve(actionType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionType]
	return h, ok
}

// Types returns the registered action types.
func (r *HandlerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// Len returns the number of registered handlers.
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
