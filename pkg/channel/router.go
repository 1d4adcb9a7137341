package channel

import (
	"errors"
	"fmt"
	"sync"

	"cantp/isotp-go/pkg/can"
)

// ErrNoHandler is returned by Route when no handler is registered for the
// frame's identifier
var ErrNoHandler = errors.New("no handler for identifier")

// Handler consumes frames received on one CAN identifier
type Handler interface {
	// OnFrame is called when a frame with the handler's identifier arrives
	OnFrame(frame *can.Frame) error

	// CANID returns the identifier this handler listens on
	CANID() uint32
}

// Router routes received frames to handlers based on CAN identifier.
// Supports several ISO-TP endpoints sharing one bus connection.
type Router struct {
	handlers map[uint32]Handler // Key: CAN identifier
	mu       sync.RWMutex
}

// NewRouter creates a new router
func NewRouter() *Router {
	return &Router{
		handlers: make(map[uint32]Handler),
	}
}

// AddHandler registers a handler for its identifier
func (r *Router) AddHandler(handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := handler.CANID()

	if _, exists := r.handlers[id]; exists {
		return fmt.Errorf("handler for identifier %X already exists", id)
	}

	r.handlers[id] = handler
	return nil
}

// RemoveHandler removes the handler for an identifier
func (r *Router) RemoveHandler(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handlers, id)
}

// Route delivers a frame to the handler registered for its identifier.
// Returns an error if no handler is registered.
func (r *Router) Route(frame *can.Frame) error {
	r.mu.RLock()
	handler, exists := r.handlers[frame.ID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w %X", ErrNoHandler, frame.ID)
	}

	return handler.OnFrame(frame)
}

// GetHandler returns a handler by identifier
func (r *Router) GetHandler(id uint32) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[id]
	return handler, exists
}

// GetHandlerCount returns the number of registered handlers
func (r *Router) GetHandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.handlers)
}

// Clear removes all handlers
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = make(map[uint32]Handler)
}
