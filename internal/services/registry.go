package services

import "sync"

// ControllerRegistry holds the open controller of each chat
type ControllerRegistry struct {
	mu          sync.Mutex
	controllers map[int64]*Controller
}

// NewControllerRegistry creates an empty registry
func NewControllerRegistry() *ControllerRegistry {
	return &ControllerRegistry{controllers: make(map[int64]*Controller)}
}

// Get returns the chat's controller
func (r *ControllerRegistry) Get(chatID int64) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[chatID]
	return c, ok
}

// Put replaces the chat's controller
func (r *ControllerRegistry) Put(chatID int64, c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[chatID] = c
}

// Remove drops the chat's controller
func (r *ControllerRegistry) Remove(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, chatID)
}
