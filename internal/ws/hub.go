// Package ws streams console log records to dashboard viewers over
// websockets. Each running project has its own stream; a record emitted by
// the runner is fanned out to every viewer watching that project.
package ws

import "sync"

// Subscriber is one attached viewer of a project's console stream.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans console log payloads out to the viewers of each project. Delivery
// is synchronous with Broadcast; a viewer whose Send fails is dropped so a
// stalled dashboard tab cannot wedge log ingestion.
type Hub struct {
	mu      sync.Mutex
	viewers map[string]map[Subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{viewers: make(map[string]map[Subscriber]struct{})}
}

// Register attaches a viewer to the project's console stream.
func (h *Hub) Register(projectID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.viewers[projectID]
	if !ok {
		set = make(map[Subscriber]struct{})
		h.viewers[projectID] = set
	}
	set[sub] = struct{}{}
}

// Unregister detaches a viewer. Detaching the last viewer removes the
// project's entry entirely.
func (h *Hub) Unregister(projectID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.viewers[projectID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.viewers, projectID)
	}
}

// Broadcast delivers one console log payload to every viewer of the project.
// Viewers that fail to accept the payload are closed and dropped.
func (h *Hub) Broadcast(projectID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.viewers[projectID]
	if !ok {
		return
	}
	for sub := range set {
		if err := sub.Send(payload); err != nil {
			sub.Close()
			delete(set, sub)
		}
	}
	if len(set) == 0 {
		delete(h.viewers, projectID)
	}
}
