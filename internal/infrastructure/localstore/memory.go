package localstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub is an in-process storage area shared by several tabs. Each tab gets
// its own Memory view; writes through one view are signalled to the others.
type Hub struct {
	mu   sync.RWMutex
	data map[string]string
	tabs map[*Memory]struct{}
}

// NewHub creates an empty shared storage area
func NewHub() *Hub {
	return &Hub{
		data: make(map[string]string),
		tabs: make(map[*Memory]struct{}),
	}
}

// Tab opens a new view of the hub
func (h *Hub) Tab() *Memory {
	m := &Memory{hub: h, origin: uuid.NewString(), changes: newFanout()}
	h.mu.Lock()
	h.tabs[m] = struct{}{}
	h.mu.Unlock()
	return m
}

func (h *Hub) broadcast(from *Memory, c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for tab := range h.tabs {
		if tab != from {
			tab.changes.publish(c)
		}
	}
}

// Memory is a Store held in process memory
type Memory struct {
	hub     *Hub
	origin  string
	changes *fanout
}

// NewMemory returns a standalone in-memory store
func NewMemory() *Memory {
	return NewHub().Tab()
}

// Get implements Store
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.hub.mu.RLock()
	defer m.hub.mu.RUnlock()
	v, ok := m.hub.data[key]
	return v, ok, nil
}

// Set implements Store
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.hub.mu.Lock()
	m.hub.data[key] = value
	m.hub.mu.Unlock()
	m.hub.broadcast(m, Change{Key: key, Value: value, Origin: m.origin})
	return nil
}

// Remove implements Store
func (m *Memory) Remove(_ context.Context, key string) error {
	m.hub.mu.Lock()
	_, existed := m.hub.data[key]
	delete(m.hub.data, key)
	m.hub.mu.Unlock()
	if existed {
		m.hub.broadcast(m, Change{Key: key, Removed: true, Origin: m.origin})
	}
	return nil
}

// Watch implements Store
func (m *Memory) Watch(ctx context.Context) <-chan Change {
	return m.changes.watch(ctx)
}

// Close detaches the tab from its hub
func (m *Memory) Close() error {
	m.hub.mu.Lock()
	delete(m.hub.tabs, m)
	m.hub.mu.Unlock()
	m.changes.close()
	return nil
}

var _ Store = (*Memory)(nil)
