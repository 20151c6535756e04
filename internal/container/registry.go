package container

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dgnsrekt/tabshell/internal/types"
)

// Registry maps container ids to the containers attached to open tabs.
type Registry struct {
	mu         sync.RWMutex
	containers map[int]*Container
}

func NewRegistry() *Registry {
	return &Registry{containers: make(map[int]*Container)}
}

// Register inserts c. Each container is registered exactly once.
func (r *Registry) Register(c *Container) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.containers[c.ID()]; exists {
		return types.NewError(types.CodeValidation, fmt.Sprintf("container %d already registered", c.ID()), nil)
	}
	r.containers[c.ID()] = c
	return nil
}

// Get looks up a container. A miss means the tab is already closed.
func (r *Registry) Get(id int) (*Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[id]
	return c, ok
}

// Remove closes the container's surface and drops it. Missing ids are
// ignored; the result reports whether this call removed the entry.
func (r *Registry) Remove(ctx context.Context, id int) bool {
	r.mu.Lock()
	c, ok := r.containers[id]
	delete(r.containers, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	if err := c.Surface().Close(ctx); err != nil {
		slog.Warn("container close failed", "container_id", id, "error", err)
	}
	return true
}

// RemoveAll forgets every container without closing surfaces.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	r.containers = make(map[int]*Container)
	r.mu.Unlock()
}

// List returns the registered containers ordered by id.
func (r *Registry) List() []*Container {
	r.mu.RLock()
	out := make([]*Container, 0, len(r.containers))
	for _, c := range r.containers {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.containers)
}
