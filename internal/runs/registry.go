// Package runs keeps track of in-flight and finished import runs so the
// API can answer status polls and cancel requests. The registry is
// in-memory: runs are transient by design and their results are never
// persisted.
package runs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haulstack/fuellens-api/internal/services"
)

// Entry ties a run handle to the request that started it.
type Entry struct {
	ID        uuid.UUID
	FileName  string
	StartedAt time.Time
	Run       *services.Run
}

// Registry is a concurrency-safe id → run table.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*Entry)}
}

// Add registers a run and returns its assigned id.
func (r *Registry) Add(fileName string, run *services.Run) *Entry {
	entry := &Entry{
		ID:        uuid.New(),
		FileName:  fileName,
		StartedAt: time.Now().UTC(),
		Run:       run,
	}
	r.mu.Lock()
	r.entries[entry.ID] = entry
	r.mu.Unlock()
	return entry
}

// Get looks up a run by id.
func (r *Registry) Get(id uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("import run not found: %s", id)
	}
	return entry, nil
}

// List returns all known runs, most recent first.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}
