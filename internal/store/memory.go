// Package store holds the process-lifetime occurrence cache. It is the only
// state that outlives a single query: the collector writes through to it
// after every successful merge and the query layer reads it back when live
// collection fails.
package store

import (
	"sync"

	"github.com/church-studio/venue-api/internal/occurrence"
)

// Memory is an in-memory occurrence store keyed by occurrence id.
// Last-write-wins, no expiry; entries survive until process restart.
type Memory struct {
	mu   sync.RWMutex
	occs map[string]occurrence.Occurrence
}

// NewMemory creates an empty occurrence store.
func NewMemory() *Memory {
	return &Memory{
		occs: make(map[string]occurrence.Occurrence),
	}
}

// Get retrieves an occurrence by id.
func (m *Memory) Get(id string) (occurrence.Occurrence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.occs[id]
	return o, ok
}

// Put stores an occurrence, overwriting any previous entry with the same id.
func (m *Memory) Put(id string, o occurrence.Occurrence) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.occs[id] = o
}

// PutIfAbsent stores an occurrence only when no entry with the same id
// exists. Webhook-delivered occurrences use this so a thinner payload never
// overwrites a fuller aggregated record. Returns true when the entry was
// added.
func (m *Memory) PutIfAbsent(id string, o occurrence.Occurrence) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.occs[id]; exists {
		return false
	}
	m.occs[id] = o
	return true
}

// Values returns a snapshot of all stored occurrences in unspecified order.
func (m *Memory) Values() []occurrence.Occurrence {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]occurrence.Occurrence, 0, len(m.occs))
	for _, o := range m.occs {
		out = append(out, o)
	}
	return out
}

// Len reports the number of stored occurrences.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.occs)
}
