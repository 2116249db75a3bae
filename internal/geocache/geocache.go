// Package geocache holds the per-location reference coordinate used to rebase
// plant positions for readers who do not own the plant.
package geocache

import (
	"sync"

	"github.com/gardenjournal/gardenjournal/internal/ident"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// Cache maps a location id to its reference coordinate. Entries are never
// evicted or overwritten; the persisted location loc is the source of truth
// and the cache is rebuilt from it lazily after a restart.
type Cache interface {
	// Get returns the cached reference for a location.
	Get(locationID ident.ID) (model.GeoPoint, bool)
	// SetIfAbsent stores p unless an entry exists. It returns the entry held
	// afterwards and whether this call stored it.
	SetIfAbsent(locationID ident.ID, p model.GeoPoint) (model.GeoPoint, bool)
}

// Memory is an unbounded in-process Cache.
type Memory struct {
	mu  sync.RWMutex
	ref map[ident.ID]model.GeoPoint
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an empty cache.
func NewMemory() *Memory {
	return &Memory{ref: make(map[ident.ID]model.GeoPoint)}
}

// Get implements Cache.
func (m *Memory) Get(locationID ident.ID) (model.GeoPoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.ref[locationID]
	return p, ok
}

// SetIfAbsent implements Cache.
func (m *Memory) SetIfAbsent(locationID ident.ID, p model.GeoPoint) (model.GeoPoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.ref[locationID]; ok {
		return cur, false
	}
	m.ref[locationID] = p
	return p, true
}

// Len reports the number of cached locations.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ref)
}
