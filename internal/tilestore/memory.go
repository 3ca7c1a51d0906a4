package tilestore

import (
	"fmt"
	"sync"

	"github.com/Faultbox/midgard-stitch/pkg/heightfield"
)

// Tile is a complete tile record as held by MemoryStore.
type Tile struct {
	ID        ID
	Grid      *heightfield.Grid
	Placement Placement
}

// MemoryStore keeps tiles in a map. It is used by tests and as a scratch store.
type MemoryStore struct {
	mu    sync.RWMutex
	tiles map[ID]*Tile
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tiles: make(map[ID]*Tile)}
}

// Put adds or replaces a tile. The grid is copied.
func (m *MemoryStore) Put(t Tile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles[t.ID] = &Tile{ID: t.ID, Grid: t.Grid.Clone(), Placement: t.Placement}
}

// Delete removes a tile.
func (m *MemoryStore) Delete(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tiles, id)
}

// IDs lists tiles in ascending ID order.
func (m *MemoryStore) IDs() ([]ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]ID, 0, len(m.tiles))
	for id := range m.tiles {
		ids = append(ids, id)
	}
	return sortIDs(ids), nil
}

// Elevation returns a copy of the tile's grid.
func (m *MemoryStore) Elevation(id ID) (*heightfield.Grid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, id)
	}
	return t.Grid.Clone(), nil
}

// SetElevation replaces the tile's grid with a copy of g.
func (m *MemoryStore) SetElevation(id ID, g *heightfield.Grid) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tiles[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTileNotFound, id)
	}
	t.Grid = g.Clone()
	return nil
}

// Placement returns the tile's world bounds.
func (m *MemoryStore) Placement(id ID) (Placement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tiles[id]
	if !ok {
		return Placement{}, fmt.Errorf("%w: %s", ErrTileNotFound, id)
	}
	return t.Placement, nil
}
