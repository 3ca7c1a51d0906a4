package tilestore

import (
	"fmt"
	"sync"

	"github.com/Faultbox/midgard-stitch/pkg/heightfield"
)

// Residency keeps acquired tiles in memory on top of a backing store.
//
// A tile becomes resident on its first Acquire and is dropped once every
// acquirer has released it. Reads of resident tiles are served from memory;
// writes go through to the backing store and refresh the resident copy.
type Residency struct {
	backing Store

	mu       sync.Mutex
	resident map[ID]*residentTile

	// Stats
	hits   int
	misses int
}

type residentTile struct {
	grid      *heightfield.Grid
	placement Placement
	refs      int
}

// NewResidency wraps a backing store.
func NewResidency(backing Store) *Residency {
	return &Residency{
		backing:  backing,
		resident: make(map[ID]*residentTile),
	}
}

// Acquire makes the tile resident and returns a function that releases it.
// The release function is safe to call more than once.
func (r *Residency) Acquire(id ID) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.resident[id]; ok {
		t.refs++
		r.hits++
		return r.releaser(id), nil
	}

	r.misses++
	g, err := r.backing.Elevation(id)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", id, err)
	}
	p, err := r.backing.Placement(id)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", id, err)
	}

	r.resident[id] = &residentTile{grid: g, placement: p, refs: 1}
	return r.releaser(id), nil
}

func (r *Residency) releaser(id ID) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			t, ok := r.resident[id]
			if !ok {
				return
			}
			t.refs--
			if t.refs <= 0 {
				delete(r.resident, id)
			}
		})
	}
}

// Resident reports whether a tile is currently held in memory.
func (r *Residency) Resident(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.resident[id]
	return ok
}

// Len returns the number of resident tiles.
func (r *Residency) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.resident)
}

// Stats returns hit/miss counts. A miss is any read, Acquire included, that
// went to the backing store.
func (r *Residency) Stats() (hits, misses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits, r.misses
}

// IDs lists the backing store's tiles.
func (r *Residency) IDs() ([]ID, error) {
	return r.backing.IDs()
}

// Elevation returns a copy of the tile's grid, from memory when resident.
func (r *Residency) Elevation(id ID) (*heightfield.Grid, error) {
	r.mu.Lock()
	if t, ok := r.resident[id]; ok {
		r.hits++
		g := t.grid.Clone()
		r.mu.Unlock()
		return g, nil
	}
	r.misses++
	r.mu.Unlock()

	return r.backing.Elevation(id)
}

// SetElevation writes through to the backing store.
func (r *Residency) SetElevation(id ID, g *heightfield.Grid) error {
	if err := r.backing.SetElevation(id, g); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.resident[id]; ok {
		t.grid = g.Clone()
	}
	return nil
}

// Placement returns the tile's world bounds.
func (r *Residency) Placement(id ID) (Placement, error) {
	r.mu.Lock()
	if t, ok := r.resident[id]; ok {
		p := t.placement
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	return r.backing.Placement(id)
}
