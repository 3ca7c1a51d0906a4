// Package neighbor finds the tile adjacent to another tile in a cardinal
// direction. Adjacency is derived from world placement, never stored.
package neighbor

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Faultbox/midgard-stitch/internal/tilestore"
	"github.com/Faultbox/midgard-stitch/pkg/geom"
)

// ErrResolution is returned when a neighbour could not be determined.
// Callers treat it as "no neighbour".
var ErrResolution = errors.New("neighbor resolution failed")

// DefaultEpsilon is the default world-space adjacency tolerance.
const DefaultEpsilon = 0.01

// Resolver finds adjacent tiles.
type Resolver interface {
	// FindNeighbor returns the tile next to id in direction d.
	// ok is false when there is no such tile.
	FindNeighbor(id tilestore.ID, d geom.Direction) (neighbor tilestore.ID, ok bool, err error)
}

// PlacementSource is the part of a tile store the spatial resolver reads.
type PlacementSource interface {
	IDs() ([]tilestore.ID, error)
	Placement(id tilestore.ID) (tilestore.Placement, error)
}

// SpatialResolver indexes tile origins in a bucket grid and answers
// adjacency queries against it.
type SpatialResolver struct {
	source  PlacementSource
	epsilon float64
	bucket  float64

	mu      sync.RWMutex
	built   bool
	buckets map[bucketKey][]indexed
}

type bucketKey struct {
	X, Y int64
}

type indexed struct {
	id   tilestore.ID
	rect geom.Rect
}

// NewSpatialResolver creates a resolver over source. The index is built on first use.
func NewSpatialResolver(source PlacementSource, epsilon float64) *SpatialResolver {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &SpatialResolver{
		source:  source,
		epsilon: epsilon,
		// Any origin within epsilon of a query point lands in the query's
		// bucket or one of its eight neighbours.
		bucket: math.Max(epsilon*4, 1),
	}
}

// Refresh rebuilds the spatial index from the source.
func (r *SpatialResolver) Refresh() error {
	ids, err := r.source.IDs()
	if err != nil {
		return fmt.Errorf("listing tiles: %w", err)
	}

	buckets := make(map[bucketKey][]indexed, len(ids))
	for _, id := range ids {
		p, err := r.source.Placement(id)
		if err != nil {
			return fmt.Errorf("placing tile %s: %w", id, err)
		}
		key := r.keyOf(p.Rect.Origin)
		buckets[key] = append(buckets[key], indexed{id: id, rect: p.Rect})
	}

	r.mu.Lock()
	r.buckets = buckets
	r.built = true
	r.mu.Unlock()
	return nil
}

// FindNeighbor returns the tile whose origin sits where a neighbour of id in
// direction d should start. When several tiles qualify the closest wins.
func (r *SpatialResolver) FindNeighbor(id tilestore.ID, d geom.Direction) (tilestore.ID, bool, error) {
	if err := r.ensureBuilt(); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrResolution, err)
	}

	p, err := r.source.Placement(id)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %v", ErrResolution, id, err)
	}

	var (
		best     tilestore.ID
		bestDist = math.Inf(1)
	)
	r.mu.RLock()
	defer r.mu.RUnlock()

	// For south and west the neighbour's own size is unknown, so the query
	// point uses this tile's size; Adjacent rechecks with the candidate's size.
	want := p.Rect.NeighborOrigin(d)
	center := r.keyOf(want)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, c := range r.buckets[bucketKey{center.X + dx, center.Y + dy}] {
				if c.id == id || !p.Rect.Adjacent(c.rect, d, r.epsilon) {
					continue
				}
				dist := c.rect.Origin.Sub(want).Length()
				if dist < bestDist || (dist == bestDist && c.id < best) {
					best, bestDist = c.id, dist
				}
			}
		}
	}

	if best == "" {
		return "", false, nil
	}
	return best, true, nil
}

func (r *SpatialResolver) ensureBuilt() error {
	r.mu.RLock()
	built := r.built
	r.mu.RUnlock()
	if built {
		return nil
	}
	return r.Refresh()
}

func (r *SpatialResolver) keyOf(p geom.Vec2) bucketKey {
	return bucketKey{
		X: int64(math.Floor(p.X / r.bucket)),
		Y: int64(math.Floor(p.Y / r.bucket)),
	}
}
