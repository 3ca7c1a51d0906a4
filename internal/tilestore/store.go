// Package tilestore holds terrain tiles: their elevation grids and their
// placement in the world. Stores are the only owners of tile data; the
// stitcher reads grids, mutates copies and writes them back.
package tilestore

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/Faultbox/midgard-stitch/pkg/geom"
	"github.com/Faultbox/midgard-stitch/pkg/heightfield"
)

// Store errors.
var (
	ErrTileNotFound = errors.New("tile not found")
	ErrStoreClosed  = errors.New("tile store closed")
)

// ID identifies a tile. It is derived from the tile's backing asset.
type ID string

// tileNamespace scopes asset-derived identifiers.
var tileNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("midgard-stitch:tile"))

// IDFromAsset derives a stable identifier from a backing asset name.
// The same asset always yields the same ID.
func IDFromAsset(asset string) ID {
	return ID(uuid.NewSHA1(tileNamespace, []byte(asset)).String())
}

// Placement is where a tile sits in the world.
type Placement struct {
	Rect     geom.Rect
	Vertical float64 // Vertical world range, used to normalise elevation differences
}

// Store provides tile elevation and placement.
type Store interface {
	// IDs lists every tile in the store.
	IDs() ([]ID, error)
	// Elevation returns a copy of the tile's sample grid.
	Elevation(id ID) (*heightfield.Grid, error)
	// SetElevation replaces the tile's sample grid.
	SetElevation(id ID, g *heightfield.Grid) error
	// Placement returns the tile's world bounds.
	Placement(id ID) (Placement, error)
}

func sortIDs(ids []ID) []ID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
