// Package terrain generates demo tile sets. Each tile samples one shared
// Perlin field, then gets its own vertical offset, so neighbouring tiles
// disagree along their seams the way independently authored tiles do.
package terrain

import (
	"errors"
	"fmt"

	"github.com/aquilax/go-perlin"

	"github.com/Faultbox/midgard-stitch/internal/tilestore"
	"github.com/Faultbox/midgard-stitch/pkg/formats"
	"github.com/Faultbox/midgard-stitch/pkg/geom"
	"github.com/Faultbox/midgard-stitch/pkg/heightfield"
)

// ErrInvalidOptions is returned for generator options that cannot produce tiles.
var ErrInvalidOptions = errors.New("invalid generator options")

// Noise shape.
const (
	alpha   = 2.0 // Smoothing
	beta    = 2.0 // Frequency
	octaves = int32(3)

	// Noise periods per tile side.
	frequency = 1.5
)

// Options controls tile set generation.
type Options struct {
	Seed       int64
	Columns    int
	Rows       int
	Resolution int     // Samples per tile side
	TileSize   float64 // World units per tile side
	Vertical   float64 // Vertical world range
	Roughness  float64 // Per-tile offset amplitude as a fraction of Vertical

	// MixedResolution halves the resolution of every other tile so some
	// seams join edges with different sample counts.
	MixedResolution bool
}

// Tile is one generated tile.
type Tile struct {
	Asset     string // Relative asset path, e.g. "tile_001_002.hmt"
	Column    int
	Row       int
	Grid      *heightfield.Grid
	Placement tilestore.Placement
}

// ID returns the identifier stores derive from the tile's asset.
func (t Tile) ID() tilestore.ID {
	return tilestore.IDFromAsset(t.Asset)
}

// AssetName returns the asset path used for the tile at column c, row r.
func AssetName(c, r int) string {
	return fmt.Sprintf("tile_%03d_%03d%s", c, r, formats.Extension)
}

func (o Options) validate() error {
	if o.Columns <= 0 || o.Rows <= 0 {
		return fmt.Errorf("%w: %dx%d tiles", ErrInvalidOptions, o.Columns, o.Rows)
	}
	if o.Resolution < 3 {
		return fmt.Errorf("%w: resolution %d", ErrInvalidOptions, o.Resolution)
	}
	if o.TileSize <= 0 || o.Vertical <= 0 {
		return fmt.Errorf("%w: tile size %v, vertical %v", ErrInvalidOptions, o.TileSize, o.Vertical)
	}
	if o.Roughness < 0 || o.Roughness > 1 {
		return fmt.Errorf("%w: roughness %v outside [0, 1]", ErrInvalidOptions, o.Roughness)
	}
	return nil
}

// Generate builds a Columns x Rows grid of tiles with the lower-left tile at
// the world origin. Output order is row by row from the south.
func Generate(opts Options) ([]Tile, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	field := perlin.NewPerlin(alpha, beta, octaves, opts.Seed)
	offsets := perlin.NewPerlin(alpha, beta, 1, opts.Seed+1)

	tiles := make([]Tile, 0, opts.Columns*opts.Rows)
	for r := 0; r < opts.Rows; r++ {
		for c := 0; c < opts.Columns; c++ {
			res := opts.Resolution
			if opts.MixedResolution && (c+r)%2 == 1 {
				res = (res-1)/2 + 1
			}

			rect := geom.Rect{
				Origin: geom.Vec2{X: float64(c) * opts.TileSize, Y: float64(r) * opts.TileSize},
				Size:   geom.Vec2{X: opts.TileSize, Y: opts.TileSize},
			}

			// Checkerboard parity guarantees neighbours differ; the noise term
			// is sampled off the lattice, where Perlin noise is not zero.
			parity := 0.5
			if (c+r)%2 == 1 {
				parity = -0.5
			}
			offset := (parity + offsets.Noise2D(float64(c)+0.37, float64(r)+0.61)) * opts.Roughness * opts.Vertical

			g, err := sampleTile(field, rect, res, opts, offset)
			if err != nil {
				return nil, err
			}

			tiles = append(tiles, Tile{
				Asset:     AssetName(c, r),
				Column:    c,
				Row:       r,
				Grid:      g,
				Placement: tilestore.Placement{Rect: rect, Vertical: opts.Vertical},
			})
		}
	}
	return tiles, nil
}

func sampleTile(field *perlin.Perlin, rect geom.Rect, res int, opts Options, offset float64) (*heightfield.Grid, error) {
	g, err := heightfield.New(res, res)
	if err != nil {
		return nil, err
	}

	for y := 0; y < res; y++ {
		wy := rect.Origin.Y + heightfield.Position(y, res)*rect.Size.Y
		for x := 0; x < res; x++ {
			wx := rect.Origin.X + heightfield.Position(x, res)*rect.Size.X

			// Noise is roughly [-1, 1]; map to [0, 1] of the vertical range.
			n := field.Noise2D(wx/opts.TileSize*frequency, wy/opts.TileSize*frequency)
			h := (n+1)/2*opts.Vertical + offset
			g.Set(x, y, float32(clampf(h, 0, opts.Vertical)))
		}
	}
	return g, nil
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
