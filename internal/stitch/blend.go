package stitch

import (
	"fmt"
	"math"

	"github.com/Faultbox/midgard-stitch/pkg/geom"
	"github.com/Faultbox/midgard-stitch/pkg/heightfield"
)

// Surface is a tile grid together with the vertical range used to normalise
// elevation differences.
type Surface struct {
	Grid     *heightfield.Grid
	Vertical float64
	// Locked lists edges already reconciled with their neighbours. Samples
	// lying on them are never changed.
	Locked Mask
}

// Params controls how an edge is blended.
type Params struct {
	SeamWidth int     // Interior rows/columns the correction tapers over
	Tolerance float64 // Largest normalised difference left untouched, 0..1
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.SeamWidth < 0 {
		return fmt.Errorf("%w: seam width %d is negative", ErrInvalidParams, p.SeamWidth)
	}
	if math.IsNaN(p.Tolerance) || p.Tolerance < 0 || p.Tolerance > 1 {
		return fmt.Errorf("%w: tolerance %v outside [0, 1]", ErrInvalidParams, p.Tolerance)
	}
	return nil
}

// EdgeStats summarises one measured or blended edge.
type EdgeStats struct {
	SamplesA int     // Boundary samples on the first tile
	SamplesB int     // Boundary samples on the neighbour
	Common   int     // Samples compared after resampling
	Exceeded int     // Compared positions over tolerance
	Locked   int     // Positions over tolerance left alone because both sides are locked
	MaxDiff  float64 // Largest normalised difference before blending
}

// Resampled reports whether the two boundaries had different sample counts.
func (s EdgeStats) Resampled() bool {
	return s.SamplesA != s.SamplesB
}

// edge addresses one boundary of a grid. Index i runs west to east along
// north/south edges and south to north along west/east edges; depth counts
// rows or columns inward from the boundary.
type edge struct {
	g      *heightfield.Grid
	d      geom.Direction
	locked Mask // never includes d
}

func newEdge(s Surface, d geom.Direction) edge {
	return edge{g: s.Grid, d: d, locked: s.Locked &^ MaskOf(d)}
}

// pinned reports whether (x, y) lies on a locked edge.
func (e edge) pinned(x, y int) bool {
	if e.locked == 0 {
		return false
	}
	return (e.locked.Has(geom.North) && y == e.g.Height-1) ||
		(e.locked.Has(geom.South) && y == 0) ||
		(e.locked.Has(geom.West) && x == 0) ||
		(e.locked.Has(geom.East) && x == e.g.Width-1)
}

// pinnedAt reports whether boundary sample i lies on a locked edge.
func (e edge) pinnedAt(i int) bool {
	return e.pinned(e.coords(i, 0))
}

func (e edge) length() int {
	if e.d.Horizontal() {
		return e.g.Width
	}
	return e.g.Height
}

func (e edge) depth() int {
	if e.d.Horizontal() {
		return e.g.Height
	}
	return e.g.Width
}

func (e edge) coords(i, depth int) (x, y int) {
	switch e.d {
	case geom.North:
		return i, e.g.Height - 1 - depth
	case geom.South:
		return i, depth
	case geom.East:
		return e.g.Width - 1 - depth, i
	default:
		return depth, i
	}
}

func (e edge) line() []float32 {
	if e.d.Horizontal() {
		y := 0
		if e.d == geom.North {
			y = e.g.Height - 1
		}
		return e.g.Row(y)
	}
	x := 0
	if e.d == geom.East {
		x = e.g.Width - 1
	}
	return e.g.Column(x)
}

// comparison is the shared boundary of two surfaces at the common resolution.
type comparison struct {
	a, b         edge
	lineA, lineB []float32
	resA, resB   []float32
	exceeded     []bool
	vertical     float64
	tolerance    float64
	stats        EdgeStats
}

// over reports whether two samples differ by more than the tolerance.
func (c *comparison) over(x, y float32) bool {
	return math.Abs(float64(x)-float64(y))/c.vertical > c.tolerance
}

func compare(a, b Surface, d geom.Direction, tolerance float64) (*comparison, error) {
	c := &comparison{
		a:         newEdge(a, d),
		b:         newEdge(b, d.Opposite()),
		tolerance: tolerance,
	}
	na, nb := c.a.length(), c.b.length()
	c.stats.SamplesA, c.stats.SamplesB = na, nb
	if na < 2 || nb < 2 {
		return nil, fmt.Errorf("%w: %d vs %d boundary samples", ErrResolutionMismatch, na, nb)
	}

	m := max(na, nb)
	c.stats.Common = m
	c.lineA, c.lineB = c.a.line(), c.b.line()
	c.resA = heightfield.Resample(c.lineA, m)
	c.resB = heightfield.Resample(c.lineB, m)

	vertical := math.Max(a.Vertical, b.Vertical)
	if vertical <= 0 {
		vertical = 1
	}
	c.vertical = vertical

	c.exceeded = make([]bool, m)
	for i := 0; i < m; i++ {
		diff := math.Abs(float64(c.resA[i])-float64(c.resB[i])) / vertical
		if diff > c.stats.MaxDiff {
			c.stats.MaxDiff = diff
		}
		if diff > tolerance {
			c.exceeded[i] = true
			c.stats.Exceeded++
		}
	}
	return c, nil
}

// MeasureEdge compares the boundary of a in direction d with the reciprocal
// boundary of b without modifying either grid.
func MeasureEdge(a, b Surface, d geom.Direction, tolerance float64) (EdgeStats, error) {
	c, err := compare(a, b, d, tolerance)
	if err != nil {
		return EdgeStats{}, err
	}
	return c.stats, nil
}

// BlendEdge reconciles the boundary of a in direction d with the reciprocal
// boundary of b, mutating both grids.
//
// Positions whose normalised difference exceeds the tolerance are set to the
// mean of both sides. The correction is then carried SeamWidth rows inward on
// each tile, decaying linearly to zero. Boundaries with different sample
// counts are compared at the larger count; the finer boundary then follows
// the coarser one so both agree at that resolution.
//
// Samples on a surface's Locked edges keep their values. Where only one side
// of a position is locked the other side takes its value; where both are, the
// position is counted in EdgeStats.Locked and left alone.
func BlendEdge(a, b Surface, d geom.Direction, p Params) (EdgeStats, error) {
	if err := p.Validate(); err != nil {
		return EdgeStats{}, err
	}
	c, err := compare(a, b, d, p.Tolerance)
	if err != nil {
		return EdgeStats{}, err
	}
	if c.stats.Exceeded == 0 {
		return c.stats, nil
	}

	newA := append([]float32(nil), c.lineA...)
	newB := append([]float32(nil), c.lineB...)

	na, nb := len(c.lineA), len(c.lineB)
	switch {
	case na == nb:
		for i, over := range c.exceeded {
			if !over {
				continue
			}
			pa, pb := c.a.pinnedAt(i), c.b.pinnedAt(i)
			switch {
			case pa && pb:
				c.stats.Locked++
			case pa:
				newB[i] = c.lineA[i]
			case pb:
				newA[i] = c.lineB[i]
			default:
				mean := (c.lineA[i] + c.lineB[i]) / 2
				newA[i], newB[i] = mean, mean
			}
		}
	case na < nb:
		c.settleCoarse(c.a, c.b, c.lineA, c.lineB, newA)
		c.followCoarse(c.b, newA, c.lineB, newB)
	default:
		c.settleCoarse(c.b, c.a, c.lineB, c.lineA, newB)
		c.followCoarse(c.a, newB, c.lineA, newA)
	}

	applyEdge(c.a, c.lineA, newA, p.SeamWidth)
	applyEdge(c.b, c.lineB, newB, p.SeamWidth)
	return c.stats, nil
}

// settleCoarse moves each native sample of the coarser boundary that differs
// from the finer boundary at its own position by more than the tolerance.
// Both lines share their end points, so a locked fine end is copied.
func (c *comparison) settleCoarse(coarse, fine edge, native, other, out []float32) {
	n, m := len(native), len(other)
	for j := 0; j < n; j++ {
		if coarse.pinnedAt(j) {
			continue
		}
		theirs := heightfield.SampleLine(other, heightfield.Position(j, n))
		if !c.over(native[j], theirs) {
			continue
		}
		switch {
		case j == 0 && fine.pinnedAt(0):
			out[j] = other[0]
		case j == n-1 && fine.pinnedAt(m-1):
			out[j] = other[m-1]
		default:
			out[j] = (native[j] + theirs) / 2
		}
	}
}

// followCoarse sets samples of the finer boundary to the settled coarse
// boundary resampled at their position, wherever the pair was over tolerance
// or the settled coarse boundary now is.
func (c *comparison) followCoarse(fine edge, coarse, native, out []float32) {
	m := len(native)
	for i := 0; i < m; i++ {
		target := heightfield.SampleLine(coarse, heightfield.Position(i, m))
		if !c.exceeded[i] && !c.over(native[i], target) {
			continue
		}
		if fine.pinnedAt(i) {
			if target != native[i] {
				c.stats.Locked++
			}
			continue
		}
		out[i] = target
	}
}

// applyEdge writes the new boundary and tapers each change inward over
// seamWidth rows: at depth d the applied fraction is 1 - d/(seamWidth+1).
// Samples on locked edges are skipped.
func applyEdge(e edge, old, updated []float32, seamWidth int) {
	k := min(seamWidth, e.depth()-1)
	for i := range updated {
		delta := updated[i] - old[i]
		if delta == 0 {
			continue
		}
		x, y := e.coords(i, 0)
		if e.pinned(x, y) {
			continue
		}
		e.g.Set(x, y, updated[i])

		for depth := 1; depth <= k; depth++ {
			x, y := e.coords(i, depth)
			if e.pinned(x, y) {
				continue
			}
			w := 1 - float32(depth)/float32(k+1)
			e.g.Add(x, y, delta*w)
		}
	}
}
