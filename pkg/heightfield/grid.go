// Package heightfield provides a row-major elevation sample grid and the
// resampling helpers used when two grids of different resolution meet.
package heightfield

import (
	"errors"
	"fmt"
)

// Grid errors.
var (
	ErrInvalidDimensions = errors.New("invalid grid dimensions")
	ErrSampleCount       = errors.New("sample count does not match dimensions")
)

// Grid is a row-major 2D grid of elevation samples.
// Row 0 is the southern edge, column 0 the western edge.
type Grid struct {
	Width   int
	Height  int
	Samples []float32
}

// New creates a zeroed grid of the given size.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return &Grid{
		Width:   width,
		Height:  height,
		Samples: make([]float32, width*height),
	}, nil
}

// FromSamples wraps existing samples. The slice is not copied.
func FromSamples(width, height int, samples []float32) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrSampleCount, len(samples), width*height)
	}
	return &Grid{Width: width, Height: height, Samples: samples}, nil
}

// Fill creates a grid with every sample set to v.
func Fill(width, height int, v float32) (*Grid, error) {
	g, err := New(width, height)
	if err != nil {
		return nil, err
	}
	for i := range g.Samples {
		g.Samples[i] = v
	}
	return g, nil
}

// InBounds reports whether (x, y) addresses a sample.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// At returns the sample at (x, y). It panics when out of bounds.
func (g *Grid) At(x, y int) float32 {
	return g.Samples[y*g.Width+x]
}

// Set writes the sample at (x, y).
func (g *Grid) Set(x, y int, v float32) {
	g.Samples[y*g.Width+x] = v
}

// Add adds delta to the sample at (x, y).
func (g *Grid) Add(x, y int, delta float32) {
	g.Samples[y*g.Width+x] += delta
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{Width: g.Width, Height: g.Height, Samples: make([]float32, len(g.Samples))}
	copy(out.Samples, g.Samples)
	return out
}

// Row returns a copy of row y, west to east.
func (g *Grid) Row(y int) []float32 {
	out := make([]float32, g.Width)
	copy(out, g.Samples[y*g.Width:(y+1)*g.Width])
	return out
}

// Column returns a copy of column x, south to north.
func (g *Grid) Column(x int) []float32 {
	out := make([]float32, g.Height)
	for y := 0; y < g.Height; y++ {
		out[y] = g.Samples[y*g.Width+x]
	}
	return out
}

// Range returns the minimum and maximum sample.
func (g *Grid) Range() (min, max float32) {
	if len(g.Samples) == 0 {
		return 0, 0
	}
	min, max = g.Samples[0], g.Samples[0]
	for _, v := range g.Samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Equal reports whether both grids have the same size and samples.
func (g *Grid) Equal(other *Grid) bool {
	if g.Width != other.Width || g.Height != other.Height {
		return false
	}
	for i, v := range g.Samples {
		if other.Samples[i] != v {
			return false
		}
	}
	return true
}
