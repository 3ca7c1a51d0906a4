package geom

import "math"

// Rect is the horizontal footprint of a tile: its south-west origin and its size.
type Rect struct {
	Origin Vec2
	Size   Vec2
}

// Max returns the north-east corner.
func (r Rect) Max() Vec2 {
	return r.Origin.Add(r.Size)
}

// Center returns the middle of the rectangle.
func (r Rect) Center() Vec2 {
	return r.Origin.Add(r.Size.Scale(0.5))
}

// Contains reports whether p lies inside r (edges included).
func (r Rect) Contains(p Vec2) bool {
	m := r.Max()
	return p.X >= r.Origin.X && p.X <= m.X && p.Y >= r.Origin.Y && p.Y <= m.Y
}

// NorthOf reports whether other sits directly north of r: its origin is r's
// origin shifted by r's height, within eps.
func (r Rect) NorthOf(other Rect, eps float64) bool {
	want := Vec2{r.Origin.X, r.Origin.Y + r.Size.Y}
	return other.Origin.Near(want, eps)
}

// EastOf reports whether other sits directly east of r.
func (r Rect) EastOf(other Rect, eps float64) bool {
	want := Vec2{r.Origin.X + r.Size.X, r.Origin.Y}
	return other.Origin.Near(want, eps)
}

// SameWidth reports whether r and other span the same distance along X.
func (r Rect) SameWidth(other Rect, eps float64) bool {
	return math.Abs(r.Size.X-other.Size.X) <= eps
}

// SameHeight reports whether r and other span the same distance along Y.
func (r Rect) SameHeight(other Rect, eps float64) bool {
	return math.Abs(r.Size.Y-other.Size.Y) <= eps
}
