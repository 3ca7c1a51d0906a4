package geom

import (
	"fmt"
	"strings"
)

// Direction is one of the four cardinal edges of a tile.
type Direction uint8

// Cardinal directions.
const (
	North Direction = iota
	South
	West
	East
)

// Directions lists all directions in processing order.
var Directions = [4]Direction{North, South, West, East}

// String returns the lowercase direction name.
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case West:
		return "west"
	case East:
		return "east"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// Opposite returns the reciprocal direction.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case West:
		return East
	default:
		return West
	}
}

// Horizontal reports whether the edge runs west to east (north and south edges).
func (d Direction) Horizontal() bool {
	return d == North || d == South
}

// ParseDirection accepts a full name or its first letter, case-insensitive.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "north":
		return North, nil
	case "s", "south":
		return South, nil
	case "w", "west":
		return West, nil
	case "e", "east":
		return East, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Adjacent reports whether other sits next to r in direction d, within eps.
func (r Rect) Adjacent(other Rect, d Direction, eps float64) bool {
	switch d {
	case North:
		return r.NorthOf(other, eps)
	case South:
		return other.NorthOf(r, eps)
	case East:
		return r.EastOf(other, eps)
	case West:
		return other.EastOf(r, eps)
	}
	return false
}

// NeighborOrigin returns where the origin of a same-sized neighbour in direction d would sit.
func (r Rect) NeighborOrigin(d Direction) Vec2 {
	switch d {
	case North:
		return Vec2{r.Origin.X, r.Origin.Y + r.Size.Y}
	case South:
		return Vec2{r.Origin.X, r.Origin.Y - r.Size.Y}
	case East:
		return Vec2{r.Origin.X + r.Size.X, r.Origin.Y}
	default:
		return Vec2{r.Origin.X - r.Size.X, r.Origin.Y}
	}
}
