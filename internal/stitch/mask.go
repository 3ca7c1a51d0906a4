package stitch

import (
	"fmt"
	"strings"

	"github.com/Faultbox/midgard-stitch/pkg/geom"
)

// Mask is a set of directions to stitch.
type Mask uint8

// Direction masks.
const (
	MaskNorth Mask = 1 << geom.North
	MaskSouth Mask = 1 << geom.South
	MaskWest  Mask = 1 << geom.West
	MaskEast  Mask = 1 << geom.East

	MaskAll = MaskNorth | MaskSouth | MaskWest | MaskEast
)

// MaskOf builds a mask from directions.
func MaskOf(dirs ...geom.Direction) Mask {
	var m Mask
	for _, d := range dirs {
		m |= 1 << d
	}
	return m
}

// Has reports whether d is in the mask.
func (m Mask) Has(d geom.Direction) bool {
	return m&(1<<d) != 0
}

// Directions returns the masked directions in processing order (N, S, W, E).
func (m Mask) Directions() []geom.Direction {
	var out []geom.Direction
	for _, d := range geom.Directions {
		if m.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// String returns the mask as initials in processing order, e.g. "NSWE".
func (m Mask) String() string {
	if m == 0 {
		return "none"
	}
	var b strings.Builder
	for _, d := range m.Directions() {
		b.WriteString(strings.ToUpper(d.String()[:1]))
	}
	return b.String()
}

// ParseMask accepts "all", a run of initials ("NSWE", "ne") or a comma
// separated list of names ("north,east").
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return MaskAll, nil
	}

	var parts []string
	switch {
	case strings.ContainsAny(s, ", "):
		parts = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	case len(s) > 1 && isDirectionName(s):
		parts = []string{s}
	default:
		for _, r := range s {
			parts = append(parts, string(r))
		}
	}

	var m Mask
	for _, p := range parts {
		d, err := geom.ParseDirection(p)
		if err != nil {
			return 0, fmt.Errorf("parsing direction mask %q: %w", s, err)
		}
		m |= MaskOf(d)
	}
	return m, nil
}

func isDirectionName(s string) bool {
	_, err := geom.ParseDirection(s)
	return err == nil
}
