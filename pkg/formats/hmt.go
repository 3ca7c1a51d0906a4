// Package formats provides the on-disk codec for heightmap tiles.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Faultbox/midgard-stitch/pkg/geom"
	"github.com/Faultbox/midgard-stitch/pkg/heightfield"
)

// HMT format errors.
var (
	ErrInvalidHMTMagic       = errors.New("invalid HMT magic: expected 'HMTL'")
	ErrUnsupportedHMTVersion = errors.New("unsupported HMT version")
	ErrTruncatedHMTData      = errors.New("truncated HMT data")
	ErrInvalidHMTDimensions  = errors.New("invalid HMT dimensions")
)

const (
	hmtMagic      = "HMTL"
	hmtHeaderSize = 4 + 2 + 4 + 4 + 5*8

	// MaxHMTDimension bounds width and height of a single tile.
	MaxHMTDimension = 8192

	// Extension is the file extension used for tile files.
	Extension = ".hmt"
)

// HMTVersion represents the HMT file version.
type HMTVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v HMTVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CurrentHMTVersion is written by EncodeHMT.
var CurrentHMTVersion = HMTVersion{Major: 1, Minor: 0}

// HMT is a heightmap tile: a sample grid plus its world placement.
type HMT struct {
	Version  HMTVersion
	Width    uint32
	Height   uint32
	Origin   geom.Vec2 // South-west corner in world units
	Size     geom.Vec2 // Horizontal extent in world units
	Vertical float64   // Vertical world range used to normalise differences
	Samples  []float32 // Row-major, row 0 = south
}

// Bounds returns the horizontal footprint of the tile.
func (h *HMT) Bounds() geom.Rect {
	return geom.Rect{Origin: h.Origin, Size: h.Size}
}

// Grid returns the samples as a heightfield grid sharing the same backing slice.
func (h *HMT) Grid() (*heightfield.Grid, error) {
	return heightfield.FromSamples(int(h.Width), int(h.Height), h.Samples)
}

// NewHMT builds a tile from a grid and its placement.
func NewHMT(g *heightfield.Grid, bounds geom.Rect, vertical float64) *HMT {
	return &HMT{
		Version:  CurrentHMTVersion,
		Width:    uint32(g.Width),
		Height:   uint32(g.Height),
		Origin:   bounds.Origin,
		Size:     bounds.Size,
		Vertical: vertical,
		Samples:  g.Samples,
	}
}

// ParseHMT parses an HMT file from raw bytes.
func ParseHMT(data []byte) (*HMT, error) {
	if len(data) < hmtHeaderSize {
		return nil, ErrTruncatedHMTData
	}

	if string(data[0:4]) != hmtMagic {
		return nil, ErrInvalidHMTMagic
	}

	version := HMTVersion{
		Major: data[4],
		Minor: data[5],
	}
	if version.Major != 1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHMTVersion, version)
	}

	r := bytes.NewReader(data[6:])

	var width, height uint32
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return nil, fmt.Errorf("%w: reading width", ErrTruncatedHMTData)
	}
	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, fmt.Errorf("%w: reading height", ErrTruncatedHMTData)
	}
	if width == 0 || height == 0 || width > MaxHMTDimension || height > MaxHMTDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidHMTDimensions, width, height)
	}

	var placement [5]float64
	if err := binary.Read(r, binary.LittleEndian, &placement); err != nil {
		return nil, fmt.Errorf("%w: reading placement", ErrTruncatedHMTData)
	}

	h := &HMT{
		Version:  version,
		Width:    width,
		Height:   height,
		Origin:   geom.Vec2{X: placement[0], Y: placement[1]},
		Size:     geom.Vec2{X: placement[2], Y: placement[3]},
		Vertical: placement[4],
		Samples:  make([]float32, int(width)*int(height)),
	}

	if err := binary.Read(r, binary.LittleEndian, h.Samples); err != nil {
		return nil, fmt.Errorf("%w: reading %d samples", ErrTruncatedHMTData, len(h.Samples))
	}

	return h, nil
}

// EncodeHMT serialises a tile.
func EncodeHMT(h *HMT) ([]byte, error) {
	if h.Width == 0 || h.Height == 0 || h.Width > MaxHMTDimension || h.Height > MaxHMTDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidHMTDimensions, h.Width, h.Height)
	}
	if len(h.Samples) != int(h.Width)*int(h.Height) {
		return nil, fmt.Errorf("%w: %d samples for %dx%d", ErrInvalidHMTDimensions, len(h.Samples), h.Width, h.Height)
	}

	buf := bytes.NewBuffer(make([]byte, 0, hmtHeaderSize+4*len(h.Samples)))
	buf.WriteString(hmtMagic)
	buf.WriteByte(CurrentHMTVersion.Major)
	buf.WriteByte(CurrentHMTVersion.Minor)

	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, h.Width)
	_ = binary.Write(buf, binary.LittleEndian, h.Height)
	_ = binary.Write(buf, binary.LittleEndian, [5]float64{
		h.Origin.X, h.Origin.Y, h.Size.X, h.Size.Y, h.Vertical,
	})
	_ = binary.Write(buf, binary.LittleEndian, h.Samples)

	return buf.Bytes(), nil
}

// ParseHMTFile parses an HMT file from disk.
func ParseHMTFile(path string) (*HMT, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading HMT file: %w", err)
	}
	return ParseHMT(data)
}

// WriteHMTFile encodes h and writes it to path, creating parent directories.
// The file is written to a temporary sibling first and renamed into place.
func WriteHMTFile(path string, h *HMT) error {
	data, err := EncodeHMT(h)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
