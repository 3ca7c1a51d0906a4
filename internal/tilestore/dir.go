package tilestore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Faultbox/midgard-stitch/pkg/formats"
	"github.com/Faultbox/midgard-stitch/pkg/heightfield"
)

// DirStore serves tiles from a directory tree of .hmt files.
// Each tile's ID is derived from its path relative to the root.
type DirStore struct {
	root string

	mu      sync.RWMutex
	entries map[ID]*dirEntry
}

type dirEntry struct {
	asset     string // slash-separated path relative to root
	placement Placement
	width     int
	height    int
}

// OpenDir indexes every .hmt file under root.
func OpenDir(root string) (*DirStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening tile directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening tile directory: %s is not a directory", root)
	}

	d := &DirStore{
		root:    root,
		entries: make(map[ID]*dirEntry),
	}
	if err := d.Rescan(); err != nil {
		return nil, err
	}
	return d, nil
}

// Root returns the directory the store serves.
func (d *DirStore) Root() string {
	return d.root
}

// Rescan rebuilds the index from disk.
func (d *DirStore) Rescan() error {
	entries := make(map[ID]*dirEntry)

	err := filepath.WalkDir(d.root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() || !strings.EqualFold(filepath.Ext(path), formats.Extension) {
			return nil
		}

		h, err := formats.ParseHMTFile(path)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}

		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		asset := normalizeAsset(rel)
		entries[IDFromAsset(asset)] = &dirEntry{
			asset:     asset,
			placement: Placement{Rect: h.Bounds(), Vertical: h.Vertical},
			width:     int(h.Width),
			height:    int(h.Height),
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()
	return nil
}

// Asset returns the relative path backing a tile.
func (d *DirStore) Asset(id ID) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[id]
	if !ok {
		return "", false
	}
	return e.asset, true
}

// Create writes a new tile file at the given relative path and indexes it.
func (d *DirStore) Create(asset string, g *heightfield.Grid, p Placement) (ID, error) {
	asset = normalizeAsset(asset)
	if !strings.HasSuffix(asset, formats.Extension) {
		asset += formats.Extension
	}

	h := formats.NewHMT(g, p.Rect, p.Vertical)
	if err := formats.WriteHMTFile(d.path(asset), h); err != nil {
		return "", fmt.Errorf("writing tile %s: %w", asset, err)
	}

	id := IDFromAsset(asset)
	d.mu.Lock()
	d.entries[id] = &dirEntry{asset: asset, placement: p, width: g.Width, height: g.Height}
	d.mu.Unlock()
	return id, nil
}

// IDs lists tiles in ascending ID order.
func (d *DirStore) IDs() ([]ID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]ID, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}
	return sortIDs(ids), nil
}

// Elevation reads the tile's grid from disk.
func (d *DirStore) Elevation(id ID) (*heightfield.Grid, error) {
	e, err := d.entry(id)
	if err != nil {
		return nil, err
	}

	h, err := formats.ParseHMTFile(d.path(e.asset))
	if err != nil {
		return nil, fmt.Errorf("loading tile %s: %w", e.asset, err)
	}
	return h.Grid()
}

// SetElevation rewrites the tile file with new samples. Placement is kept.
func (d *DirStore) SetElevation(id ID, g *heightfield.Grid) error {
	e, err := d.entry(id)
	if err != nil {
		return err
	}

	h := formats.NewHMT(g, e.placement.Rect, e.placement.Vertical)
	if err := formats.WriteHMTFile(d.path(e.asset), h); err != nil {
		return fmt.Errorf("saving tile %s: %w", e.asset, err)
	}

	d.mu.Lock()
	e.width, e.height = g.Width, g.Height
	d.mu.Unlock()
	return nil
}

// Placement returns the indexed world bounds of a tile.
func (d *DirStore) Placement(id ID) (Placement, error) {
	e, err := d.entry(id)
	if err != nil {
		return Placement{}, err
	}
	return e.placement, nil
}

// Resolution returns the indexed grid size of a tile.
func (d *DirStore) Resolution(id ID) (width, height int, err error) {
	e, err := d.entry(id)
	if err != nil {
		return 0, 0, err
	}
	return e.width, e.height, nil
}

func (d *DirStore) entry(id ID) (*dirEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, id)
	}
	return e, nil
}

func (d *DirStore) path(asset string) string {
	return filepath.Join(d.root, filepath.FromSlash(asset))
}

func normalizeAsset(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "./")
}
