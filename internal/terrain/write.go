package terrain

import (
	"fmt"

	"github.com/Faultbox/midgard-stitch/internal/tilestore"
)

// WriteDir writes tiles as .hmt files into a directory store.
func WriteDir(d *tilestore.DirStore, tiles []Tile) ([]tilestore.ID, error) {
	ids := make([]tilestore.ID, 0, len(tiles))
	for _, t := range tiles {
		id, err := d.Create(t.Asset, t.Grid, t.Placement)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WriteBadger stores tiles in a badger store under their asset-derived IDs.
func WriteBadger(b *tilestore.BadgerStore, tiles []Tile) ([]tilestore.ID, error) {
	ids := make([]tilestore.ID, 0, len(tiles))
	for _, t := range tiles {
		id, err := b.PutAsset(t.Asset, t.Grid, t.Placement)
		if err != nil {
			return ids, fmt.Errorf("storing %s: %w", t.Asset, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WriteMemory adds tiles to a memory store.
func WriteMemory(m *tilestore.MemoryStore, tiles []Tile) []tilestore.ID {
	ids := make([]tilestore.ID, 0, len(tiles))
	for _, t := range tiles {
		m.Put(tilestore.Tile{ID: t.ID(), Grid: t.Grid, Placement: t.Placement})
		ids = append(ids, t.ID())
	}
	return ids
}
