package main

import (
	"fmt"
	"strings"

	"github.com/Faultbox/midgard-stitch/internal/config"
	"github.com/Faultbox/midgard-stitch/internal/tilestore"
	"github.com/Faultbox/midgard-stitch/pkg/formats"
)

// assetStore is implemented by stores that remember tile asset paths.
type assetStore interface {
	Asset(id tilestore.ID) (string, bool)
}

// openStore opens the configured tile store. The returned function closes it.
func openStore(cfg *config.Config) (tilestore.Store, func(), error) {
	switch cfg.Store.Kind {
	case config.StoreDir:
		d, err := tilestore.OpenDir(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	case config.StoreBadger:
		b, err := tilestore.OpenBadger(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	case config.StoreMemory:
		return tilestore.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}

// resolveTile accepts a tile ID or an asset path and returns the tile's ID.
func resolveTile(store tilestore.Store, name string) (tilestore.ID, error) {
	ids, err := store.IDs()
	if err != nil {
		return "", err
	}

	asset := strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "./")
	candidates := []tilestore.ID{
		tilestore.ID(name),
		tilestore.IDFromAsset(asset),
		tilestore.IDFromAsset(asset + formats.Extension),
	}
	for _, c := range candidates {
		for _, id := range ids {
			if id == c {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", tilestore.ErrTileNotFound, name)
}

// label returns the asset path for a tile when the store knows it.
func label(store tilestore.Store, id tilestore.ID) string {
	if a, ok := store.(assetStore); ok {
		if asset, ok := a.Asset(id); ok {
			return asset
		}
	}
	return string(id)
}
