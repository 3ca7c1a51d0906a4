package main

import (
	"errors"
	"testing"

	"github.com/Faultbox/midgard-stitch/internal/config"
	"github.com/Faultbox/midgard-stitch/internal/terrain"
	"github.com/Faultbox/midgard-stitch/internal/tilestore"
)

func TestResolveTile(t *testing.T) {
	tiles, err := terrain.Generate(terrain.Options{
		Seed: 1, Columns: 2, Rows: 1, Resolution: 5, TileSize: 10, Vertical: 10,
	})
	if err != nil {
		t.Fatal(err)
	}

	d, err := tilestore.OpenDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := terrain.WriteDir(d, tiles); err != nil {
		t.Fatal(err)
	}

	want := tiles[1].ID()
	for _, name := range []string{string(want), "tile_001_000.hmt", "./tile_001_000.hmt", "tile_001_000"} {
		got, err := resolveTile(d, name)
		if err != nil {
			t.Errorf("resolveTile(%q): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("resolveTile(%q) = %s, want %s", name, got, want)
		}
	}

	if _, err := resolveTile(d, "nope.hmt"); !errors.Is(err, tilestore.ErrTileNotFound) {
		t.Errorf("expected ErrTileNotFound, got %v", err)
	}

	if got := label(d, want); got != "tile_001_000.hmt" {
		t.Errorf("label = %q", got)
	}
	m := tilestore.NewMemoryStore()
	if got := label(m, want); got != string(want) {
		t.Errorf("memory label = %q", got)
	}
}

func TestOpenStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Kind = config.StoreMemory
	store, closeStore, err := openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()
	if _, ok := store.(*tilestore.MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", store)
	}

	cfg.Store.Kind = config.StoreBadger
	cfg.Store.Path = t.TempDir()
	store, closeBadger, err := openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closeBadger()
	if _, ok := store.(*tilestore.BadgerStore); !ok {
		t.Errorf("expected badger store, got %T", store)
	}

	cfg.Store.Kind = "tape"
	if _, _, err := openStore(cfg); err == nil {
		t.Error("expected error for unknown store kind")
	}
}
