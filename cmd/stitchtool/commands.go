package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-stitch/internal/config"
	"github.com/Faultbox/midgard-stitch/internal/logger"
	"github.com/Faultbox/midgard-stitch/internal/neighbor"
	"github.com/Faultbox/midgard-stitch/internal/stitch"
	"github.com/Faultbox/midgard-stitch/internal/terrain"
	"github.com/Faultbox/midgard-stitch/internal/tilestore"
)

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	cfg := setup(fs, args)
	if fs.NArg() > 0 {
		cfg.Store.Path = fs.Arg(0)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer closeStore()

	ids, err := store.IDs()
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("Store: %s (%s)\n", cfg.Store.Path, cfg.Store.Kind)
	fmt.Printf("Tiles: %d\n", len(ids))
	fmt.Println()

	for _, id := range ids {
		p, err := store.Placement(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", id, err)
			continue
		}
		g, err := store.Elevation(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", id, err)
			continue
		}
		lo, hi := g.Range()
		fmt.Printf("  %-24s %4dx%-4d origin (%.2f, %.2f) size %.2fx%.2f altitude %.2f..%.2f\n",
			label(store, id), g.Width, g.Height,
			p.Rect.Origin.X, p.Rect.Origin.Y, p.Rect.Size.X, p.Rect.Size.Y, lo, hi)
	}
}

// newStitcher wires a stitcher over store with residency-scoped lookups.
func newStitcher(cfg *config.Config, store tilestore.Store) (*stitch.Stitcher, *tilestore.Residency) {
	resident := tilestore.NewResidency(store)
	resolver := neighbor.NewSpatialResolver(store, cfg.Stitch.AdjacencyEpsilon)
	s := stitch.New(resident, resolver,
		stitch.WithLogger(logger.Log),
		stitch.WithEpsilon(cfg.Stitch.AdjacencyEpsilon))
	return s, resident
}

func cmdInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	tile := fs.String("tile", "", "Only inspect this tile (ID or asset path)")
	cfg := setup(fs, args)
	if fs.NArg() > 0 {
		cfg.Store.Path = fs.Arg(0)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer closeStore()

	mask, err := cfg.Mask()
	if err != nil {
		fatal("%v", err)
	}

	ids, err := selectTiles(store, *tile)
	if err != nil {
		fatal("%v", err)
	}

	s, _ := newStitcher(cfg, store)
	pending := 0
	for _, id := range ids {
		seams, err := s.Inspect(id, mask, cfg.Stitch.Tolerance)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", label(store, id), err)
			continue
		}

		fmt.Println(label(store, id))
		for _, seam := range seams {
			switch {
			case seam.Err != nil:
				fmt.Printf("  %-5s error: %v\n", seam.Direction, seam.Err)
			case !seam.HasNeighbor:
				fmt.Printf("  %-5s no neighbor\n", seam.Direction)
			default:
				fmt.Printf("  %-5s %-24s samples %d/%d  over tolerance %d  max diff %.4f\n",
					seam.Direction, label(store, seam.Neighbor),
					seam.Stats.SamplesA, seam.Stats.SamplesB, seam.Stats.Exceeded, seam.Stats.MaxDiff)
				if seam.Stats.Exceeded > 0 {
					pending++
				}
			}
		}
	}

	fmt.Fprintf(os.Stderr, "\n(%d seams over tolerance)\n", pending)
}

func cmdStitch(args []string) {
	fs := flag.NewFlagSet("stitch", flag.ExitOnError)
	tile := fs.String("tile", "", "Only stitch this tile (ID or asset path)")
	cfg := setup(fs, args)
	if fs.NArg() > 0 {
		cfg.Store.Path = fs.Arg(0)
	}
	defer logger.Sync()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer closeStore()

	mask, err := cfg.Mask()
	if err != nil {
		fatal("%v", err)
	}

	s, resident := newStitcher(cfg, store)
	session := stitch.NewSession()

	var batch stitch.BatchReport
	if *tile != "" {
		id, err := resolveTile(store, *tile)
		if err != nil {
			fatal("%v", err)
		}
		report, err := s.StitchTile(session, id, mask, cfg.Params())
		if err != nil {
			fatal("%v", err)
		}
		batch.Tiles = append(batch.Tiles, report)
	} else {
		ids, err := store.IDs()
		if err != nil {
			fatal("%v", err)
		}
		confirmed := cfg.Stitch.Confirmed || confirm(fmt.Sprintf("Stitch %s seams of all %d tiles in %s?", mask, len(ids), cfg.Store.Path))

		batch, err = s.StitchAll(session, mask, cfg.Params(), confirmed)
		if errors.Is(err, stitch.ErrNotConfirmed) {
			fmt.Fprintln(os.Stderr, "Aborted")
			return
		}
		if err != nil {
			fatal("%v", err)
		}
	}

	printBatch(store, batch)

	hits, misses := resident.Stats()
	logger.Debug("residency", zap.Int("hits", hits), zap.Int("misses", misses))

	if len(batch.Failures) > 0 {
		logger.Sync()
		os.Exit(1)
	}
}

func printBatch(store tilestore.Store, batch stitch.BatchReport) {
	for _, t := range batch.Tiles {
		fmt.Println(label(store, t.Tile))
		printEdges(store, t.Edges)
	}
	for _, f := range batch.Failures {
		fmt.Fprintf(os.Stderr, "Failed: %s: %v\n", label(store, f.Tile), f.Err)
		printEdges(store, f.Report.Edges)
	}

	fmt.Fprintf(os.Stderr, "\n(%d tiles, %d edges blended, %d samples adjusted, %d failed)\n",
		len(batch.Tiles), batch.Count(stitch.StatusBlended), batch.Adjusted(), len(batch.Failures))
}

func printEdges(store tilestore.Store, edges []stitch.EdgeResult) {
	for _, e := range edges {
		line := fmt.Sprintf("  %-5s %-12s", e.Direction, e.Status)
		if e.Neighbor != "" {
			line += " " + label(store, e.Neighbor)
		}
		if e.Status == stitch.StatusBlended {
			line += fmt.Sprintf("  adjusted %d", e.Stats.Exceeded)
			if e.Stats.Resampled() {
				line += fmt.Sprintf(" (resampled %d/%d -> %d)", e.Stats.SamplesA, e.Stats.SamplesB, e.Stats.Common)
			}
			if e.Stats.Locked > 0 {
				line += fmt.Sprintf(", %d locked", e.Stats.Locked)
			}
		}
		if e.Err != nil {
			line += fmt.Sprintf("  %v", e.Err)
		}
		fmt.Println(line)
	}
}

// confirm asks a yes/no question on stdin. Anything but y/yes declines.
func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func selectTiles(store tilestore.Store, name string) ([]tilestore.ID, error) {
	if name == "" {
		return store.IDs()
	}
	id, err := resolveTile(store, name)
	if err != nil {
		return nil, err
	}
	return []tilestore.ID{id}, nil
}

func cmdGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	seed := fs.Int64("seed", 0, "Noise seed (0 = config)")
	columns := fs.Int("columns", 0, "Tiles along X (0 = config)")
	rows := fs.Int("rows", 0, "Tiles along Y (0 = config)")
	resolution := fs.Int("resolution", 0, "Samples per tile side (0 = config)")
	mixed := fs.Bool("mixed", false, "Halve the resolution of every other tile")
	cfg := setup(fs, args)
	if fs.NArg() > 0 {
		cfg.Store.Path = fs.Arg(0)
	}

	opts := terrain.Options{
		Seed:            cfg.Generate.Seed,
		Columns:         cfg.Generate.Columns,
		Rows:            cfg.Generate.Rows,
		Resolution:      cfg.Generate.Resolution,
		TileSize:        cfg.Generate.TileSize,
		Vertical:        cfg.Generate.Vertical,
		Roughness:       cfg.Generate.Roughness,
		MixedResolution: *mixed,
	}
	if *seed != 0 {
		opts.Seed = *seed
	}
	if *columns > 0 {
		opts.Columns = *columns
	}
	if *rows > 0 {
		opts.Rows = *rows
	}
	if *resolution > 0 {
		opts.Resolution = *resolution
	}

	tiles, err := terrain.Generate(opts)
	if err != nil {
		fatal("%v", err)
	}

	var ids []tilestore.ID
	switch cfg.Store.Kind {
	case config.StoreDir:
		if err := os.MkdirAll(cfg.Store.Path, 0755); err != nil {
			fatal("creating directory: %v", err)
		}
		d, err := tilestore.OpenDir(cfg.Store.Path)
		if err != nil {
			fatal("%v", err)
		}
		ids, err = terrain.WriteDir(d, tiles)
		if err != nil {
			fatal("%v", err)
		}
	case config.StoreBadger:
		b, err := tilestore.OpenBadger(cfg.Store.Path)
		if err != nil {
			fatal("%v", err)
		}
		ids, err = terrain.WriteBadger(b, tiles)
		b.Close()
		if err != nil {
			fatal("%v", err)
		}
	default:
		fatal("cannot generate into a %s store", cfg.Store.Kind)
	}

	logger.Info("tiles generated",
		zap.Int("tiles", len(ids)),
		zap.Int64("seed", opts.Seed),
		zap.String("path", cfg.Store.Path))
	fmt.Printf("Generated %d tiles in %s\n", len(ids), cfg.Store.Path)
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	setup(fs, args)
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: stitchtool import <dir> <badger-dir>")
		os.Exit(1)
	}

	d, err := tilestore.OpenDir(fs.Arg(0))
	if err != nil {
		fatal("%v", err)
	}
	b, err := tilestore.OpenBadger(fs.Arg(1))
	if err != nil {
		fatal("%v", err)
	}
	defer b.Close()

	ids, err := d.IDs()
	if err != nil {
		fatal("%v", err)
	}

	copied := 0
	for _, id := range ids {
		asset, _ := d.Asset(id)
		g, err := d.Elevation(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", asset, err)
			continue
		}
		p, err := d.Placement(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", asset, err)
			continue
		}
		if _, err := b.PutAsset(asset, g, p); err != nil {
			fmt.Fprintf(os.Stderr, "Error storing %s: %v\n", asset, err)
			continue
		}
		fmt.Printf("Imported: %s\n", asset)
		copied++
	}

	fmt.Fprintf(os.Stderr, "\nImported %d tiles\n", copied)
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	setup(fs, args)
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: stitchtool export <badger-dir> <dir>")
		os.Exit(1)
	}

	b, err := tilestore.OpenBadger(fs.Arg(0))
	if err != nil {
		fatal("%v", err)
	}
	defer b.Close()

	if err := os.MkdirAll(fs.Arg(1), 0755); err != nil {
		fatal("creating directory: %v", err)
	}
	d, err := tilestore.OpenDir(fs.Arg(1))
	if err != nil {
		fatal("%v", err)
	}

	ids, err := b.IDs()
	if err != nil {
		fatal("%v", err)
	}

	written := 0
	for _, id := range ids {
		asset, ok := b.Asset(id)
		if !ok {
			asset = string(id)
		}
		h, err := b.Tile(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", asset, err)
			continue
		}
		g, err := h.Grid()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding %s: %v\n", asset, err)
			continue
		}
		p := tilestore.Placement{Rect: h.Bounds(), Vertical: h.Vertical}
		if _, err := d.Create(asset, g, p); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", asset, err)
			continue
		}
		fmt.Printf("Exported: %s\n", asset)
		written++
	}

	fmt.Fprintf(os.Stderr, "\nExported %d tiles\n", written)
}
