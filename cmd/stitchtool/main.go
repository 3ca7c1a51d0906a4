// stitchtool is a CLI utility for inspecting and stitching terrain tile seams.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/midgard-stitch/internal/config"
	"github.com/Faultbox/midgard-stitch/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "inspect":
		cmdInspect(args)
	case "stitch":
		cmdStitch(args)
	case "generate", "gen":
		cmdGenerate(args)
	case "import":
		cmdImport(args)
	case "export":
		cmdExport(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`stitchtool - terrain tile seam utility

Usage:
  stitchtool <command> [options] [store path]

Commands:
  info [path]                        List tiles with placement and altitude range
  inspect [-tile t] [path]           Report seam differences without changing anything
  stitch [-tile t] [-yes] [path]     Blend tile seams in place
  generate [path]                    Write a demo tile set with mismatched seams
  import <dir> <badger-dir>          Copy .hmt tiles into a badger store
  export <badger-dir> <dir>          Write badger tiles back out as .hmt files

Common options:
  -config file     Config file (default ./stitch.yaml)
  -store kind      dir, badger or memory
  -dirs NSWE       Directions to process (default all)
  -seam n          Interior samples the correction tapers over
  -tolerance f     Normalised difference left alone (0-1)
  -debug           Enable debug logging

Examples:
  stitchtool generate -mixed ./tiles
  stitchtool inspect ./tiles
  stitchtool stitch -tile tile_001_001.hmt -dirs NE ./tiles
  stitchtool stitch -yes -store badger ./tiles.db`)
}

// setup parses a command's flags, loads config and starts logging.
// A first positional argument overrides the store path.
func setup(fs *flag.FlagSet, args []string) *config.Config {
	cf := config.RegisterFlags(fs)
	fs.Parse(args)

	cfg, err := config.Load(cf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	opts := logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Console: true}
	if cfg.Logging.LogFile != "" {
		opts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	l, err := logger.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	logger.Set(l)
	logger.Sugar.Debugf("Config: %+v", cfg)
	return cfg
}

func fatal(format string, a ...any) {
	logger.Sync()
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}
