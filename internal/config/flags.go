package config

import "flag"

// Flags holds the overrides a command registered on its flag set.
type Flags struct {
	config    *string
	debug     *bool
	seam      *int
	tolerance *float64
	dirs      *string
	epsilon   *float64
	store     *string
	path      *string
	yes       *bool
	logFile   *string
}

// RegisterFlags adds the shared override flags to fs. Call before fs.Parse.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		config:    fs.String("config", "", "Path to config file"),
		debug:     fs.Bool("debug", false, "Enable debug logging"),
		seam:      fs.Int("seam", -1, "Seam width in interior samples"),
		tolerance: fs.Float64("tolerance", -1, "Normalised tolerance (0-1)"),
		dirs:      fs.String("dirs", "", "Directions to stitch (e.g. NSWE, north,east, all)"),
		epsilon:   fs.Float64("epsilon", -1, "Adjacency tolerance in world units"),
		store:     fs.String("store", "", "Tile store kind (dir, badger, memory)"),
		path:      fs.String("path", "", "Tile store path"),
		yes:       fs.Bool("yes", false, "Confirm batch operations without prompting"),
		logFile:   fs.String("log", "", "Also write logs to this file"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.config
}

// apply applies flag overrides to the config. Unset flags keep their sentinel
// values and leave the config untouched.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if *f.debug {
		cfg.Logging.Level = "debug"
	}
	if *f.seam >= 0 {
		cfg.Stitch.SeamWidth = *f.seam
	}
	if *f.tolerance >= 0 {
		cfg.Stitch.Tolerance = *f.tolerance
	}
	if *f.dirs != "" {
		cfg.Stitch.Directions = *f.dirs
	}
	if *f.epsilon >= 0 {
		cfg.Stitch.AdjacencyEpsilon = *f.epsilon
	}
	if *f.store != "" {
		cfg.Store.Kind = *f.store
	}
	if *f.path != "" {
		cfg.Store.Path = *f.path
	}
	if *f.yes {
		cfg.Stitch.Confirmed = true
	}
	if *f.logFile != "" {
		cfg.Logging.LogFile = *f.logFile
	}
}
