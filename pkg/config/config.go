// Package config loads penplot settings from a TOML file.
//
// A config file has five tables:
//
//	[machine]
//	pen_up = 20.0
//	pen_down = 0.0
//	feed_rate = 1000.0
//	holder_y = 0.0
//
//	[extract]
//	strategy = "hatch-fill"
//	threshold = 128
//	radius = 1.0
//	step = 1
//	scale = 1.0
//	edge_detect = false
//	smooth = false
//
//	[tolerances]
//	epsilon = 1.0
//	merge = 1.0
//	lift_threshold = 2.0
//
//	[run]
//	workers = 8
//	disabled = ["Lightgrey"]
//	backend = "grid"
//
//	[holders]
//	Black = 0.0
//	Red = 20.0
//
// Missing keys keep their defaults. A [holders] table replaces the default
// pen layout entirely.
package config

import (
	"io"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/penplot/pkg/core/extract"
	"github.com/matzehuels/penplot/pkg/core/merge"
	"github.com/matzehuels/penplot/pkg/core/reduce"
	"github.com/matzehuels/penplot/pkg/core/sequence"
	"github.com/matzehuels/penplot/pkg/core/spatial"
	"github.com/matzehuels/penplot/pkg/core/toolpath"
	"github.com/matzehuels/penplot/pkg/errors"
)

// EnvVar names the environment variable that points at a config file.
const EnvVar = "PENPLOT_CONFIG"

// Config is the full set of file-backed settings.
type Config struct {
	Machine    Machine            `toml:"machine"`
	Extract    Extract            `toml:"extract"`
	Tolerances Tolerances         `toml:"tolerances"`
	Run        Run                `toml:"run"`
	Holders    map[string]float64 `toml:"holders"`
}

// Machine holds plotter parameters.
type Machine struct {
	PenUp    float64 `toml:"pen_up"`
	PenDown  float64 `toml:"pen_down"`
	FeedRate float64 `toml:"feed_rate"`
	HolderY  float64 `toml:"holder_y"`
}

// Extract holds vector extraction parameters.
type Extract struct {
	Strategy   string  `toml:"strategy"`
	Threshold  int     `toml:"threshold"`
	Radius     float64 `toml:"radius"`
	Step       int     `toml:"step"`
	Scale      float64 `toml:"scale"`
	EdgeDetect bool    `toml:"edge_detect"`
	Smooth     bool    `toml:"smooth"`
}

// Tolerances holds the distances used when joining and ordering geometry.
type Tolerances struct {
	Epsilon       float64 `toml:"epsilon"`
	Merge         float64 `toml:"merge"`
	LiftThreshold float64 `toml:"lift_threshold"`
}

// Run holds execution settings.
type Run struct {
	Workers  int      `toml:"workers"`
	Disabled []string `toml:"disabled"`
	Backend  string   `toml:"backend"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Machine: Machine{
			PenUp:    toolpath.DefaultPenUp,
			PenDown:  toolpath.DefaultPenDown,
			FeedRate: toolpath.DefaultFeedRate,
		},
		Extract: Extract{
			Strategy:  string(extract.DefaultStrategy),
			Threshold: int(extract.DefaultThreshold),
			Radius:    extract.DefaultRadius,
			Step:      extract.DefaultStep,
			Scale:     1,
		},
		Tolerances: Tolerances{
			Epsilon:       reduce.DefaultEpsilon,
			Merge:         merge.DefaultTolerance,
			LiftThreshold: toolpath.DefaultLiftThreshold,
		},
		Run: Run{
			Workers: runtime.NumCPU(),
			Backend: string(spatial.DefaultBackend),
		},
		Holders: sequence.DefaultToolTable(),
	}
}

// DefaultPath returns ~/.config/penplot/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "penplot", "config.toml"), nil
}

// Resolve picks the config file to load: explicit, then $PENPLOT_CONFIG,
// then the default path. The second return value is false when the chosen
// path is the default one and it does not exist.
func Resolve(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if env := os.Getenv(EnvVar); env != "" {
		return env, true
	}
	path, err := DefaultPath()
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return path, false
	}
	return path, true
}

// Load reads the config at path on top of [Default] and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeNotFound, "config file %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeIO, err, "open config %s", path)
	}
	defer f.Close()
	return Decode(f)
}

// LoadOrDefault resolves the config path and loads it. When no file is
// configured and the default path is absent, the defaults are returned.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, ok := Resolve(explicit)
	if !ok {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Decode parses TOML from r on top of [Default]. Unknown keys are an error.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	holders := cfg.Holders
	cfg.Holders = nil

	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if !md.IsDefined("holders") {
		cfg.Holders = holders
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.ErrCodeInvalidConfig, format, args...)
	}
	if c.Machine.FeedRate <= 0 {
		return invalid("machine.feed_rate must be positive, got %g", c.Machine.FeedRate)
	}
	if c.Machine.PenUp <= c.Machine.PenDown {
		return invalid("machine.pen_up (%g) must be above pen_down (%g)", c.Machine.PenUp, c.Machine.PenDown)
	}
	if _, err := extract.ParseStrategy(c.Extract.Strategy); err != nil {
		return invalid("extract.strategy: %v", err)
	}
	if c.Extract.Threshold < 1 || c.Extract.Threshold > 255 {
		return invalid("extract.threshold must be in 1..255, got %d", c.Extract.Threshold)
	}
	if c.Extract.Radius < 0 || c.Extract.Step < 0 || c.Extract.Scale < 0 {
		return invalid("extract radius, step and scale must not be negative")
	}
	if c.Tolerances.Epsilon < 0 || c.Tolerances.Merge < 0 || c.Tolerances.LiftThreshold < 0 {
		return invalid("tolerances must not be negative")
	}
	if c.Run.Workers < 0 {
		return invalid("run.workers must not be negative, got %d", c.Run.Workers)
	}
	if _, err := spatial.ParseBackend(c.Run.Backend); err != nil {
		return invalid("run.backend: %v", err)
	}
	for _, name := range slices.Sorted(maps.Keys(c.Holders)) {
		if err := errors.ValidateChannelName(name); err != nil {
			return invalid("holders: %v", err)
		}
	}
	if len(c.Holders) == 0 {
		return invalid("holders table is empty")
	}
	return nil
}

// ToolMachine converts the machine table.
func (c *Config) ToolMachine() toolpath.Machine {
	return toolpath.Machine{
		PenUp:    c.Machine.PenUp,
		PenDown:  c.Machine.PenDown,
		FeedRate: c.Machine.FeedRate,
	}
}

// ExtractParams converts the extract table.
func (c *Config) ExtractParams() extract.Params {
	return extract.Params{
		Threshold:  uint8(c.Extract.Threshold),
		Radius:     c.Extract.Radius,
		Step:       c.Extract.Step,
		EdgeDetect: c.Extract.EdgeDetect,
		Smooth:     c.Extract.Smooth,
	}
}

// ToolTable returns a copy of the holder table.
func (c *Config) ToolTable() sequence.ToolTable {
	t := make(sequence.ToolTable, len(c.Holders))
	for k, v := range c.Holders {
		t[k] = v
	}
	return t
}
