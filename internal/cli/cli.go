// Package cli implements the penplot command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/buildinfo"
	"github.com/matzehuels/penplot/pkg/cache"
	"github.com/matzehuels/penplot/pkg/config"
	"github.com/matzehuels/penplot/pkg/history"
	"github.com/matzehuels/penplot/pkg/observability"
	"github.com/matzehuels/penplot/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "penplot"

	// redisPrefix namespaces penplot keys in a shared Redis.
	redisPrefix = "penplot:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Persistent flags, bound in RootCommand.
	configPath string
	noCache    bool
	redisAddr  string
	mongoURI   string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Penplot turns colour masks into pen-plotter G-code",
		Long:          `Penplot converts a folder of per-colour raster masks into G-code for a pen plotter, one program per colour plus a combined program that swaps pens between colours.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default $"+config.EnvVar+" or ~/.config/penplot/config.toml)")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable the channel program cache")
	pf.StringVar(&c.redisAddr, "redis", "", "use Redis as the cache (host:port or redis:// URL)")
	pf.StringVar(&c.mongoURI, "mongo", "", "record run history in MongoDB (mongodb:// URI)")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.extractCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.optimizeCommand())
	root.AddCommand(c.combineCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig resolves and reads the config file named by --config.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, path, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}
	return cfg, nil
}

// optionsFromConfig maps the file-backed settings onto pipeline options.
// Command flags are applied on top by each command.
func optionsFromConfig(cfg *config.Config) pipeline.Options {
	params := cfg.ExtractParams()
	return pipeline.Options{
		Scale:          cfg.Extract.Scale,
		Strategy:       cfg.Extract.Strategy,
		Threshold:      params.Threshold,
		Radius:         params.Radius,
		Step:           params.Step,
		EdgeDetect:     params.EdgeDetect,
		Smooth:         params.Smooth,
		Epsilon:        cfg.Tolerances.Epsilon,
		MergeTolerance: cfg.Tolerances.Merge,
		LiftThreshold:  cfg.Tolerances.LiftThreshold,
		Backend:        cfg.Run.Backend,
		Machine:        cfg.ToolMachine(),
		HolderY:        cfg.Machine.HolderY,
		Holders:        cfg.ToolTable(),
		Disabled:       append([]string(nil), cfg.Run.Disabled...),
		Workers:        cfg.Run.Workers,
	}
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner with the cache and history backends
// chosen by the persistent flags. The caller must Close it.
func (c *CLI) newRunner(ctx context.Context) (*pipeline.Runner, error) {
	if c.Logger.GetLevel() <= log.DebugLevel {
		hooks := observability.NewLogHooks(c.Logger)
		observability.SetPipelineHooks(hooks)
		observability.SetCacheHooks(hooks)
	}

	ch, err := c.newCache(ctx)
	if err != nil {
		return nil, err
	}
	runner := pipeline.NewRunner(ch, nil, c.Logger)

	store, err := c.newHistory(ctx)
	if err != nil {
		c.Logger.Warn("run history disabled", "error", err)
	} else {
		runner.History = store
	}
	return runner, nil
}

func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	if c.noCache {
		return cache.NewNullCache(), nil
	}
	if c.redisAddr != "" {
		cfg := cache.RedisConfig{Addr: c.redisAddr, Prefix: redisPrefix}
		if strings.Contains(c.redisAddr, "://") {
			cfg = cache.RedisConfig{URL: c.redisAddr, Prefix: redisPrefix}
		}
		return cache.NewRedisCache(ctx, cfg)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

func (c *CLI) newHistory(ctx context.Context) (history.Store, error) {
	if c.mongoURI != "" {
		return history.NewMongoStore(ctx, history.MongoConfig{URI: c.mongoURI})
	}
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return history.NewFileStore(filepath.Join(dir, "history"))
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/penplot/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// dataDir returns the data directory using XDG standard (~/.local/share/penplot/).
func dataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// splitList parses a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
