package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/cache"
)

func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the channel program cache",
		Long: `Channel programs are cached by the content of their mask and the options
that shape them, so re-running a folder only recomputes changed channels.
These commands manage the local file cache; a Redis cache (--redis) is
managed with Redis itself.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all cached channel programs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fc, dir, err := openFileCache()
				if err != nil || fc == nil {
					return err
				}
				n, err := fc.Clear()
				if err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				printSuccess("Cleared %d cached entries", n)
				printDetail("Directory: %s", dir)
				return nil
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show how many entries the cache holds",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fc, dir, err := openFileCache()
				if err != nil || fc == nil {
					return err
				}
				n, size, err := fc.Stats()
				if err != nil {
					return fmt.Errorf("read cache: %w", err)
				}
				printKeyValue("Directory", dir)
				printKeyValue("Entries", fmt.Sprint(n))
				printKeyValue("Size", fmtBytes(size))
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the cache directory path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dir, err := cacheDir()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, dir)
				return nil
			},
		},
	)
	return cmd
}

// openFileCache opens the local cache without creating it. A nil cache with
// a nil error means there is nothing cached yet.
func openFileCache() (*cache.FileCache, string, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		printInfo("Cache is empty")
		return nil, dir, nil
	}
	fc, err := cache.NewFileCache(dir)
	return fc, dir, err
}

func fmtBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
