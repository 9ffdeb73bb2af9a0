package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/penplot/pkg/config"
	"github.com/matzehuels/penplot/pkg/errors"
	pkgio "github.com/matzehuels/penplot/pkg/io"
)

// configCommand creates the config management command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the config file",
	}

	cmd.AddCommand(c.configShowCommand())
	cmd.AddCommand(c.configInitCommand())
	cmd.AddCommand(c.configPathCommand())

	return cmd
}

// configShowCommand prints the effective configuration as TOML.
func (c *CLI) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return cfg.Encode(out)
		},
	}
}

// configInitCommand writes the default configuration to a file.
func (c *CLI) configInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long: `Write the built-in configuration, including the default pen holder
layout, to the file named by --config or to the default path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return fmt.Errorf("get config dir: %w", err)
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.ErrCodeInput, "%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return errors.Wrap(errors.ErrCodeIO, err, "create config dir")
			}
			err := pkgio.WriteFileAtomic(path, func(w io.Writer) error {
				return config.Default().Encode(w)
			})
			if err != nil {
				return err
			}
			printSuccess("Wrote default configuration")
			printFile(path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

// configPathCommand reports which config file would be loaded.
func (c *CLI) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok := config.Resolve(c.configPath)
			status := "loaded"
			if !ok {
				status = "not found, using defaults"
			}
			printKeyValue("Config", path)
			printKeyValue("Status", status)
			return nil
		},
	}
}
