// Package cli implements the gridboard command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jwulff/gridboard/internal/client"
	"github.com/jwulff/gridboard/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile   string
	LogLevel  string
	LogFormat string
	Server    string

	// Config is loaded before any subcommand runs. Flags that were set
	// explicitly have already been folded into it.
	Config config.Config
}

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gridboard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gridboard",
		Short: "gridboard - dashboard layout server",
		Long:  "Serves dashboards of widgets laid out on a grid, and moves them between installations as export documents.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format: text|json (overrides LOG_FORMAT)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "base URL of a running server (overrides GRIDBOARD_URL)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewDashboardsCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.LogFormat = o.LogFormat
	}
	if o.Server != "" {
		cfg.ServerURL = o.Server
	}
	if !slices.Contains(ValidLogFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format %q: must be one of %v", cfg.LogFormat, ValidLogFormats)
	}
	o.Config = cfg
	return nil
}

func (o *RootOptions) logger(cmd *cobra.Command) (*logrus.Logger, error) {
	return config.NewLogger(o.Config.LogLevel, o.Config.LogFormat, cmd.ErrOrStderr())
}

func (o *RootOptions) client() *client.Client {
	return client.New(o.Config.ServerURL)
}
