package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"graphogm/internal/config"
	"graphogm/internal/domain/satellites"
	"graphogm/internal/driver"
	"graphogm/internal/driver/drivers"
	"graphogm/internal/fixture"
	"graphogm/internal/logging"
	"graphogm/internal/session"
)

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	uri        string
	logLevel   string
	seed       bool
}

// app is what a command runs against once flags are parsed
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	driver  driver.Driver
	factory *session.Factory
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "ogm",
		Short: "Map the satellite graph to Go objects",
		Long: `ogm loads, saves and queries the satellite graph through the object-graph mapper.

The driver is chosen from the configured URI: bolt:// and neo4j:// talk to a
server, file: and memory: use the embedded store.

Examples:
  ogm --seed satellites --manned          # Manned satellites from the bundled fixtures
  ogm --uri file:./graph.db import g.yaml # Load a fixture into a file store
  ogm --uri bolt://localhost:7687 query "MATCH (n) RETURN count(n)"`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (default: search standard locations)")
	root.PersistentFlags().StringVar(&flags.uri, "uri", "", "Override driver.uri from the config")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flags.seed, "seed", false, "Import the bundled satellite fixtures before running")

	root.AddCommand(
		newConfigCmd(flags),
		newImportCmd(flags),
		newExportCmd(flags),
		newQueryCmd(flags),
		newSatellitesCmd(flags),
		newProgramsCmd(flags),
		newConstraintsCmd(flags),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(flags *globalFlags) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if flags.configPath != "" {
		cfg, path, err = config.LoadFromPath(flags.configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}
	if flags.uri != "" {
		cfg.Driver.URI = flags.uri
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	return cfg, path, nil
}

// withApp opens the driver and session factory, runs fn and closes them;
// SIGINT and SIGTERM cancel the context passed to fn
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(context.Context, *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, path, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger, _, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	if path != "" {
		logger.Debug("config loaded", "path", path)
	}

	drv, err := drivers.Open(ctx, cfg.Driver, logger)
	if err != nil {
		return fmt.Errorf("failed to open driver: %w", err)
	}

	if flags.seed {
		if err := seed(ctx, drv, logger); err != nil {
			drv.Close(ctx)
			return err
		}
	}

	factory, err := session.NewFactory(ctx, drv, session.FactoryConfigFrom(cfg.Mapping, logger), satellites.Entities()...)
	if err != nil {
		drv.Close(ctx)
		return err
	}
	defer func() {
		if err := factory.Close(context.Background()); err != nil {
			logger.Warn("failed to close driver", "error", err)
		}
	}()

	return fn(ctx, &app{cfg: cfg, logger: logger, driver: drv, factory: factory})
}

// seed imports the bundled satellite fixtures
func seed(ctx context.Context, drv driver.Driver, logger *slog.Logger) error {
	f, err := fixture.ReadFile(satellites.Files, satellites.FixtureYAML)
	if err != nil {
		return err
	}
	ids, err := fixture.Import(ctx, drv, f)
	if err != nil {
		return fmt.Errorf("failed to seed fixtures: %w", err)
	}
	logger.Info("fixtures seeded", "nodes", len(ids), "relationships", len(f.Relationships))
	return nil
}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if path != "" {
				fmt.Fprintf(out, "Config: %s\n%s\n", path, cfg.Summary())
				return nil
			}
			fmt.Fprintf(out, "Config: (defaults)\n%s\nSearched:\n", cfg.Summary())
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, loc := range config.Locations() {
				fmt.Fprintf(w, "  %s\t%s\n", loc.Source, loc.Path)
			}
			return w.Flush()
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			path := config.DefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
