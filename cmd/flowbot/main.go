package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/m3rciful/flowbot/core/app"
	"github.com/m3rciful/flowbot/core/buildinfo"
	corecmd "github.com/m3rciful/flowbot/core/cmd"
	coreconfig "github.com/m3rciful/flowbot/core/config"
	coredatabase "github.com/m3rciful/flowbot/core/database"
	"github.com/m3rciful/flowbot/core/engine"
	"github.com/m3rciful/flowbot/core/logger"
)

const (
	configEnvVar      = "FLOWBOT_CONFIG"
	defaultConfigPath = "config.yaml"
)

type cli struct {
	configPath string
}

func (c *cli) run(_ *cobra.Command, _ []string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        c.configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			a, err := app.Bootstrap(appCfg, app.Options{})
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
}

// validateFlows checks a definitions file against the built-in handlers. The path
// defaults to flows.path of the config.
func (c *cli) validateFlows(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		cfg, err := app.LoadConfig(c.resolveConfig())
		if err != nil {
			return err
		}
		path = cfg.Flows.Path
	}

	handlers := engine.NewHandlers()
	if err := app.Builtins().Register(cmd.Context(), handlers, nil); err != nil {
		return err
	}
	flows, err := app.LoadFlows(path, handlers)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d flows ok\n", path, len(flows.FlowNames()))
	return nil
}

func (c *cli) migrate(cmd *cobra.Command, _ []string) error {
	cfg, err := app.LoadConfig(c.resolveConfig())
	if err != nil {
		return err
	}
	switch cfg.Store.Driver {
	case coreconfig.StorePostgres, coreconfig.StoreSQLite:
	default:
		return fmt.Errorf("store driver %q has no migrations", cfg.Store.Driver)
	}
	if err := logger.InitLogger(&cfg.Config); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()
	if err := coredatabase.RunMigrations(cfg.Database); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s migrations applied\n", cfg.Database.Driver)
	return nil
}

func (c *cli) resolveConfig() string {
	return corecmd.ResolveConfigPath(c.configPath, configEnvVar, defaultConfigPath)
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "flowbot",
		Short:         "Telegram bot driven by YAML conversation flows",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to config file (env "+configEnvVar+")")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	})

	flows := &cobra.Command{
		Use:   "flows",
		Short: "Work with flow definitions",
	}
	flows.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Check a flow definitions file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.validateFlows,
	})
	root.AddCommand(flows)

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations of the SQL store",
		Args:  cobra.NoArgs,
		RunE:  c.migrate,
	})
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
