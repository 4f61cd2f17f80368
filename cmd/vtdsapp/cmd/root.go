package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"vtdsapp/internal/config"
	"vtdsapp/internal/layer"
	"vtdsapp/internal/repository/sqlite"
	"vtdsapp/internal/service"
)

var (
	// Version information (set at build time via ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var cfgPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vtdsapp",
	Short: "vtdsapp - vTDS demo application layer",
	Long: `vtdsapp drives the demo application layer of a vTDS cluster.

The lower vTDS layers provision virtual networks and virtual nodes; this
tool deploys the demo workloads onto them and verifies that the virtual
networks isolate node classes the way the configuration promises:

  - SCS and FSM nodes reach each other across the cross network
  - non-SCS nodes only reach SCS nodes, over the SCS network
  - non-FSM nodes only reach FSM nodes, over the FSM network

The usual flow is prepare, validate, deploy, verify. The status command
serves a small API with live verification events.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"path to the application config (default: search standard locations)")
}

// loadConfig loads the config from --config or the standard search path
func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		cfg, _, err := config.LoadFromPath(cfgPath)
		return cfg, err
	}

	cfg, path, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		log.Println("No config file found, using defaults")
	} else {
		log.Printf("Using config %s", path)
	}
	return cfg, nil
}

// env bundles the pieces every subcommand needs
type env struct {
	cfg  *config.Config
	repo *sqlite.Repository
	bus  *service.EventBus
	app  *layer.Application
}

// openEnv loads the config and opens the state store and the layer driver
func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}

	bus := service.NewEventBus()
	app, err := layer.New(cfg, repo, bus)
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &env{cfg: cfg, repo: repo, bus: bus, app: app}, nil
}

// Close releases the environment's resources
func (e *env) Close() {
	if err := e.repo.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
