package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lcpipe",
	Short: "LiDAR point-cloud macro pipeline",
	Long: `lcpipe splits point-cloud files onto a regular grid of tiles and checks
that no point was lost on the way.

Jobs can run one at a time (lcpipe retile), as a batch fanned out over local
workers or ssh hosts (lcpipe batch), and their inputs and outputs can be
synchronised with WebDAV storage (lcpipe remote).`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: XDG user config merged with .lcpipe.yaml)")

	rootCmd.AddCommand(retileCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", config.ValidationErrors(errs))
	}
	return cfg, nil
}
