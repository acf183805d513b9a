package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `Display the effective lcpipe configuration.

Without arguments, displays every value. With one argument (key), displays
the value for that key.

Configuration is read from ~/.config/lcpipe/config.yaml, project overrides
from .lcpipe.yaml and LCPIPE_* environment variables. When remote.options_file
is set the WebDAV client options are shown too, password masked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		}
		displayAllConfig(cfg)
		return nil
	},
}

var configKeys = []string{
	"backend.mode",
	"backend.workers",
	"backend.ssh.hosts",
	"backend.ssh.user",
	"backend.ssh.key_file",
	"backend.ssh.port",
	"backend.ssh.options",
	"backend.ssh.remote_binary",
	"backend.ssh.workers_per_host",
	"splitter.pdal_binary",
	"remote.options_file",
	"state.db_path",
	"log.debug_file",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}

	if cfg.Remote.OptionsFile == "" {
		return
	}
	opts, err := config.LoadRemoteOptions(cfg.Remote.OptionsFile)
	if err != nil {
		fmt.Printf("remote options: %v\n", err)
		return
	}
	fmt.Printf("%s: %s\n", config.KeyHostname, opts.Hostname)
	fmt.Printf("%s: %s\n", config.KeyLogin, opts.Login)
	fmt.Printf("%s: %s\n", config.KeyPassword, opts.MaskedPassword())
	fmt.Printf("%s: %s\n", config.KeyRoot, opts.Root)
	fmt.Printf("%s: %s\n", config.KeyTimeout, opts.Timeout)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	ssh := cfg.Backend.SSH
	switch strings.ToLower(key) {
	case "backend.mode":
		return cfg.Backend.Mode, nil
	case "backend.workers":
		return strconv.Itoa(cfg.Backend.Workers), nil
	case "backend.ssh.hosts":
		return strings.Join(ssh.Hosts, ","), nil
	case "backend.ssh.user":
		return ssh.User, nil
	case "backend.ssh.key_file":
		return ssh.KeyFile, nil
	case "backend.ssh.port":
		return strconv.Itoa(ssh.Port), nil
	case "backend.ssh.options":
		return strings.Join(ssh.Options, ","), nil
	case "backend.ssh.remote_binary":
		return ssh.RemoteBinary, nil
	case "backend.ssh.workers_per_host":
		return strconv.Itoa(ssh.WorkersPerHost), nil
	case "splitter.pdal_binary":
		return cfg.Splitter.PDALBinary, nil
	case "remote.options_file":
		return cfg.Remote.OptionsFile, nil
	case "state.db_path":
		return cfg.State.DBPath, nil
	case "log.debug_file":
		return cfg.Log.DebugFile, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}
