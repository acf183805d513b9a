// Package config handles configuration loading and management for lcpipe.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for lcpipe.
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Splitter SplitterConfig `mapstructure:"splitter"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	State    StateConfig    `mapstructure:"state"`
	Log      LogConfig      `mapstructure:"log"`
}

// BackendConfig selects and sizes the fan-out backend.
type BackendConfig struct {
	// Mode is local, ssh or slurm.
	Mode    string    `mapstructure:"mode"`
	Workers int       `mapstructure:"workers"`
	SSH     SSHConfig `mapstructure:"ssh"`
}

// SSHConfig holds the ssh backend settings.
type SSHConfig struct {
	Hosts          []string `mapstructure:"hosts"`
	User           string   `mapstructure:"user"`
	KeyFile        string   `mapstructure:"key_file"`
	Port           int      `mapstructure:"port"`
	Options        []string `mapstructure:"options"`
	RemoteBinary   string   `mapstructure:"remote_binary"`
	WorkersPerHost int      `mapstructure:"workers_per_host"`
}

// SplitterConfig locates the PDAL command line.
type SplitterConfig struct {
	PDALBinary string `mapstructure:"pdal_binary"`
}

// RemoteConfig points at the WebDAV client options file.
type RemoteConfig struct {
	OptionsFile string `mapstructure:"options_file"`
}

// StateConfig locates the run history database.
type StateConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LogConfig holds the run log settings.
type LogConfig struct {
	// DebugFile receives per-task executor lines; empty disables it.
	DebugFile string `mapstructure:"debug_file"`
}

// envKeys are bound to LCPIPE_<KEY> with dots replaced by underscores.
var envKeys = []string{
	"backend.mode",
	"backend.workers",
	"backend.ssh.hosts",
	"backend.ssh.user",
	"backend.ssh.key_file",
	"backend.ssh.port",
	"backend.ssh.remote_binary",
	"backend.ssh.workers_per_host",
	"splitter.pdal_binary",
	"remote.options_file",
	"state.db_path",
	"log.debug_file",
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (LCPIPE_BACKEND_MODE, ...)
// 2. Project config (.lcpipe.yaml in current directory or parent)
// 3. User config (~/.config/lcpipe/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Merge project config (takes precedence)
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path. Environment
// overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)

	return unmarshal(v)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("backend.mode", d.Backend.Mode)
	v.SetDefault("backend.workers", d.Backend.Workers)
	v.SetDefault("backend.ssh.hosts", []string{})
	v.SetDefault("backend.ssh.user", "")
	v.SetDefault("backend.ssh.key_file", "")
	v.SetDefault("backend.ssh.port", 0)
	v.SetDefault("backend.ssh.options", []string{})
	v.SetDefault("backend.ssh.remote_binary", d.Backend.SSH.RemoteBinary)
	v.SetDefault("backend.ssh.workers_per_host", d.Backend.SSH.WorkersPerHost)

	v.SetDefault("splitter.pdal_binary", d.Splitter.PDALBinary)
	v.SetDefault("remote.options_file", "")
	v.SetDefault("state.db_path", d.State.DBPath)
	v.SetDefault("log.debug_file", "")
}

func bindEnv(v *viper.Viper) {
	for _, key := range envKeys {
		env := "LCPIPE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, env)
	}
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references in paths
	cfg.Backend.SSH.KeyFile = expandPath(cfg.Backend.SSH.KeyFile)
	cfg.Remote.OptionsFile = expandPath(cfg.Remote.OptionsFile)
	cfg.State.DBPath = expandPath(cfg.State.DBPath)
	cfg.Log.DebugFile = expandPath(cfg.Log.DebugFile)

	return cfg, nil
}

// getUserConfigDir returns the XDG config directory for lcpipe.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "lcpipe")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "lcpipe")
	}
	return filepath.Join(home, ".config", "lcpipe")
}

// getUserDataDir returns the XDG data directory for lcpipe.
func getUserDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "lcpipe")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "lcpipe")
	}
	return filepath.Join(home, ".local", "share", "lcpipe")
}

// findProjectConfig searches for .lcpipe.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".lcpipe.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandPath expands ${VAR} references and a leading ~/.
func expandPath(s string) string {
	s = os.ExpandEnv(s)
	if strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, s[2:])
		}
	}
	return s
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Mode:    "local",
			Workers: 0,
			SSH: SSHConfig{
				RemoteBinary:   "lcpipe",
				WorkersPerHost: 1,
			},
		},
		Splitter: SplitterConfig{
			PDALBinary: "pdal",
		},
		State: StateConfig{
			DBPath: filepath.Join(getUserDataDir(), "state.db"),
		},
	}
}
