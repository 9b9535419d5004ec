// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for sidekick.
type Config struct {
	AgentBin       string `mapstructure:"agent_bin" yaml:"agent_bin"`             // Agent CLI to spawn for subagent runs
	Model          string `mapstructure:"model" yaml:"model"`                     // Default model override (e.g., "anthropic/claude-sonnet-4-5")
	DataDir        string `mapstructure:"data_dir" yaml:"data_dir"`               // Event store directory
	LogLevel       string `mapstructure:"log_level" yaml:"log_level"`
	LogFile        string `mapstructure:"log_file" yaml:"log_file"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // Subagent wall-clock timeout (0 = none)
	SearchEndpoint string `mapstructure:"search_endpoint" yaml:"search_endpoint"` // web_search provider URL
	SearchAPIKey   string `mapstructure:"search_api_key" yaml:"search_api_key"`
	AuthEndpoint   string `mapstructure:"auth_endpoint" yaml:"auth_endpoint"`     // Device-flow authorization base URL
	AuthClientID   string `mapstructure:"auth_client_id" yaml:"auth_client_id"`
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("sidekick")

	v.SetDefault("agent_bin", "opencode")
	v.SetDefault("model", "")
	v.SetDefault("data_dir", ".sidekick")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("timeout_seconds", 0)
	v.SetDefault("search_endpoint", "")
	v.SetDefault("search_api_key", "")
	v.SetDefault("auth_endpoint", "")
	v.SetDefault("auth_client_id", "")

	// Setup ENV binding with SIDEKICK_ prefix
	v.SetEnvPrefix("SIDEKICK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit ENV bindings for better bool/int parsing
	keys := []string{
		"agent_bin", "model", "data_dir", "log_level", "log_file",
		"timeout_seconds", "search_endpoint", "search_api_key",
		"auth_endpoint", "auth_client_id",
	}
	for _, key := range keys {
		if err := v.BindEnv(key, "SIDEKICK_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	// Load global config first (if exists)
	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	// Merge project config on top (if exists)
	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/sidekick/sidekick.yml or $XDG_CONFIG_HOME/sidekick/sidekick.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sidekick", "sidekick.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sidekick", "sidekick.yml")
}

// ProjectPath returns the project-local config path.
// Returns ./sidekick.yml in the current working directory.
func ProjectPath() string {
	return "sidekick.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ProjectPath(), data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
