package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Linear     Linear          `yaml:"linear"`
	Changelogs []ChangelogFeed `yaml:"changelog_feeds"`
	Generation Generation      `yaml:"generation"`
	Output     Output          `yaml:"output"`
	Server     Server          `yaml:"server"`
	Cache      Cache           `yaml:"cache"`
	Logging    Logging         `yaml:"logging"`
}

type Linear struct {
	APIKeyEnv string `yaml:"api_key_env"`
	PageSize  int    `yaml:"page_size"`
}

// ChangelogFeed configures one RSS/Atom changelog used as a secondary
// issue source.
type ChangelogFeed struct {
	URL      string `yaml:"url"`
	TeamID   string `yaml:"team_id"`
	TeamName string `yaml:"team_name"`
}

type Generation struct {
	Provider           string `yaml:"provider"`
	Model              string `yaml:"model"`
	OllamaURL          string `yaml:"ollama_url"`
	OpenAIModel        string `yaml:"openai_model"`
	APIKeyEnv          string `yaml:"api_key_env"`
	MaxTokens          int    `yaml:"max_tokens"`
	IncludeIdentifiers bool   `yaml:"include_identifiers"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Cache struct {
	DirectoryTTLMinutes int `yaml:"directory_ttl_minutes"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for releasedraft.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "releasedraft")
}

// DataDir returns the XDG data directory for releasedraft.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "releasedraft")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/releasedraft/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'releasedraft init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Linear: Linear{
			APIKeyEnv: "LINEAR_API_KEY",
			PageSize:  50,
		},
		Generation: Generation{
			Provider:           "ollama",
			Model:              "qwen2.5:7b",
			OllamaURL:          "http://localhost:11434",
			OpenAIModel:        "gpt-4o-mini",
			APIKeyEnv:          "OPENAI_API_KEY",
			MaxTokens:          1024,
			IncludeIdentifiers: true,
		},
		Server:  Server{Port: 8000},
		Cache:   Cache{DirectoryTTLMinutes: 15},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
