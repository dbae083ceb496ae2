// Package config loads and persists the JSON configuration file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// WorkspaceConfig describes the workspace boundary set.
type WorkspaceConfig struct {
	DefaultPath  string   `json:"default_path"`
	AllowedPaths []string `json:"allowed_paths,omitempty"` // Additional boundary anchors outside the root
}

// SecurityConfig controls write confirmation and the content deny list.
type SecurityConfig struct {
	RequireConfirmationForWrites bool `json:"require_confirmation_for_writes"`
	// DenyPatterns are regular expressions matched against text write
	// payloads. Empty means the built-in default list.
	DenyPatterns []string `json:"deny_patterns,omitempty"`
}

// LoggingConfig controls the log sink.
type LoggingConfig struct {
	Level   string `json:"level"` // debug, info, warn, error, none
	LogPath string `json:"log_file,omitempty"`
}

// CacheConfig tunes the directory listing cache.
type CacheConfig struct {
	TTLSeconds int `json:"ttl_seconds"`
	MaxEntries int `json:"max_entries"`
}

// Config represents application configuration
type Config struct {
	Workspace WorkspaceConfig `json:"workspace"`
	Security  SecurityConfig  `json:"security"`
	Logging   LoggingConfig   `json:"logging"`
	Cache     CacheConfig     `json:"cache"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "werkraum")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "werkraum")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "werkraum")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "werkraum")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "werkraum")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "werkraum")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "werkraum")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "werkraum")
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Workspace: WorkspaceConfig{
			DefaultPath:  filepath.Join(homeDir, "ai_workspace"),
			AllowedPaths: nil,
		},
		Security: SecurityConfig{
			RequireConfirmationForWrites: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogPath: filepath.Join(defaultStateDir(), "werkraum.log"),
		},
		Cache: CacheConfig{
			TTLSeconds: 300,
			MaxEntries: 100,
		},
	}
}

// GetConfigPath returns the default config file location.
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// Load reads the configuration at path, merging it over DefaultConfig.
// A missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	// Ensure critical fields have defaults if still empty
	if config.Workspace.DefaultPath == "" {
		homeDir, _ := os.UserHomeDir()
		config.Workspace.DefaultPath = filepath.Join(homeDir, "ai_workspace")
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Cache.TTLSeconds <= 0 {
		config.Cache.TTLSeconds = 300
	}
	if config.Cache.MaxEntries <= 0 {
		config.Cache.MaxEntries = 100
	}

	return config, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDefault writes the default configuration to path if no file exists
// there yet. Returns true when a file was created.
func EnsureDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	if err := DefaultConfig().Save(path); err != nil {
		return false, err
	}
	return true, nil
}
