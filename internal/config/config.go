// Package config loads the ambient defaults used by both CLIs: macro
// search paths, listing defaults, linker placement and image-format
// defaults (SPEC_FULL.md §4.9).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk (and env/flag-overridable) ambient configuration.
type Config struct {
	Assembler struct {
		MacroLibraryPath  []string `toml:"macro_library_path"`
		ListingWidth      int      `toml:"listing_width"`
		IncludeGenerated  bool     `toml:"include_generated"`
	} `toml:"assembler"`

	Linker struct {
		LowBound    int    `toml:"low_bound"`
		ImageFormat string `toml:"image_format"` // raw | sym | crypt
	} `toml:"linker"`
}

// DefaultConfig returns the built-in defaults (SPEC_FULL.md §4.9).
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Assembler.MacroLibraryPath = []string{"standard.mlb"}
	cfg.Assembler.ListingWidth = 4
	cfg.Assembler.IncludeGenerated = false

	cfg.Linker.LowBound = 0x20
	cfg.Linker.ImageFormat = "raw"
	return cfg
}

// GetConfigPath returns the platform-specific config file path, honoring
// $CDM8_CONFIG first.
func GetConfigPath() string {
	if p := os.Getenv("CDM8_CONFIG"); p != "" {
		return p
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "cdm8")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "cdm8.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "cdm8")

	default:
		return "cdm8.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "cdm8.toml"
	}
	return filepath.Join(configDir, "cdm8.toml")
}

// GetLogPath returns the platform-specific debug-trace log directory.
func GetLogPath() string {
	var logDir string
	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "cdm8", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "cdm8", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}
	return logDir
}

// Load loads configuration from the default config file; a missing file
// is never an error (SPEC_FULL.md §4.9).
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the given path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the given path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
