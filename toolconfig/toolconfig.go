// Package toolconfig holds the TOML-backed configuration for the jj
// toolchain binary: interpreter execution limits, native-backend output
// defaults, and trace settings. This configures the tool, never the
// language — keyword and operator spellings live in the JSON language
// definition (see the langdef package).
package toolconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the toolchain configuration
type Config struct {
	// Interpreter execution settings
	Execution struct {
		MaxLoopIterations uint64 `toml:"max_loop_iterations"`
		EnableTrace       bool   `toml:"enable_trace"`
	} `toml:"execution"`

	// Native backend settings
	Native struct {
		OutputPath     string `toml:"output_path"`
		MarkExecutable bool   `toml:"mark_executable"`
	} `toml:"native"`

	// Trace settings
	Trace struct {
		MaxEntries    int  `toml:"max_entries"`
		ShowPositions bool `toml:"show_positions"`
	} `toml:"trace"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Execution defaults
	cfg.Execution.MaxLoopIterations = 1000000
	cfg.Execution.EnableTrace = false

	// Native defaults
	cfg.Native.OutputPath = "a.out"
	cfg.Native.MarkExecutable = true

	// Trace defaults
	cfg.Trace.MaxEntries = 100000
	cfg.Trace.ShowPositions = true

	return cfg
}

// GetConfigPath returns the platform-specific config file path
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "jj")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "jj.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "jj")

	default:
		return "jj.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "jj.toml"
	}

	return filepath.Join(configDir, "jj.toml")
}

// LoadConfig loads configuration from the given path, overlaying the
// file's values on the defaults. A missing file is not an error; the
// defaults are returned unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = GetConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("toolconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration to the given path as TOML.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = GetConfigPath()
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("toolconfig: create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("toolconfig: encode %s: %w", path, err)
	}
	return nil
}
