// Package config loads and validates quill's YAML configuration with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// ShellConfig holds shell execution settings.
type ShellConfig struct {
	WorkDir          string        `yaml:"workdir"`            // target working directory; every command starts here
	Interactive      bool          `yaml:"interactive"`        // allocate a pseudo-terminal
	Cols             uint16        `yaml:"cols"`               // 0 = auto-detect
	Rows             uint16        `yaml:"rows"`               // 0 = auto-detect
	OutputBufferMax  int           `yaml:"output_buffer_max"`  // raw capture cap per process, bytes
	TranscriptMaxLen int           `yaml:"transcript_max_len"` // transcript truncation limit, bytes
	RestoreDelay     time.Duration `yaml:"restore_delay"`      // debounce before re-showing the panel
}

// HistoryConfig holds invocation history persistence settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// UIConfig holds interactive surface settings.
type UIConfig struct {
	AgentName    string `yaml:"agent_name"`
	ColorProfile string `yaml:"color_profile"` // "", "ascii", "ansi", "ansi256", "truecolor"
}

// Config is the top-level application configuration.
type Config struct {
	Shell   ShellConfig   `yaml:"shell"`
	History HistoryConfig `yaml:"history"`
	Logger  LoggerConfig  `yaml:"logger"`
	UI      UIConfig      `yaml:"ui"`
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &Config{
		Shell: ShellConfig{
			WorkDir:          wd,
			OutputBufferMax:  1024 * 1024,
			TranscriptMaxLen: 16000,
			RestoreDelay:     300 * time.Millisecond,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir(), "history.db"),
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: filepath.Join(dataDir(), "quill.log"),
		},
		UI: UIConfig{
			AgentName: "quill",
		},
	}
}

// Load reads the config file at path, applies env overrides and terminal
// auto-detection, and validates. A missing file is not an error: defaults
// plus overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)
	detectTerminal(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies QUILL_* environment variables on top of cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUILL_SHELL_WORKDIR"); v != "" {
		cfg.Shell.WorkDir = v
	}
	if v := os.Getenv("QUILL_SHELL_INTERACTIVE"); v == "true" {
		cfg.Shell.Interactive = true
	}
	if v := os.Getenv("QUILL_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("QUILL_HISTORY_ENABLED"); v == "false" {
		cfg.History.Enabled = false
	}
	if v := os.Getenv("QUILL_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("QUILL_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("QUILL_SHELL_RESTORE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Shell.RestoreDelay = d
		}
	}
}

// ColorProfile resolves the configured color profile, falling back to what
// the terminal reports.
func (c *Config) ColorProfile() termenv.Profile {
	switch c.UI.ColorProfile {
	case "ascii":
		return termenv.Ascii
	case "ansi":
		return termenv.ANSI
	case "ansi256":
		return termenv.ANSI256
	case "truecolor":
		return termenv.TrueColor
	default:
		return termenv.ColorProfile()
	}
}

// detectTerminal fills in zero terminal dimensions from the attached tty.
func detectTerminal(cfg *Config) {
	if cfg.Shell.Cols != 0 && cfg.Shell.Rows != 0 {
		return
	}
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		if cfg.Shell.Cols == 0 && w > 0 {
			cfg.Shell.Cols = uint16(w)
		}
		if cfg.Shell.Rows == 0 && h > 0 {
			cfg.Shell.Rows = uint16(h)
		}
	}
}

// DefaultPath is where Load looks for the config file when no --config
// flag is given.
func DefaultPath() string {
	return filepath.Join(dataDir(), "config.yaml")
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".quill")
}
