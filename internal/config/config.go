// Package config loads navhistory configuration from TOML files.
//
// A configuration file looks like:
//
//	[navigation]
//	max_depth = 100
//	watch_files = true
//
//	[log]
//	level = "info"
//
//	[plugins]
//	scripts = ["~/.config/navhistory/init.lua"]
//
// Missing keys keep their defaults. Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/navhistory/internal/logging"
)

// Limits for navigation.max_depth.
const (
	MinMaxDepth = 1
	MaxMaxDepth = 10000
)

// Config is the complete navhistory configuration.
type Config struct {
	Navigation NavigationConfig `toml:"navigation"`
	Log        LogConfig        `toml:"log"`
	Plugins    PluginsConfig    `toml:"plugins"`
}

// NavigationConfig configures the navigation history.
type NavigationConfig struct {
	// MaxDepth is the maximum number of history entries.
	MaxDepth int `toml:"max_depth"`

	// WatchFiles drops closed entries whose file is deleted on disk.
	WatchFiles bool `toml:"watch_files"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// PluginsConfig configures Lua plugin scripts.
type PluginsConfig struct {
	// Scripts are loaded in order at session start.
	Scripts []string `toml:"scripts"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Navigation: NavigationConfig{
			MaxDepth:   100,
			WatchFiles: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default configuration file location,
// or "" if the user config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "navhistory", "config.toml")
}

// Load reads configuration from path.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := parse(path, data)
	if err != nil {
		return Config{}, err
	}
	cfg.Plugins.Scripts = resolveScripts(filepath.Dir(path), cfg.Plugins.Scripts)
	return cfg, nil
}

// LoadFromReader reads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return parse("<reader>", data)
}

// parse decodes TOML data over the defaults and validates the result.
func parse(source string, data []byte) (Config, error) {
	cfg := Default()

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		perr := &ParseError{
			Path:    source,
			Message: err.Error(),
			Err:     err,
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return Config{}, perr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that all settings are within range.
func (c Config) Validate() error {
	if c.Navigation.MaxDepth < MinMaxDepth || c.Navigation.MaxDepth > MaxMaxDepth {
		return &ValidationError{
			Path:    "navigation.max_depth",
			Message: fmt.Sprintf("must be between %d and %d", MinMaxDepth, MaxMaxDepth),
			Value:   c.Navigation.MaxDepth,
		}
	}
	if !logging.ValidLevel(c.Log.Level) {
		return &ValidationError{
			Path:    "log.level",
			Message: "must be one of debug, info, warn, error",
			Value:   c.Log.Level,
		}
	}
	for i, s := range c.Plugins.Scripts {
		if strings.TrimSpace(s) == "" {
			return &ValidationError{
				Path:    fmt.Sprintf("plugins.scripts[%d]", i),
				Message: "must not be empty",
				Value:   s,
			}
		}
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}

// resolveScripts expands ~ and makes relative script paths relative to dir.
func resolveScripts(dir string, scripts []string) []string {
	if len(scripts) == 0 {
		return scripts
	}
	home, _ := os.UserHomeDir()

	out := make([]string, len(scripts))
	for i, s := range scripts {
		switch {
		case home != "" && (s == "~" || strings.HasPrefix(s, "~/")):
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		case !filepath.IsAbs(s):
			s = filepath.Join(dir, s)
		}
		out[i] = s
	}
	return out
}
