// Package config loads emuctl's TOML configuration file.
//
// A missing file yields Default. Values are overlaid in this order, later
// winning: defaults, the file, EMUCTL_* environment variables, and finally
// command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/emuctl/internal/autostart"
	"github.com/dshills/emuctl/internal/logging"
)

// Config is the complete file configuration.
type Config struct {
	Log        LogConfig         `toml:"log"`
	Dispatcher DispatcherConfig  `toml:"dispatcher"`
	Handler    map[string]any    `toml:"handler"`
	Commands   map[string]any    `toml:"commands"`
	Autostart  []autostart.Entry `toml:"autostart"`
	Remote     RemoteConfig      `toml:"remote"`
	Scripts    ScriptsConfig     `toml:"scripts"`
	Keys       map[string]any    `toml:"keys"`

	// Dir is the directory of the loaded file. Relative paths resolve
	// against it. Empty when not loaded from a file.
	Dir string `toml:"-"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// DispatcherConfig selects the dispatcher variant and its extras.
type DispatcherConfig struct {
	Strict        bool `toml:"strict"`
	Metrics       bool `toml:"metrics"`
	NotifyUnknown bool `toml:"notifyUnknown"`
}

// RemoteConfig configures the remote-control listener.
type RemoteConfig struct {
	// Listen is a TCP address; empty disables the listener.
	Listen string `toml:"listen"`
}

// ScriptsConfig configures Lua scripting.
type ScriptsConfig struct {
	// Overrides is a Lua file returning a command override table.
	Overrides string `toml:"overrides"`
	// Inbox is a directory watched for automation scripts.
	Inbox string `toml:"inbox"`
	// RemoveAfterRun deletes inbox scripts once they have run.
	RemoveAfterRun bool `toml:"remove_after_run"`
}

// KeyBinding maps a key to a method call.
type KeyBinding struct {
	Method string
	Params map[string]any
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info"},
		Handler:  map[string]any{},
		Commands: map[string]any{},
		Keys:     map[string]any{},
	}
}

// Load reads the configuration at path. A missing file is not an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// LoadFromReader reads configuration from r.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse("<reader>", data)
}

// Parse decodes and validates TOML data. source names the data in errors.
func Parse(source string, data []byte) (*Config, error) {
	cfg := Default()

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, newParseError(source, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return cfg, nil
}

// Validate checks values the decoder cannot.
func (c *Config) Validate() error {
	if c.Log.Level != "" && !logging.ValidLevel(c.Log.Level) {
		return &ValidationError{Path: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	if _, err := c.KeyBindings(); err != nil {
		return err
	}
	return nil
}

// KeyBindings decodes the [keys] section. A value is either a method name
// or a table with a method and optional params.
func (c *Config) KeyBindings() (map[string]KeyBinding, error) {
	bindings := make(map[string]KeyBinding, len(c.Keys))

	for _, key := range c.BoundKeys() {
		raw := c.Keys[key]
		path := "keys." + key

		switch v := raw.(type) {
		case string:
			if v == "" {
				return nil, &ValidationError{Path: path, Message: "empty method"}
			}
			bindings[key] = KeyBinding{Method: v}
		case map[string]any:
			method, _ := v["method"].(string)
			if method == "" {
				return nil, &ValidationError{Path: path, Message: "missing method"}
			}
			b := KeyBinding{Method: method}
			if p, ok := v["params"]; ok {
				params, ok := p.(map[string]any)
				if !ok {
					return nil, &ValidationError{Path: path + ".params", Message: fmt.Sprintf("expected table, got %T", p)}
				}
				b.Params = params
			}
			bindings[key] = b
		default:
			return nil, &ValidationError{Path: path, Message: fmt.Sprintf("expected method name or table, got %T", raw)}
		}
	}
	return bindings, nil
}

// BoundKeys returns the configured key names, sorted.
func (c *Config) BoundKeys() []string {
	keys := make([]string, 0, len(c.Keys))
	for k := range c.Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolvePath resolves p against the config file's directory. Absolute and
// empty paths are returned unchanged.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// LogLevel returns the configured logging level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}
