// Package config resolves nandsim settings from defaults, HuJSON config files
// and command-line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/nandsim/pkg/blockstore"
	"github.com/calvinalkan/nandsim/pkg/nand"
	"github.com/tailscale/hujson"
)

// Error variables for configuration loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config")
	ErrUnknownVariant     = errors.New("unknown device variant")
	ErrUnknownCompression = errors.New("unknown compression")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".nandsim.json"

// Config holds all configuration options.
type Config struct {
	Root         string `json:"root"`
	Device       string `json:"device"`
	Variant      string `json:"variant"`
	Compression  string `json:"compression"`
	CacheHandles int    `json:"cache_handles"`
	CommandLog   string `json:"command_log"`
	LogLevel     string `json:"log_level"`
	LogFormat    string `json:"log_format"`
	Seed         uint64 `json:"seed"`

	// Resolved (computed, not serialized)
	EffectiveCwd string `json:"-"`
	RootAbs      string `json:"-"`

	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string
	Project string
}

// fileConfig is one config file. Pointers distinguish "absent" from an
// explicit zero, so `"command_log": ""` disables the log.
type fileConfig struct {
	Root         *string `json:"root"`
	Device       *string `json:"device"`
	Variant      *string `json:"variant"`
	Compression  *string `json:"compression"`
	CacheHandles *int    `json:"cache_handles"`
	CommandLog   *string `json:"command_log"`
	LogLevel     *string `json:"log_level"`
	LogFormat    *string `json:"log_format"`
	Seed         *uint64 `json:"seed"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Root:         ".",
		Device:       nand.DefaultName,
		Variant:      nand.VariantCommon.String(),
		Compression:  blockstore.CompressBrotli.String(),
		CacheHandles: nand.DefaultHandles,
		CommandLog:   "commandq.log",
		LogLevel:     "warn",
		LogFormat:    "text",
	}
}

// Overrides are command-line values; zero values mean "not set".
type Overrides struct {
	Root         string
	Device       string
	Variant      string
	Compression  string
	CacheHandles int
	LogLevel     string
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDirOverride string            // -C flag; os.Getwd() if empty
	ConfigPath      string            // -c flag
	Overrides       Overrides         // other flags
	Env             map[string]string // environment variables
}

// Load resolves the configuration with the following precedence (highest
// wins):
//  1. Defaults
//  2. Global config ($XDG_CONFIG_HOME/nandsim/config.json or ~/.config/nandsim/config.json)
//  3. Project config (.nandsim.json in the working directory, if present)
//  4. Explicit config file (-c), which replaces the project lookup
//  5. Command-line overrides
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if path := globalPath(input.Env); path != "" {
		fc, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, fc)
			cfg.Sources.Global = path
		}
	}

	projectPath, mustExist := filepath.Join(workDir, FileName), false

	if input.ConfigPath != "" {
		projectPath, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
	}

	fc, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, fc)
		cfg.Sources.Project = projectPath
	}

	cfg = applyOverrides(cfg, input.Overrides)

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir

	cfg.RootAbs = cfg.Root
	if !filepath.IsAbs(cfg.RootAbs) {
		cfg.RootAbs = filepath.Join(workDir, cfg.RootAbs)
	}

	return cfg, nil
}

// globalPath returns the global config path, or "" if neither
// XDG_CONFIG_HOME nor HOME is set.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "nandsim", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "nandsim", "config.json")
	}

	return ""
}

func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist && os.IsNotExist(err) {
			return fileConfig{}, false, nil
		}

		if os.IsNotExist(err) {
			return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}

		return fileConfig{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	fc, err := parse(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return fc, true, nil
}

func parse(data []byte) (fileConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig

	err = json.Unmarshal(standardized, &fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return fc, nil
}

func merge(base Config, overlay fileConfig) Config {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	set(&base.Root, overlay.Root)
	set(&base.Device, overlay.Device)
	set(&base.Variant, overlay.Variant)
	set(&base.Compression, overlay.Compression)
	set(&base.CommandLog, overlay.CommandLog)
	set(&base.LogLevel, overlay.LogLevel)
	set(&base.LogFormat, overlay.LogFormat)

	if overlay.CacheHandles != nil {
		base.CacheHandles = *overlay.CacheHandles
	}

	if overlay.Seed != nil {
		base.Seed = *overlay.Seed
	}

	return base
}

func applyOverrides(cfg Config, o Overrides) Config {
	for _, kv := range []struct {
		dst *string
		src string
	}{
		{&cfg.Root, o.Root},
		{&cfg.Device, o.Device},
		{&cfg.Variant, o.Variant},
		{&cfg.Compression, o.Compression},
		{&cfg.LogLevel, o.LogLevel},
	} {
		if kv.src != "" {
			*kv.dst = kv.src
		}
	}

	if o.CacheHandles != 0 {
		cfg.CacheHandles = o.CacheHandles
	}

	return cfg
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root cannot be empty", ErrConfigInvalid)
	}

	if c.Device == "" || c.Device != filepath.Base(c.Device) {
		return fmt.Errorf("%w: device %q must be a plain name", ErrConfigInvalid, c.Device)
	}

	_, err := c.ParsedVariant()
	if err != nil {
		return err
	}

	_, err = c.ParsedCompression()
	if err != nil {
		return err
	}

	if c.CacheHandles < 1 || c.CacheHandles > blockstore.MaxHandles {
		return fmt.Errorf("%w: cache_handles %d not in [1, %d]", ErrConfigInvalid, c.CacheHandles, blockstore.MaxHandles)
	}

	_, err = c.Level()
	if err != nil {
		return err
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q must be text or json", ErrConfigInvalid, c.LogFormat)
	}

	return nil
}

// ParsedVariant returns the device variant.
func (c Config) ParsedVariant() (nand.Variant, error) {
	v, err := nand.ParseVariant(c.Variant)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, c.Variant)
	}

	return v, nil
}

// ParsedCompression returns the block compression.
func (c Config) ParsedCompression() (blockstore.Compression, error) {
	comp, err := blockstore.ParseCompression(c.Compression)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, c.Compression)
	}

	return comp, nil
}

// Level returns the log level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrConfigInvalid, c.LogLevel)
	}

	return level, nil
}

// CommandLogPath returns the absolute command log path, or "" when disabled.
func (c Config) CommandLogPath() string {
	if c.CommandLog == "" || filepath.IsAbs(c.CommandLog) {
		return c.CommandLog
	}

	return filepath.Join(c.RootAbs, c.CommandLog)
}
