package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// DefaultConfigFile is read from the working directory when present
	DefaultConfigFile = "dirscan.toml"
	// EnvPrefix marks environment variables that configure dirscan
	EnvPrefix = "DIRSCAN_"

	FormatText = "text"
	FormatJSON = "json"
)

// ErrNoDirectory is returned by Validate when no root was configured
var ErrNoDirectory = errors.New("directory is required (--directory/-d)")

// Config holds all configuration for the application
type Config struct {
	Directory  string   `koanf:"directory"`
	Exclude    []string `koanf:"exclude"`
	Prune      bool     `koanf:"prune"`
	Format     string   `koanf:"format"`
	Watch      bool     `koanf:"watch"`
	Serve      bool     `koanf:"serve"`
	Port       int      `koanf:"port"`
	Verbosity  string   `koanf:"verbosity"`
	VerboseCnt int      `koanf:"verbose"`
	LogJSON    bool     `koanf:"log-json"`
}

// NewFlagSet declares every command-line flag
func NewFlagSet(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.StringP("directory", "d", "", "Directory to scan (required)")
	f.StringArrayP("exclude", "e", []string{}, "Comma-separated patterns to exclude, e.g. \"*.tmp,*.log,target\" (repeatable)")
	f.Bool("prune", false, "Do not descend into excluded directories")
	f.StringP("format", "f", FormatText, "Output format: text or json")
	f.BoolP("watch", "w", false, "Rescan whenever the directory changes")
	f.Bool("serve", false, "Serve scan results over HTTP")
	f.IntP("port", "p", 8080, "Port for the HTTP server (only used with --serve)")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	f.Bool("log-json", false, "Write logs as JSON")
	f.String("config", DefaultConfigFile, "Path to an optional TOML config file")
	return f
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"directory": "",
		"exclude":   []string{},
		"prune":     false,
		"format":    FormatText,
		"watch":     false,
		"serve":     false,
		"port":      8080,
		"verbosity": "",
		"verbose":   0,
		"log-json":  false,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file (optional)
	path := DefaultConfigFile
	if f != nil {
		if p, err := f.GetString("config"); err == nil && p != "" {
			path = p
		}
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// 3. Environment variables, e.g. DIRSCAN_EXCLUDE="*.log,target"
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Exclude = SplitPatterns(cfg.Exclude)

	return &cfg, nil
}

// envKey maps DIRSCAN_LOG_JSON to log-json
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", "-")
}

// SplitPatterns flattens comma-separated items and drops empty ones, so an
// empty --exclude means no patterns at all
func SplitPatterns(items []string) []string {
	patterns := []string{}
	for _, item := range items {
		for _, p := range strings.Split(item, ",") {
			if p != "" {
				patterns = append(patterns, p)
			}
		}
	}
	return patterns
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.Directory == "" {
		return ErrNoDirectory
	}
	switch c.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown format %q (want %s or %s)", c.Format, FormatText, FormatJSON)
	}
	if c.Serve && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
