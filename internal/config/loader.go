package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/rewrite"
)

// EnvConfigPath overrides config discovery.
const EnvConfigPath = "DEVENV_CONFIG"

const appDirName = "devenv"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	dir := defaultStateDir()
	return &Config{
		Log: LogConfig{Level: "info"},
		Ledger: LedgerConfig{
			Path: filepath.Join(dir, "ledger.yaml"),
		},
		Environment: EnvironmentConfig{
			ProfilePath:         filepath.Join(dir, "environment.yaml"),
			RootVariable:        rewrite.DefaultRootVariable,
			SearchPathVariables: append([]string(nil), rewrite.DefaultSearchPathVariables...),
		},
		Migration: MigrationConfig{
			Retries:      3,
			RetryDelay:   500 * time.Millisecond,
			VerifyCopies: true,
		},
		Relocation: RelocationConfig{
			QuiesceDelay: 300 * time.Millisecond,
			SettleDelay:  1500 * time.Millisecond,
		},
		Reaper: ReaperConfig{
			MinPathLength:    5,
			PassDelay:        300 * time.Millisecond,
			ElevationTimeout: 30 * time.Second,
			AllowDeferred:    true,
			AllowElevation:   true,
		},
		API: APIConfig{Listen: "127.0.0.1:8765"},
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, appDirName)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "."+appDirName)
	}
	return "." + appDirName
}

// Discover returns the config file to load: $DEVENV_CONFIG, then
// <user config dir>/devenv/config.yaml. ok is false when neither exists.
func Discover() (path string, ok bool) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, true
	}
	candidate := filepath.Join(defaultStateDir(), "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, true
	}
	return "", false
}

// Load reads configPath over the defaults. An empty path runs discovery and
// falls back to the defaults when nothing is found.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		p, ok := Discover()
		if !ok {
			cfg := Defaults()
			return cfg, validate(cfg)
		}
		configPath = p
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}
	data, err := os.ReadFile(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", absPath, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}
	cfg.SourceFile = absPath

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Bindings returns the built-in toolchain table followed by configured extras.
func (c *Config) Bindings() []rewrite.Binding {
	out := append([]rewrite.Binding(nil), rewrite.DefaultBindings...)
	return append(out, c.Environment.Bindings...)
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place; validate reports it where it matters.
		return match
	})
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}
	if strings.TrimSpace(cfg.Ledger.Path) == "" {
		return fmt.Errorf("ledger.path is required")
	}
	if cfg.Migration.Retries < 1 {
		return fmt.Errorf("migration.retries must be at least 1")
	}
	if cfg.Reaper.MinPathLength < 3 {
		return fmt.Errorf("reaper.min_path_length must be at least 3")
	}

	durations := map[string]time.Duration{
		"migration.retry_delay":    cfg.Migration.RetryDelay,
		"relocation.quiesce_delay": cfg.Relocation.QuiesceDelay,
		"relocation.settle_delay":  cfg.Relocation.SettleDelay,
		"reaper.pass_delay":        cfg.Reaper.PassDelay,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if cfg.Reaper.ElevationTimeout <= 0 {
		return fmt.Errorf("reaper.elevation_timeout must be positive")
	}

	for i, b := range cfg.Environment.Bindings {
		if b.Folder == "" || len(b.Vars) == 0 {
			return fmt.Errorf("environment.bindings[%d]: folder and vars are required", i)
		}
	}

	if m := envVarPattern.FindStringSubmatch(cfg.API.APIKey); len(m) > 1 {
		return fmt.Errorf("api.api_key: environment variable ${%s} is not set", m[1])
	}
	return nil
}
