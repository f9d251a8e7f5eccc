package config

import (
	"time"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/rewrite"
)

// Config represents the complete devenv configuration.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Environment EnvironmentConfig `yaml:"environment"`
	Migration   MigrationConfig   `yaml:"migration"`
	Relocation  RelocationConfig  `yaml:"relocation"`
	Reaper      ReaperConfig      `yaml:"reaper"`
	API         APIConfig         `yaml:"api"`

	// SourceFile is the file the config was loaded from, empty for defaults.
	SourceFile string `yaml:"-"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// LedgerConfig locates the persisted root record. It lives outside the
// managed root so it survives relocation.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// EnvironmentConfig controls which variables are rewritten on relocation.
type EnvironmentConfig struct {
	// ProfilePath is the variable file used where there is no registry.
	ProfilePath         string            `yaml:"profile_path"`
	RootVariable        string            `yaml:"root_variable"`
	SearchPathVariables []string          `yaml:"search_path_variables"`
	Bindings            []rewrite.Binding `yaml:"bindings,omitempty"`
}

type MigrationConfig struct {
	Retries      int           `yaml:"retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	VerifyCopies bool          `yaml:"verify_copies"`
}

type RelocationConfig struct {
	QuiesceDelay time.Duration `yaml:"quiesce_delay"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

type ReaperConfig struct {
	MinPathLength    int           `yaml:"min_path_length"`
	PassDelay        time.Duration `yaml:"pass_delay"`
	ElevationTimeout time.Duration `yaml:"elevation_timeout"`
	AllowDeferred    bool          `yaml:"allow_deferred"`
	AllowElevation   bool          `yaml:"allow_elevation"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
	APIKey string `yaml:"api_key"`
}
