package config

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zxul767/filesystem/internal/util"
	"gopkg.in/yaml.v3"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	// DefaultCwd is the working directory a new filesystem starts in
	DefaultCwd = "/"

	// DefaultUmask is cleared from the permission bits of every created node
	DefaultUmask fs.FileMode = 0o022

	// DefaultFileMode is the permission requested for files created without an explicit mode
	DefaultFileMode fs.FileMode = 0o666

	// DefaultDirMode is the permission requested for directories created without an explicit mode
	DefaultDirMode fs.FileMode = 0o777

	// DefaultMaxSymlinkExpansions matches Linux's MAXSYMLINKS
	DefaultMaxSymlinkExpansions = 40

	// DefaultBlockSize is reported as the preferred I/O size in attributes
	DefaultBlockSize = 4096

	DefaultEnforcePermissions = true
	DefaultCaseInsensitive    = false
	DefaultHardLinks          = true

	DefaultLogLvl = util.InfoLevel

	// MaxFH is the largest handle number before numbering wraps.
	// 31 bits keeps handle numbers valid libfuse file handles.
	MaxFH = (1 << 31) - 1
)

// CLI style verbosity values accepted by [ConfigOverride.LogLvl].
// Values outside the range are clamped.
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Config contains runtime configuration values for a virtual filesystem.
type Config struct {
	Cwd                  string        // Initial working directory; created if missing (Default "/")
	Uid                  uint32        // Owner of created nodes and the identity permission checks run as
	Gid                  uint32        // Group of created nodes
	Umask                fs.FileMode   // Permission bits cleared on create (Default 0o022)
	DefaultFileMode      fs.FileMode   // Requested file permissions when none given (Default 0o666)
	DefaultDirMode       fs.FileMode   // Requested directory permissions when none given (Default 0o777)
	MaxSymlinkExpansions int           // Symlink expansions allowed per resolution (Default 40)
	BlockSize            uint32        // Preferred I/O size reported in attributes (Default 4096)
	EnforcePermissions   bool          // Check owner/mode bits on access (Default true)
	CaseInsensitive      bool          // Fold names when looking up directory entries (Default false)
	HardLinks            bool          // Allow Link on regular files (Default true)
	LogLvl               util.LogLevel // Log level (Default info)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
//
// LogLvl is a verbosity between 1 (error) and 5 (trace), not a [util.LogLevel].
type ConfigOverride struct {
	Cwd                  *string `yaml:"cwd,omitempty" json:"cwd,omitempty"`
	Uid                  *uint32 `yaml:"uid,omitempty" json:"uid,omitempty"`
	Gid                  *uint32 `yaml:"gid,omitempty" json:"gid,omitempty"`
	Umask                *uint32 `yaml:"umask,omitempty" json:"umask,omitempty"`
	DefaultFileMode      *uint32 `yaml:"default_file_mode,omitempty" json:"default_file_mode,omitempty"`
	DefaultDirMode       *uint32 `yaml:"default_dir_mode,omitempty" json:"default_dir_mode,omitempty"`
	MaxSymlinkExpansions *int    `yaml:"max_symlink_expansions,omitempty" json:"max_symlink_expansions,omitempty"`
	BlockSize            *uint32 `yaml:"block_size,omitempty" json:"block_size,omitempty"`
	EnforcePermissions   *bool   `yaml:"enforce_permissions,omitempty" json:"enforce_permissions,omitempty"`
	CaseInsensitive      *bool   `yaml:"case_insensitive,omitempty" json:"case_insensitive,omitempty"`
	HardLinks            *bool   `yaml:"hard_links,omitempty" json:"hard_links,omitempty"`
	LogLvl               *int    `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
// Ownership defaults to the current process credentials.
func NewDefaultConfig() *Config {
	return &Config{
		Cwd:                  DefaultCwd,
		Uid:                  uint32(os.Getuid()),
		Gid:                  uint32(os.Getgid()),
		Umask:                DefaultUmask,
		DefaultFileMode:      DefaultFileMode,
		DefaultDirMode:       DefaultDirMode,
		MaxSymlinkExpansions: DefaultMaxSymlinkExpansions,
		BlockSize:            DefaultBlockSize,
		EnforcePermissions:   DefaultEnforcePermissions,
		CaseInsensitive:      DefaultCaseInsensitive,
		HardLinks:            DefaultHardLinks,
		LogLvl:               DefaultLogLvl,
	}
}

// NewConfig returns the defaults with override applied. A nil override
// yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.Cwd != nil {
		c.Cwd = *override.Cwd
	}
	if override.Uid != nil {
		c.Uid = *override.Uid
	}
	if override.Gid != nil {
		c.Gid = *override.Gid
	}
	if override.Umask != nil {
		c.Umask = fs.FileMode(*override.Umask) & fs.ModePerm
	}
	if override.DefaultFileMode != nil {
		c.DefaultFileMode = fs.FileMode(*override.DefaultFileMode) & fs.ModePerm
	}
	if override.DefaultDirMode != nil {
		c.DefaultDirMode = fs.FileMode(*override.DefaultDirMode) & fs.ModePerm
	}
	if override.MaxSymlinkExpansions != nil {
		c.MaxSymlinkExpansions = *override.MaxSymlinkExpansions
	}
	if override.BlockSize != nil {
		c.BlockSize = *override.BlockSize
	}
	if override.EnforcePermissions != nil {
		c.EnforcePermissions = *override.EnforcePermissions
	}
	if override.CaseInsensitive != nil {
		c.CaseInsensitive = *override.CaseInsensitive
	}
	if override.HardLinks != nil {
		c.HardLinks = *override.HardLinks
	}
	if override.LogLvl != nil {
		c.LogLvl = VerbosityToLogLevel(*override.LogLvl)
	}
}

// VerbosityToLogLevel maps a CLI verbosity between 1 (error) and 5 (trace)
// to a log level, clamping out of range values.
func VerbosityToLogLevel(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(verbose, TraceVerbose))
	logLvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return logLvls[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
