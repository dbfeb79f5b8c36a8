package config

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxul767/filesystem/internal/util"
	"gopkg.in/yaml.v3"
)

// TestNewConfig_WithNilOverride tests that NewConfig creates a config with all default values
// when no override is provided.
func TestNewConfig_WithNilOverride(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(nil)

	require.NotNil(t, cfg)
	assert.Equal(t, createDefaultCfg(), cfg, "must use default values when no config provided")
}

// TestNewConfig_WithAllOverride tests that NewConfig properly applies every override.
func TestNewConfig_WithAllOverride(t *testing.T) {
	t.Parallel()

	override := createOverride()
	cfg := NewConfig(override)

	expCfg := &Config{
		Cwd:                  *override.Cwd,
		Uid:                  *override.Uid,
		Gid:                  *override.Gid,
		Umask:                fs.FileMode(*override.Umask),
		DefaultFileMode:      fs.FileMode(*override.DefaultFileMode),
		DefaultDirMode:       fs.FileMode(*override.DefaultDirMode),
		MaxSymlinkExpansions: *override.MaxSymlinkExpansions,
		BlockSize:            *override.BlockSize,
		EnforcePermissions:   *override.EnforcePermissions,
		CaseInsensitive:      *override.CaseInsensitive,
		HardLinks:            *override.HardLinks,
		LogLvl:               util.TraceLevel,
	}
	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields")
}

func TestConfig_Merge_LogLvlConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		verboseValue  int
		expectedLevel util.LogLevel
	}{
		{"verbose_1_error", 1, util.ErrorLevel},
		{"verbose_2_warn", 2, util.WarnLevel},
		{"verbose_3_info", 3, util.InfoLevel},
		{"verbose_4_debug", 4, util.DebugLevel},
		{"verbose_5_trace", 5, util.TraceLevel},
		{"verbose_0_clamped_to_1", 0, util.ErrorLevel},
		{"verbose_100_clamped_to_5", 100, util.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			override := &ConfigOverride{
				LogLvl: &tt.verboseValue,
			}

			cfg := NewConfig(override)

			assert.Equal(t, tt.expectedLevel, cfg.LogLvl,
				"CLI verbose %d should map to util.LogLevel %v", tt.verboseValue, tt.expectedLevel)
		})
	}
}

func TestConfig_Merge_NilOverrideVals(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(&ConfigOverride{})

	require.NotNil(t, cfg)
	assert.Equal(t, createDefaultCfg(), cfg, "must use default values for nil override fields")
}

func TestConfig_Merge_PartialOverride(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{
		Cwd:             util.Pointer("/home/test"),
		CaseInsensitive: util.Pointer(true),
	}
	cfg := NewConfig(override)

	expCfg := createDefaultCfg()
	expCfg.Cwd = "/home/test"
	expCfg.CaseInsensitive = true

	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields and leave rest default")
}

func TestConfig_Merge_MasksModeBits(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(&ConfigOverride{
		Umask:           util.Pointer(uint32(0o7022)),
		DefaultFileMode: util.Pointer(uint32(fs.ModeDir | 0o640)),
	})

	assert.Equal(t, fs.FileMode(0o022), cfg.Umask)
	assert.Equal(t, fs.FileMode(0o640), cfg.DefaultFileMode)
}

func TestLoadConfigOverrideFile_Valid(t *testing.T) {
	t.Parallel()

	type tc struct {
		ext   string
		build func() (*ConfigOverride, []byte)
	}

	cases := []tc{
		{
			ext: ".yaml",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := yaml.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
		{
			ext: ".yml",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := yaml.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
		{
			ext: ".json",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := json.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
	}

	for _, c := range cases {
		name := "valid" + c.ext
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			override, data := c.build()
			dir := t.TempDir()
			path := filepath.Join(dir, "override"+c.ext)
			require.NoError(t, os.WriteFile(path, data, 0o600))

			loaded, err := LoadConfigOverrideFile(path)

			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, *override, *loaded)
		})
	}
}

func TestLoadConfigOverrideFile_HandWrittenYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vfs.yaml")
	data := []byte("cwd: /work\numask: 0o077\ncase_insensitive: true\nverbose: 4\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := NewConfigFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, "/work", cfg.Cwd)
	assert.Equal(t, fs.FileMode(0o077), cfg.Umask)
	assert.True(t, cfg.CaseInsensitive)
	assert.Equal(t, util.DebugLevel, cfg.LogLvl)
	assert.Equal(t, DefaultDirMode, cfg.DefaultDirMode)
}

// TestLoadConfigOverrideFile_NonExistentFile tests error handling
// when trying to load a file that doesn't exist.
func TestLoadConfigOverrideFile_NonExistentFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does_not_exist.yaml")

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "expected not exist error, got %v", err)
}

// TestLoadConfigOverrideFile_UnsupportedExtension tests error handling
// for file extensions that aren't supported (.txt, .xml, etc).
func TestLoadConfigOverrideFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "override.txt")
	require.NoError(t, os.WriteFile(path, []byte("cwd: /"), 0o600))

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config file extension")
}

func TestLoadConfigOverrideFile_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "override.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config file")
}

// TestNewConfigFromFile_FileError tests that file loading errors
// are properly propagated by the convenience function.
func TestNewConfigFromFile_FileError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.json")

	_, err := NewConfigFromFile(path)
	require.Error(t, err)
}

func createDefaultCfg() *Config {
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

// createOverride makes a ConfigOverride with all non-default values
func createOverride() *ConfigOverride {
	return &ConfigOverride{
		Cwd:                  util.Pointer("/tmp/work"),
		Uid:                  util.Pointer(uint32(4242)),
		Gid:                  util.Pointer(uint32(4343)),
		Umask:                util.Pointer(uint32(0o077)),
		DefaultFileMode:      util.Pointer(uint32(0o600)),
		DefaultDirMode:       util.Pointer(uint32(0o700)),
		MaxSymlinkExpansions: util.Pointer(DefaultMaxSymlinkExpansions + 1),
		BlockSize:            util.Pointer(uint32(DefaultBlockSize * 2)),
		EnforcePermissions:   util.Pointer(!DefaultEnforcePermissions),
		CaseInsensitive:      util.Pointer(!DefaultCaseInsensitive),
		HardLinks:            util.Pointer(!DefaultHardLinks),
		LogLvl:               util.Pointer(TraceVerbose),
	}
}
