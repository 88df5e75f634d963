package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxur/verovioxide-sub000/internal/utils"
)

func TestConfig_Validate_Defaults(t *testing.T) {
	ws := t.TempDir()
	cfg := &Config{ManifestDir: ws, Target: "x86_64-unknown-linux-gnu"}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ws, cfg.ManifestDir)
	assert.Equal(t, ws, cfg.WorkspaceRoot)
	assert.Equal(t, filepath.Join(ws, "verovio"), cfg.CheckoutDir)
	assert.Equal(t, filepath.Join(ws, "target", "vxbuild", "linux-amd64-gnu"), cfg.OutDir)
	assert.Equal(t, DefaultFormat, cfg.Format)
	assert.Equal(t, DefaultCgoPackage, cfg.CgoPackage)
	assert.Equal(t, utils.Target{OS: utils.OSLinux, Arch: "x86_64", Env: utils.EnvGNU}, cfg.ParsedTarget)
}

func TestConfig_Validate_ResolvesPaths(t *testing.T) {
	ws := t.TempDir()
	t.Chdir(ws)

	cfg := &Config{
		ManifestDir: ".",
		SourceDir:   "vendor/verovio",
		OutDir:      "build",
		CgoFile:     "sys/link.go",
		Target:      "linux/amd64",
	}
	require.NoError(t, cfg.Validate())

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "vendor", "verovio"), cfg.SourceDir)
	assert.Equal(t, filepath.Join(wd, "build"), cfg.OutDir)
	assert.Equal(t, filepath.Join(wd, "sys", "link.go"), cfg.CgoFile)
	assert.True(t, filepath.IsAbs(cfg.ManifestDir))
}

func TestConfig_Validate_WorkspaceRootFromGoWork(t *testing.T) {
	ws := t.TempDir()
	module := filepath.Join(ws, "sys")
	require.NoError(t, os.MkdirAll(module, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "go.work"), []byte("go 1.25\n"), 0o644))

	cfg := &Config{ManifestDir: module}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ws, cfg.WorkspaceRoot)

	explicit := t.TempDir()
	cfg = &Config{ManifestDir: module, WorkspaceRoot: explicit}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, explicit, cfg.WorkspaceRoot)
}

func TestConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *Config
		errContains string
	}{
		{
			name:        "invalid target",
			cfg:         &Config{Target: "linux"},
			errContains: "invalid target",
		},
		{
			name:        "invalid format",
			cfg:         &Config{Format: "json"},
			errContains: "unknown link format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ManifestDir = t.TempDir()
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestIsMSVCCompiler(t *testing.T) {
	assert.True(t, isMSVCCompiler("cl.exe"))
	assert.True(t, isMSVCCompiler("CL.EXE"))
	assert.True(t, isMSVCCompiler(filepath.Join("bin", "cl")))
	assert.False(t, isMSVCCompiler("clang++"))
	assert.False(t, isMSVCCompiler(""))
}

func TestLoad(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	ws := t.TempDir()
	viper.Set("manifest_dir", ws)
	viper.Set("target", "aarch64-apple-darwin")
	viper.Set("bundled", true)
	viper.Set("force_rebuild", true)
	viper.Set("format", "ldflags")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ws, cfg.ManifestDir)
	assert.True(t, cfg.Bundled)
	assert.True(t, cfg.ForceRebuild)
	assert.Equal(t, "ldflags", cfg.Format)
	assert.Equal(t, utils.OSDarwin, cfg.ParsedTarget.OS)
}

func TestLoad_InvalidConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("manifest_dir", t.TempDir())
	viper.Set("format", "yaml")

	cfg, err := Load()
	assert.Nil(t, cfg)
	assert.Error(t, err)
}
