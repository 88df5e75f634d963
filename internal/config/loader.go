package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// GlobalConfigDirName is the directory below the user config dir holding
// the global configuration file
const GlobalConfigDirName = "vxbuild"

// Loader handles configuration loading from various sources
type Loader struct {
	globalDir string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	l := &Loader{}
	if dir, err := os.UserConfigDir(); err == nil {
		l.globalDir = filepath.Join(dir, GlobalConfigDirName)
	}

	return l
}

// LoadForBuild loads configuration for a build. Precedence, lowest first:
// defaults, global config, local config, environment, flags.
func (l *Loader) LoadForBuild(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.bindEnv()
	l.bindCommandFlags(cmd)
	l.loadLocalConfig()

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("bundled", DefaultBundled)
	viper.SetDefault("prebuilt", DefaultPrebuilt)
	viper.SetDefault("format", DefaultFormat)
	viper.SetDefault("cgo_package", DefaultCgoPackage)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	if l.globalDir == "" {
		return
	}

	for _, ext := range ConfigExtensions {
		globalPath := filepath.Join(l.globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges the nearest project config found by walking up
// from the manifest directory
func (l *Loader) loadLocalConfig() {
	dir := viper.GetString("manifest_dir")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return // silently ignore, config.Load() will handle validation
		}
		dir = cwd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}

	localPath := FindLocalConfig(abs)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindEnv maps VEROVIO_* variables onto configuration keys. The toolchain
// variables CXX and AR are honoured without the prefix.
func (l *Loader) bindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	_ = viper.BindEnv("cxx", EnvPrefix+"_CXX", "CXX")
	_ = viper.BindEnv("ar", EnvPrefix+"_AR", "AR")
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	for key, flag := range map[string]string{
		"source_dir":    "source-dir",
		"checkout_dir":  "checkout-dir",
		"force_rebuild": "force-rebuild",
		"bundled":       "bundled",
		"prebuilt":      "prebuilt",
		"manifest_dir":  "manifest-dir",
		"out_dir":       "out-dir",
		"target":        "target",
		"offline":       "offline",
		"lock_cache":    "lock-cache",
		"cxx":           "cxx",
		"ar":            "ar",
		"format":        "format",
		"cgo_file":      "cgo-file",
		"cgo_package":   "cgo-package",
		"verbose":       "verbose",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
