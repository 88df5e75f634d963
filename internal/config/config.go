package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/oxur/verovioxide-sub000/internal/link"
	"github.com/oxur/verovioxide-sub000/internal/utils"
)

// Default configuration values
const (
	DefaultBundled     = true
	DefaultPrebuilt    = false
	DefaultFormat      = "lines"
	DefaultCgoPackage  = "verovio"
	DefaultVerbose     = false
	DefaultCheckoutDir = "verovio"
)

// EnvPrefix is prepended to every configuration key read from the environment
const EnvPrefix = "VEROVIO"

// Holds the configuration options for vxbuild
type Config struct {
	// Explicit Verovio source tree; must contain src/ when set
	SourceDir string

	// Local checkout looked at after SourceDir (default <workspace>/verovio)
	CheckoutDir string

	// Ignore a cached artifact and compile again
	ForceRebuild bool

	// Compile from source when no usable artifact exists
	Bundled bool

	// Try a prebuilt library before compiling
	Prebuilt bool

	// Directory of the module being built; defaults to the working directory
	ManifestDir string

	// Per-build scratch directory for object files
	OutDir string

	// Root the shared cache lives under
	WorkspaceRoot string

	// Target as given (triple or GOOS/GOARCH) and its parsed form
	Target       string
	ParsedTarget utils.Target

	// Toolchain overrides
	CXX string
	AR  string

	// Never download the source archive
	Offline bool

	// Hold an advisory lock on the cache for the whole run
	LockCache bool

	// Link directive output
	Format     string
	CgoFile    string
	CgoPackage string

	// Enable verbose output
	Verbose bool
}

func Load() (*Config, error) {
	cfg := &Config{
		SourceDir:     viper.GetString("source_dir"),
		CheckoutDir:   viper.GetString("checkout_dir"),
		ForceRebuild:  viper.GetBool("force_rebuild"),
		Bundled:       viper.GetBool("bundled"),
		Prebuilt:      viper.GetBool("prebuilt"),
		ManifestDir:   viper.GetString("manifest_dir"),
		OutDir:        viper.GetString("out_dir"),
		WorkspaceRoot: viper.GetString("workspace_root"),
		Target:        viper.GetString("target"),
		CXX:           viper.GetString("cxx"),
		AR:            viper.GetString("ar"),
		Offline:       viper.GetBool("offline"),
		LockCache:     viper.GetBool("lock_cache"),
		Format:        viper.GetString("format"),
		CgoFile:       viper.GetString("cgo_file"),
		CgoPackage:    viper.GetString("cgo_package"),
		Verbose:       viper.GetBool("verbose"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate resolves defaults and paths and checks every field
func (c *Config) Validate() error {
	if c.ManifestDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		c.ManifestDir = cwd
	}

	var err error
	if c.ManifestDir, err = absPath(c.ManifestDir, "manifest directory"); err != nil {
		return err
	}

	if c.WorkspaceRoot == "" {
		c.WorkspaceRoot = FindWorkspaceRoot(c.ManifestDir)
	}
	if c.WorkspaceRoot, err = absPath(c.WorkspaceRoot, "workspace root"); err != nil {
		return err
	}

	target, err := resolveTarget(c.Target, c.CXX)
	if err != nil {
		return err
	}
	c.ParsedTarget = target

	if c.CheckoutDir == "" {
		c.CheckoutDir = filepath.Join(c.WorkspaceRoot, DefaultCheckoutDir)
	}

	if c.OutDir == "" {
		c.OutDir = filepath.Join(c.WorkspaceRoot, "target", "vxbuild", target.Key())
	}

	for _, p := range []struct {
		field *string
		what  string
	}{
		{&c.SourceDir, "source directory"},
		{&c.CheckoutDir, "checkout directory"},
		{&c.OutDir, "output directory"},
		{&c.CgoFile, "cgo file path"},
	} {
		if *p.field == "" {
			continue
		}

		if *p.field, err = absPath(*p.field, p.what); err != nil {
			return err
		}
	}

	if c.Format == "" {
		c.Format = DefaultFormat
	}

	if _, err := link.ParseFormat(c.Format); err != nil {
		return err
	}

	if c.CgoPackage == "" {
		c.CgoPackage = DefaultCgoPackage
	}

	return nil
}

func absPath(path, what string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid %s path: %v", what, err)
	}

	return abs, nil
}

// resolveTarget parses the configured target. Without one, the host is
// used, and a Windows host whose compiler is cl.exe is treated as MSVC.
func resolveTarget(target, cxx string) (utils.Target, error) {
	t, err := utils.ParseTarget(target)
	if err != nil {
		return utils.Target{}, err
	}

	if strings.TrimSpace(target) == "" && runtime.GOOS == utils.OSWindows && isMSVCCompiler(cxx) {
		t.Env = utils.EnvMSVC
	}

	return t, nil
}

func isMSVCCompiler(cxx string) bool {
	base := strings.ToLower(filepath.Base(cxx))
	return base == "cl.exe" || base == "cl"
}
