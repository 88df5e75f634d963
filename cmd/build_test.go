package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxur/verovioxide-sub000/internal/cache"
	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/release"
	"github.com/oxur/verovioxide-sub000/internal/utils"
)

// execute runs the root command with args, returning stdout and stderr
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag of cmd and its children to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)

	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestRunBuild_BundledDisabled(t *testing.T) {
	ws := t.TempDir()

	stdout, _, err := execute(t, "build", "--manifest-dir", ws, "--bundled=false")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.NoDirExists(t, cache.Dir(ws))
}

func TestRunBuild_InvalidOverride(t *testing.T) {
	ws := t.TempDir()
	missing := filepath.Join(ws, "nowhere")

	_, _, err := execute(t, "--manifest-dir", ws, "--source-dir", missing, "--offline")
	require.Error(t, err)
	assert.True(t, codes.IsKind(err, codes.InvalidOverride))
	assert.Equal(t, 11, codes.ExitCodeOf(err))
	assert.Contains(t, err.Error(), missing)
}

func TestRunBuild_SourceNotFoundOffline(t *testing.T) {
	ws := t.TempDir()

	_, _, err := execute(t, "build", "--manifest-dir", ws, "--offline")
	require.Error(t, err)
	assert.True(t, codes.IsKind(err, codes.SourceNotFound))
	assert.Contains(t, err.Error(), "VEROVIO_SOURCE_DIR")
}

func TestRunBuild_UsesCachedLibrary(t *testing.T) {
	ws := t.TempDir()

	target, err := utils.ParseTarget("linux/amd64")
	require.NoError(t, err)

	c := cache.New(cache.Dir(ws), release.Version, target)
	lib := filepath.Join(t.TempDir(), "libverovio.a")
	require.NoError(t, os.WriteFile(lib, []byte("archive"), 0o644))
	require.NoError(t, c.Store(lib, cache.Entry{Origin: "checkout"}, false))

	stdout, stderr, err := execute(t, "build", "--manifest-dir", ws, "--target", "linux/amd64", "--offline")
	require.NoError(t, err)
	assert.Contains(t, stdout, "link-search=native="+c.ArtifactDir())
	assert.Contains(t, stdout, "link-lib=static=verovio")
	assert.Contains(t, stderr, "Using cached Verovio library")
}

func TestRunBuild_InvalidFormat(t *testing.T) {
	_, _, err := execute(t, "build", "--manifest-dir", t.TempDir(), "--format", "xml")
	require.Error(t, err)
	assert.True(t, codes.IsKind(err, codes.ConfigFailure))
	assert.Equal(t, 19, codes.ExitCodeOf(err))
}

func TestRunBuild_RejectsArguments(t *testing.T) {
	_, _, err := execute(t, "build", "extra")
	assert.Error(t, err)
}
