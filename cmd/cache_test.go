package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxur/verovioxide-sub000/internal/cache"
	"github.com/oxur/verovioxide-sub000/internal/release"
	"github.com/oxur/verovioxide-sub000/internal/utils"
)

func seedCache(t *testing.T, ws string) *cache.Cache {
	t.Helper()
	target, err := utils.ParseTarget("linux/amd64")
	require.NoError(t, err)

	c := cache.New(cache.Dir(ws), release.Version, target)
	lib := filepath.Join(t.TempDir(), "libverovio.a")
	require.NoError(t, os.WriteFile(lib, make([]byte, 2048), 0o644))
	require.NoError(t, c.Store(lib, cache.Entry{Origin: "download"}, false))

	require.NoError(t, os.MkdirAll(filepath.Join(c.SourceDir(), "verovio-version-"+release.Version, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(c.SourceDir(), "verovio-version-"+release.Version, "src", "vrv.cpp"), make([]byte, 1000), 0o644))
	return c
}

func TestCacheStats(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		ws := t.TempDir()

		stdout, _, err := execute(t, "cache", "stats", "--manifest-dir", ws)
		require.NoError(t, err)
		assert.Contains(t, stdout, cache.Dir(ws))
		assert.Contains(t, stdout, "Entries:         0")
	})

	t.Run("populated", func(t *testing.T) {
		ws := t.TempDir()
		seedCache(t, ws)

		stdout, _, err := execute(t, "cache", "stats", "--manifest-dir", ws, "--target", "linux/amd64")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Entries:         1")
		assert.Contains(t, stdout, "Libraries:       2.0 kB")
		assert.Contains(t, stdout, "Sources:         1.0 kB")
		assert.Contains(t, stdout, release.Version+" linux-amd64-gnu (download, 2.0 kB")
	})
}

func TestCacheClear(t *testing.T) {
	ws := t.TempDir()
	c := seedCache(t, ws)

	stdout, _, err := execute(t, "cache", "clear", "--manifest-dir", ws, "--target", "linux/amd64")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cleared")
	assert.NoFileExists(t, c.ArtifactPath())
	assert.NoDirExists(t, c.SourceDir())
	assert.False(t, c.ShouldUse(false))
}
