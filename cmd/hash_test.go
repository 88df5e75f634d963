package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/release"
)

func TestHash_PrintsPinnedRelease(t *testing.T) {
	stdout, _, err := execute(t, "hash")
	require.NoError(t, err)

	r := release.Default()
	assert.Contains(t, stdout, "Version: "+r.Version)
	assert.Contains(t, stdout, r.URL())
	assert.Contains(t, stdout, r.Expected())
	assert.Contains(t, stdout, "shasum -a 256")
}

func TestHash_Mismatch(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "verovio.tar.gz")
	require.NoError(t, os.WriteFile(archive, []byte("not the release"), 0o644))

	_, _, err := execute(t, "hash", archive)
	require.Error(t, err)
	assert.True(t, codes.IsKind(err, codes.IntegrityMismatch))
	assert.Equal(t, 14, codes.ExitCodeOf(err))
	assert.Contains(t, err.Error(), "Expected: "+release.TarballSHA256)
}

func TestHash_MissingFile(t *testing.T) {
	_, _, err := execute(t, "hash", filepath.Join(t.TempDir(), "missing.tar.gz"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to hash")
}
