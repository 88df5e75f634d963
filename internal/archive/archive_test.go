package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type entry struct {
	name string
	body string
	dir  bool
}

func buildTar(t *testing.T, entries []entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			hdr = &tar.Header{Name: e.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())

	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func xzed(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(data)
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	return buf.Bytes()
}

var sourceTree = []entry{
	{name: "verovio-version-5.7.0/", dir: true},
	{name: "verovio-version-5.7.0/src/", dir: true},
	{name: "verovio-version-5.7.0/src/toolkit.cpp", body: "int main() {}"},
	{name: "verovio-version-5.7.0/include/vrv/vrv.h", body: "#pragma once"},
}

func TestExtract(t *testing.T) {
	tarball := buildTar(t, sourceTree)

	tests := []struct {
		name string
		data []byte
	}{
		{"gzip", gzipped(t, tarball)},
		{"xz", xzed(t, tarball)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := t.TempDir()
			require.NoError(t, Extract(bytes.NewReader(tt.data), dest))

			assert.DirExists(t, filepath.Join(dest, "verovio-version-5.7.0", "src"))

			data, err := os.ReadFile(filepath.Join(dest, "verovio-version-5.7.0", "include", "vrv", "vrv.h"))
			require.NoError(t, err)
			assert.Equal(t, "#pragma once", string(data))
		})
	}
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "verovio-5.7.0.tar.gz")
	require.NoError(t, os.WriteFile(archivePath, gzipped(t, buildTar(t, sourceTree)), 0o644))

	dest := filepath.Join(dir, "out")
	require.NoError(t, ExtractFile(archivePath, dest))
	assert.FileExists(t, filepath.Join(dest, "verovio-version-5.7.0", "src", "toolkit.cpp"))
}

func TestExtractFile_Missing(t *testing.T) {
	err := ExtractFile(filepath.Join(t.TempDir(), "nope.tar.gz"), t.TempDir())
	require.ErrorIs(t, err, ErrExtract)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		errContains string
	}{
		{
			name:        "not an archive",
			data:        []byte("<html>rate limited</html>"),
			errContains: "unsupported archive format",
		},
		{
			name:        "empty input",
			data:        nil,
			errContains: "unsupported archive format",
		},
		{
			name:        "truncated gzip",
			data:        gzipped(t, buildTar(t, sourceTree))[:20],
			errContains: "failed to extract archive",
		},
		{
			name:        "path traversal",
			data:        gzipped(t, buildTar(t, []entry{{name: "../escape.txt", body: "x"}})),
			errContains: "illegal path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Extract(bytes.NewReader(tt.data), t.TempDir())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExtract)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestSafeJoin(t *testing.T) {
	dest := t.TempDir()

	got, err := safeJoin(dest, "a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "a", "b", "c.txt"), got)

	_, err = safeJoin(dest, "a/../../b")
	assert.Error(t, err)
}
