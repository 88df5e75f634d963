package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLocalConfig(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "project")
	deep := filepath.Join(project, "bindings", "sys")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	yml := filepath.Join(project, ".vxbuild.yml")
	require.NoError(t, os.WriteFile(yml, []byte("offline: true"), 0o644))
	toml := filepath.Join(deep, ".vxbuild.toml")

	tests := []struct {
		name  string
		setup func(t *testing.T)
		dir   string
		want  string
	}{
		{name: "in directory", dir: project, want: yml},
		{name: "in ancestor", dir: deep, want: yml},
		{
			name: "nearest wins",
			setup: func(t *testing.T) {
				require.NoError(t, os.WriteFile(toml, []byte("offline = false"), 0o644))
				t.Cleanup(func() { _ = os.Remove(toml) })
			},
			dir:  deep,
			want: toml,
		},
		{name: "not found", dir: root, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup(t)
			}
			assert.Equal(t, tt.want, FindLocalConfig(tt.dir))
		})
	}
}

func TestFindLocalConfig_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".vxbuild.yml"), 0o755))
	assert.Equal(t, "", FindLocalConfig(dir))
}

func TestFindWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	module := filepath.Join(root, "bindings", "sys")
	require.NoError(t, os.MkdirAll(module, 0o755))

	// Without go.work the module directory is its own root
	assert.Equal(t, module, FindWorkspaceRoot(module))

	require.NoError(t, os.WriteFile(filepath.Join(root, "go.work"), []byte("go 1.25\n"), 0o644))
	assert.Equal(t, root, FindWorkspaceRoot(module))
	assert.Equal(t, root, FindWorkspaceRoot(root))

	// A directory named go.work does not count
	nested := filepath.Join(module, "inner")
	require.NoError(t, os.MkdirAll(filepath.Join(nested, "go.work"), 0o755))
	assert.Equal(t, root, FindWorkspaceRoot(nested))
}
