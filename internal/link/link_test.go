package link

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxur/verovioxide-sub000/internal/utils"
)

func TestDirectives(t *testing.T) {
	tests := []struct {
		name    string
		target  utils.Target
		runtime string
	}{
		{"macos", utils.Target{OS: utils.OSDarwin, Env: utils.EnvGNU}, "c++"},
		{"linux", utils.Target{OS: utils.OSLinux, Env: utils.EnvGNU}, "stdc++"},
		{"windows gnu", utils.Target{OS: utils.OSWindows, Env: utils.EnvGNU}, "stdc++"},
		{"windows msvc", utils.Target{OS: utils.OSWindows, Env: utils.EnvMSVC}, ""},
		{"unknown os", utils.Target{OS: "freebsd", Env: utils.EnvGNU}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := Directives(tt.target, "/cache/5.7.0/x")

			want := []Directive{
				{Kind: SearchPath, Value: "/cache/5.7.0/x"},
				{Kind: StaticLib, Value: "verovio"},
			}
			if tt.runtime != "" {
				want = append(want, Directive{Kind: DynamicLib, Value: tt.runtime})
			}

			assert.Equal(t, want, ds)
			assert.Equal(t, tt.runtime, RuntimeLib(tt.target))
		})
	}
}

func TestLines(t *testing.T) {
	ds := Directives(utils.Target{OS: utils.OSLinux, Env: utils.EnvGNU}, "/c")
	assert.Equal(t, "link-search=native=/c\nlink-lib=static=verovio\nlink-lib=stdc++\n", Lines(ds))
}

func TestLDFlags(t *testing.T) {
	linux := utils.Target{OS: utils.OSLinux, Env: utils.EnvGNU}
	assert.Equal(t, "-L/c -lverovio -lstdc++", LDFlags(linux, Directives(linux, "/c")))

	msvc := utils.Target{OS: utils.OSWindows, Env: utils.EnvMSVC}
	assert.Equal(t, `/LIBPATH:C:\c verovio.lib`, LDFlags(msvc, Directives(msvc, `C:\c`)))
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseFormat("json")
	assert.ErrorContains(t, err, "unknown link format")
}

func TestRender(t *testing.T) {
	darwin := utils.Target{OS: utils.OSDarwin, Env: utils.EnvGNU}
	ds := Directives(darwin, "/c")

	out, err := Render(FormatLDFlags, "", darwin, ds)
	require.NoError(t, err)
	assert.Equal(t, "-L/c -lverovio -lc++\n", out)

	out, err = Render(FormatCgo, "verovio", darwin, ds)
	require.NoError(t, err)
	assert.Contains(t, out, "package verovio")
	assert.Contains(t, out, "// #cgo LDFLAGS: -L/c -lverovio -lc++")
	assert.Contains(t, out, `import "C"`)

	_, err = Render(FormatCgo, "", darwin, ds)
	assert.Error(t, err)

	_, err = Render(Format("xml"), "", darwin, ds)
	assert.Error(t, err)
}

func TestWriteCgoFile(t *testing.T) {
	linux := utils.Target{OS: utils.OSLinux, Env: utils.EnvGNU}
	path := filepath.Join(t.TempDir(), "sys", "link_generated.go")

	written, err := WriteCgoFile(path, "sys", linux, Directives(linux, "/c"))
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "// Code generated by vxbuild; DO NOT EDIT.")
	assert.Contains(t, string(data), "#cgo LDFLAGS: -L/c -lverovio -lstdc++")

	written, err = WriteCgoFile(path, "sys", linux, Directives(linux, "/c"))
	require.NoError(t, err)
	assert.False(t, written, "unchanged content is not rewritten")

	written, err = WriteCgoFile(path, "sys", linux, Directives(linux, "/other"))
	require.NoError(t, err)
	assert.True(t, written)
}
