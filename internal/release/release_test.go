package release

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.NoError(t, p.Validate())
	assert.Equal(t, "https://github.com/rism-digital/verovio/archive/refs/tags/version-5.7.0.tar.gz", p.URL())
	assert.Equal(t, "verovio-5.7.0.tar.gz", p.ArchiveName())
	assert.Equal(t, "verovio-version-5.7.0", p.ExtractedDirName())
	assert.Equal(t, "curl -sL "+p.URL()+" | shasum -a 256", p.HashCommand())
}

func TestPinned_Validate(t *testing.T) {
	tests := []struct {
		name        string
		pinned      Pinned
		errContains string
	}{
		{
			name:   "valid",
			pinned: Pinned{Version: "1.2.3", SHA256: strings.Repeat("a", 64)},
		},
		{
			name:        "not semver",
			pinned:      Pinned{Version: "latest", SHA256: strings.Repeat("a", 64)},
			errContains: "invalid pinned version",
		},
		{
			name:        "short hash",
			pinned:      Pinned{Version: "1.2.3", SHA256: "abc"},
			errContains: "want 64 hex characters",
		},
		{
			name:        "non hex hash",
			pinned:      Pinned{Version: "1.2.3", SHA256: strings.Repeat("z", 64)},
			errContains: "invalid pinned hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pinned.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}

			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}

func TestPinned_Expected(t *testing.T) {
	p := Pinned{Version: "1.0.0", SHA256: "ABCDEF"}
	assert.Equal(t, "abcdef", p.Expected())
}
