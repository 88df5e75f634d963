// Package release pins the upstream Verovio release the pipeline builds.
//
// Version and TarballSHA256 must always change together. To compute the
// hash for a new version run the command returned by Pinned.HashCommand.
package release

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	// Version of Verovio downloaded from GitHub
	Version = "5.7.0"

	// TarballSHA256 is the expected SHA-256 of the release tarball for Version
	TarballSHA256 = "bf7483504ddbf2d7ff59ae53b547e6347f89f82583559bf264d97b3624279d5e"

	// LibName is the logical link name of the compiled library
	LibName = "verovio"

	// MarkerSubpath must exist in any directory accepted as a source tree
	MarkerSubpath = "src"

	urlTemplate = "https://github.com/rism-digital/verovio/archive/refs/tags/version-%s.tar.gz"
)

// Pinned is an upstream version together with the hash of its source archive
type Pinned struct {
	Version string
	SHA256  string
}

// Default returns the release compiled into this binary
func Default() Pinned {
	return Pinned{Version: Version, SHA256: TarballSHA256}
}

// Validate checks that the version is a semantic version and the hash is a
// hex-encoded SHA-256 digest
func (p Pinned) Validate() error {
	if _, err := semver.StrictNewVersion(p.Version); err != nil {
		return fmt.Errorf("invalid pinned version %q: %w", p.Version, err)
	}

	if len(p.SHA256) != 64 {
		return fmt.Errorf("invalid pinned hash for %s: want 64 hex characters, got %d", p.Version, len(p.SHA256))
	}

	if _, err := hex.DecodeString(p.SHA256); err != nil {
		return fmt.Errorf("invalid pinned hash for %s: %w", p.Version, err)
	}

	return nil
}

// URL of the release source archive
func (p Pinned) URL() string {
	return fmt.Sprintf(urlTemplate, p.Version)
}

// ArchiveName is the file name the downloaded archive is stored under
func (p Pinned) ArchiveName() string {
	return fmt.Sprintf("verovio-%s.tar.gz", p.Version)
}

// ExtractedDirName is the top-level directory inside the release archive
func (p Pinned) ExtractedDirName() string {
	return fmt.Sprintf("verovio-version-%s", p.Version)
}

// HashCommand returns a shell command that recomputes the archive hash
func (p Pinned) HashCommand() string {
	return fmt.Sprintf("curl -sL %s | shasum -a 256", p.URL())
}

// Expected returns the pinned hash normalised to lower case
func (p Pinned) Expected() string {
	return strings.ToLower(p.SHA256)
}
