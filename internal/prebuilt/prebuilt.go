// Package prebuilt fetches a precompiled Verovio library published with a
// release of the bindings, avoiding the C++ build entirely.
//
// Every release carries a hashes.json manifest mapping target triples to
// the SHA-256 of the library built for them. The manifest is cached next to
// the compiled artifacts; libraries are verified against it on every use.
package prebuilt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/diag"
	"github.com/oxur/verovioxide-sub000/internal/integrity"
	"github.com/oxur/verovioxide-sub000/internal/utils"
)

const (
	// WrapperVersion is the bindings release prebuilt libraries are taken from
	WrapperVersion = "0.1.0"

	// DefaultBaseURL is the release download location; %s is the wrapper version
	DefaultBaseURL = "https://github.com/oxur/verovioxide/releases/download/v%s"

	manifestName = "hashes.json"
	dirName      = "prebuilt"
)

// SupportedTargets lists the triples prebuilt libraries are published for
var SupportedTargets = []string{
	"x86_64-apple-darwin",
	"aarch64-apple-darwin",
	"x86_64-unknown-linux-gnu",
	"aarch64-unknown-linux-gnu",
	"x86_64-pc-windows-msvc",
}

// Supported reports whether a prebuilt library exists for target
func Supported(target utils.Target) bool {
	return slices.Contains(SupportedTargets, target.Triple())
}

// Downloader fetches remote content
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	FetchToFile(ctx context.Context, url, dest string) (int64, error)
}

// Fetcher resolves, downloads and verifies prebuilt libraries
type Fetcher struct {
	// CacheDir is the artifact cache root
	CacheDir string

	// Version is the pinned Verovio version the library was built from
	Version string

	// WrapperVersion selects the bindings release; empty uses WrapperVersion
	WrapperVersion string

	// BaseURL overrides DefaultBaseURL, mainly for tests
	BaseURL string

	Downloader Downloader
	Sink       diag.Sink
}

func (f *Fetcher) wrapperVersion() string {
	if f.WrapperVersion != "" {
		return f.WrapperVersion
	}

	return WrapperVersion
}

func (f *Fetcher) sink() diag.Sink {
	if f.Sink == nil {
		return diag.Discard
	}

	return f.Sink
}

// ReleaseURL returns the base URL of the bindings release
func (f *Fetcher) ReleaseURL() string {
	if f.BaseURL != "" {
		return strings.TrimSuffix(f.BaseURL, "/")
	}

	return fmt.Sprintf(DefaultBaseURL, f.wrapperVersion())
}

// LibName returns the published file name of the library for target
func (f *Fetcher) LibName(target utils.Target) string {
	if target.IsMSVC() {
		return fmt.Sprintf("verovio-%s-%s.lib", f.Version, target.Triple())
	}

	return fmt.Sprintf("libverovio-%s-%s.a", f.Version, target.Triple())
}

// ManifestPath is where the hash manifest is cached
func (f *Fetcher) ManifestPath() string {
	return filepath.Join(f.CacheDir, fmt.Sprintf("hashes-v%s.json", f.wrapperVersion()))
}

// LibPath is where the downloaded library is kept
func (f *Fetcher) LibPath(target utils.Target) string {
	return filepath.Join(f.CacheDir, dirName, f.LibName(target))
}

// ExpectedHash returns the published hash of the library for target. The
// manifest is downloaded once and then read from the cache.
func (f *Fetcher) ExpectedHash(ctx context.Context, target utils.Target) (string, error) {
	manifest, err := f.manifest(ctx)
	if err != nil {
		return "", err
	}

	hash, ok := manifest[target.Triple()]
	if !ok || hash == "" {
		return "", fmt.Errorf("no prebuilt library available for target %q; supported targets: %s",
			target.Triple(), strings.Join(SupportedTargets, ", "))
	}

	return strings.ToLower(hash), nil
}

func (f *Fetcher) manifest(ctx context.Context) (map[string]string, error) {
	path := f.ManifestPath()

	if data, err := os.ReadFile(path); err == nil {
		m, err := parseManifest(data)
		if err == nil {
			return m, nil
		}
		f.sink().Warnf("Ignoring unreadable hash manifest %s: %v", path, err)
	}

	url := f.ReleaseURL() + "/" + manifestName
	f.sink().Infof("Downloading hash manifest from: %s", url)

	data, err := f.Downloader.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download hash manifest (prebuilt binaries may not be released for v%s): %w",
			f.wrapperVersion(), err)
	}

	m, err := parseManifest(data)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			f.sink().Warnf("Failed to cache hash manifest: %v", err)
		}
	}

	return m, nil
}

func parseManifest(data []byte) (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid hash manifest: %w", err)
	}

	return m, nil
}

// Fetch returns the path of a verified prebuilt library for target,
// reusing a previously downloaded copy when its hash still matches
func (f *Fetcher) Fetch(ctx context.Context, target utils.Target) (string, error) {
	lib, err := f.fetch(ctx, target)
	if err != nil {
		return "", codes.New(codes.PrebuiltFailure, err)
	}

	return lib, nil
}

func (f *Fetcher) fetch(ctx context.Context, target utils.Target) (string, error) {
	if !Supported(target) {
		return "", fmt.Errorf("target %q is not supported for prebuilt binaries; supported targets: %s",
			target.Triple(), strings.Join(SupportedTargets, ", "))
	}

	expected, err := f.ExpectedHash(ctx, target)
	if err != nil {
		return "", err
	}

	lib := f.LibPath(target)
	if _, err := os.Stat(lib); err == nil {
		outcome, err := integrity.VerifyFile(lib, expected)
		if err == nil && outcome.Match {
			f.sink().Infof("Using cached prebuilt library: %s", lib)
			return lib, nil
		}

		_ = os.Remove(lib)
	}

	url := f.ReleaseURL() + "/" + f.LibName(target)
	f.sink().Infof("Downloading prebuilt Verovio library from: %s", url)

	if _, err := f.Downloader.FetchToFile(ctx, url, lib); err != nil {
		return "", err
	}

	outcome, err := integrity.VerifyFile(lib, expected)
	if err != nil {
		_ = os.Remove(lib)
		return "", fmt.Errorf("failed to verify prebuilt library: %w", err)
	}

	if outcome.Mismatch() {
		_ = os.Remove(lib)
		return "", errors.New(strings.Join([]string{
			"SHA256 hash mismatch for prebuilt library",
			"  Expected: " + expected,
			"  Actual:   " + outcome.Actual,
			"The prebuilt binary may be corrupted or tampered with.",
		}, "\n"))
	}

	f.sink().Infof("Prebuilt library verified successfully")
	return lib, nil
}
