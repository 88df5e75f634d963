// Package source decides where the Verovio source tree comes from.
//
// Candidates are tried in a fixed order: an explicit override, a local
// checkout, a previously extracted download, and finally a fresh download.
// The first candidate containing the marker directory wins.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/oxur/verovioxide-sub000/internal/archive"
	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/diag"
	"github.com/oxur/verovioxide-sub000/internal/fetch"
	"github.com/oxur/verovioxide-sub000/internal/integrity"
	"github.com/oxur/verovioxide-sub000/internal/release"
)

// Kind records which strategy produced a source tree
type Kind int

// Source kinds in search order
const (
	ExplicitOverride Kind = iota + 1
	LocalCheckout
	CachedExtraction
	FreshDownload
)

func (k Kind) String() string {
	switch k {
	case ExplicitOverride:
		return "override"
	case LocalCheckout:
		return "checkout"
	case CachedExtraction:
		return "cached"
	case FreshDownload:
		return "download"
	default:
		return "unknown"
	}
}

// Origin is the resolved source tree and how it was found
type Origin struct {
	Kind Kind
	Path string
}

// Strategy is one candidate location. Locate returns (nil, nil) when the
// candidate is not available; any error stops the search.
type Strategy interface {
	Name() string
	Locate(ctx context.Context) (*Origin, error)
}

// ErrMiss records a candidate that was looked at and rejected
type ErrMiss struct {
	Strategy string
	Reason   string
}

func (e *ErrMiss) Error() string {
	return fmt.Sprintf("%s: %s", e.Strategy, e.Reason)
}

// Missable is implemented by strategies that can explain why they were skipped
type Missable interface {
	Miss() *ErrMiss
}

// Remediations are printed whenever no source tree can be found
var Remediations = []string{
	"Set VEROVIO_SOURCE_DIR to a Verovio source tree",
	"Run 'git submodule update --init' to fetch the bundled checkout",
	"Ensure network access so the release archive can be downloaded",
}

// Locator runs strategies in order
type Locator struct {
	Strategies []Strategy
	Sink       diag.Sink
}

// Locate returns the first source tree found
func (l *Locator) Locate(ctx context.Context) (*Origin, error) {
	sink := l.Sink
	if sink == nil {
		sink = diag.Discard
	}

	misses := &multierror.Error{ErrorFormat: formatMisses}
	for _, s := range l.Strategies {
		origin, err := s.Locate(ctx)
		if err != nil {
			return nil, withSearchDetails(err, misses.Errors)
		}

		if origin != nil {
			sink.Infof("Using Verovio source from %s (%s)", origin.Path, origin.Kind)
			return origin, nil
		}

		if m, ok := s.(Missable); ok && m.Miss() != nil {
			sink.Debugf("Source candidate skipped: %v", m.Miss())
			misses = multierror.Append(misses, m.Miss())
		} else {
			misses = multierror.Append(misses, &ErrMiss{Strategy: s.Name(), Reason: "not available"})
		}
	}

	return nil, codes.New(codes.SourceNotFound, misses.ErrorOrNil(), remediationLines()...)
}

// withSearchDetails appends the candidates already rejected and the
// remediations to a classified failure. Other errors are returned as is.
func withSearchDetails(err error, misses []error) error {
	var ce *codes.Error
	if !errors.As(err, &ce) {
		return err
	}

	details := append([]string{}, ce.Details...)
	if len(misses) > 0 {
		details = append(details, "Locations tried before this failure:")
		for _, m := range misses {
			details = append(details, "  - "+m.Error())
		}
	}
	details = append(details, remediationLines()...)

	return codes.New(ce.Kind, ce.Err, details...)
}

func formatMisses(errs []error) string {
	var b strings.Builder
	b.WriteString("no source tree found; tried:")
	for _, e := range errs {
		b.WriteString("\n  - ")
		b.WriteString(e.Error())
	}

	return b.String()
}

func remediationLines() []string {
	lines := []string{"To fix this, either:"}
	for i, r := range Remediations {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, r))
	}

	return lines
}

// IsSourceTree reports whether dir exists and contains the marker directory
func IsSourceTree(dir string) bool {
	if dir == "" {
		return false
	}

	info, err := os.Stat(filepath.Join(dir, release.MarkerSubpath))
	return err == nil && info.IsDir()
}

// OverrideStrategy accepts an explicitly configured directory. A configured
// directory without the marker is an error; the search does not continue.
type OverrideStrategy struct {
	Dir string
}

func (s *OverrideStrategy) Name() string { return "override" }

func (s *OverrideStrategy) Miss() *ErrMiss {
	return &ErrMiss{Strategy: s.Name(), Reason: "VEROVIO_SOURCE_DIR not set"}
}

func (s *OverrideStrategy) Locate(_ context.Context) (*Origin, error) {
	if s.Dir == "" {
		return nil, nil
	}

	if !IsSourceTree(s.Dir) {
		return nil, codes.New(codes.InvalidOverride,
			fmt.Errorf("%s does not contain a Verovio source tree (missing %s/)", s.Dir, release.MarkerSubpath),
			"Unset VEROVIO_SOURCE_DIR or point it at the root of a Verovio checkout")
	}

	return &Origin{Kind: ExplicitOverride, Path: s.Dir}, nil
}

// CheckoutStrategy accepts a checkout at a fixed path, usually a git
// submodule next to the workspace root. The path is canonicalised.
type CheckoutStrategy struct {
	Dir string
}

func (s *CheckoutStrategy) Name() string { return "checkout" }

func (s *CheckoutStrategy) Miss() *ErrMiss {
	return &ErrMiss{Strategy: s.Name(), Reason: fmt.Sprintf("%s has no %s/ directory", s.Dir, release.MarkerSubpath)}
}

func (s *CheckoutStrategy) Locate(_ context.Context) (*Origin, error) {
	if !IsSourceTree(s.Dir) {
		return nil, nil
	}

	path, err := canonical(s.Dir)
	if err != nil {
		return nil, nil
	}

	return &Origin{Kind: LocalCheckout, Path: path}, nil
}

func canonical(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	return filepath.EvalSymlinks(abs)
}

// SourceCache is the part of the artifact cache the locator needs
type SourceCache interface {
	SourceDir() string
}

// CachedStrategy accepts a tree extracted by an earlier download
type CachedStrategy struct {
	Cache   SourceCache
	Release release.Pinned
}

func (s *CachedStrategy) Name() string { return "cached" }

func (s *CachedStrategy) dir() string {
	return filepath.Join(s.Cache.SourceDir(), s.Release.ExtractedDirName())
}

func (s *CachedStrategy) Miss() *ErrMiss {
	return &ErrMiss{Strategy: s.Name(), Reason: fmt.Sprintf("%s not present", s.dir())}
}

func (s *CachedStrategy) Locate(_ context.Context) (*Origin, error) {
	dir := s.dir()
	if !IsSourceTree(dir) {
		return nil, nil
	}

	return &Origin{Kind: CachedExtraction, Path: dir}, nil
}

// Fetcher downloads a URL into a file
type Fetcher interface {
	FetchToFile(ctx context.Context, url, dest string) (int64, error)
}

// DownloadStrategy downloads, verifies and extracts the pinned release
type DownloadStrategy struct {
	Cache   SourceCache
	Release release.Pinned
	Fetcher Fetcher
	Sink    diag.Sink

	// Disabled turns the strategy into a permanent miss
	Disabled bool
}

func (s *DownloadStrategy) Name() string { return "download" }

func (s *DownloadStrategy) Miss() *ErrMiss {
	if s.Disabled {
		return &ErrMiss{Strategy: s.Name(), Reason: "downloads disabled (offline)"}
	}

	return &ErrMiss{Strategy: s.Name(), Reason: "not attempted"}
}

func (s *DownloadStrategy) Locate(ctx context.Context) (*Origin, error) {
	if s.Disabled {
		return nil, nil
	}

	sink := s.Sink
	if sink == nil {
		sink = diag.Discard
	}

	sourceDir := s.Cache.SourceDir()
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		return nil, codes.New(codes.ExtractionFailure, fmt.Errorf("failed to create source cache directory: %w", err))
	}

	archivePath := filepath.Join(sourceDir, s.Release.ArchiveName())
	url := s.Release.URL()

	sink.Infof("Verovio source not found locally; downloading version %s", s.Release.Version)
	if _, err := s.Fetcher.FetchToFile(ctx, url, archivePath); err != nil {
		_ = os.Remove(archivePath)
		return nil, classifyFetchError(err)
	}

	if err := verifyArchive(archivePath, s.Release); err != nil {
		return nil, err
	}
	sink.Infof("SHA256 verified: %s", s.Release.Expected())

	dir, err := s.install(archivePath, sourceDir)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		sink.Warnf("Failed to remove downloaded archive %s: %v", archivePath, removeErr)
	}
	if err != nil {
		return nil, err
	}

	return &Origin{Kind: FreshDownload, Path: dir}, nil
}

// install extracts the archive into a scratch directory next to the final
// location and renames the release tree into place once it has the marker.
// An interrupted or failed extraction never leaves a tree under the final name.
func (s *DownloadStrategy) install(archivePath, sourceDir string) (string, error) {
	tmp, err := os.MkdirTemp(sourceDir, ".extract-*")
	if err != nil {
		return "", codes.New(codes.ExtractionFailure, fmt.Errorf("failed to create extraction directory: %w", err))
	}
	defer os.RemoveAll(tmp)

	if err := extractArchive(archivePath, tmp); err != nil {
		return "", err
	}

	staged := filepath.Join(tmp, s.Release.ExtractedDirName())
	if !IsSourceTree(staged) {
		return "", codes.New(codes.ExtractionFailure,
			fmt.Errorf("extracted archive has no %s/%s/ directory", s.Release.ExtractedDirName(), release.MarkerSubpath))
	}

	dir := filepath.Join(sourceDir, s.Release.ExtractedDirName())
	if err := os.RemoveAll(dir); err != nil {
		return "", codes.New(codes.ExtractionFailure, fmt.Errorf("failed to remove incomplete source tree: %w", err))
	}

	if err := os.Rename(staged, dir); err != nil {
		return "", codes.New(codes.ExtractionFailure, fmt.Errorf("failed to move extracted source into place: %w", err))
	}

	return dir, nil
}

// classifyFetchError maps downloader errors onto failure kinds
func classifyFetchError(err error) error {
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		return codes.New(codes.HttpStatusFailure, err)
	}

	return codes.New(codes.TransportFailure, err)
}

// verifyArchive checks the downloaded archive against the pinned hash. A
// mismatching file is deleted before the error is returned.
func verifyArchive(path string, pinned release.Pinned) error {
	outcome, err := integrity.VerifyFile(path, pinned.Expected())
	if err != nil {
		_ = os.Remove(path)
		return codes.New(codes.TransportFailure, fmt.Errorf("failed to read downloaded archive: %w", err))
	}

	if outcome.Match {
		return nil
	}

	_ = os.Remove(path)
	return codes.New(codes.IntegrityMismatch,
		fmt.Errorf("downloaded archive for Verovio %s does not match the pinned hash", pinned.Version),
		"  Expected: "+pinned.Expected(),
		"  Actual:   "+outcome.Actual,
		"This could indicate a corrupted download or a changed upstream release.",
		"If the upstream release was legitimately updated, recompute the hash with:",
		"  "+pinned.HashCommand(),
	)
}

func extractArchive(path, dest string) error {
	if err := archive.ExtractFile(path, dest); err != nil {
		return codes.New(codes.ExtractionFailure, err)
	}

	return nil
}
