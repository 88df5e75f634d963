// Package pipeline runs a complete native build: obtain a library (cached,
// prebuilt or compiled from a located source tree) and emit the link
// directives for it.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oxur/verovioxide-sub000/internal/cache"
	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/compiler"
	"github.com/oxur/verovioxide-sub000/internal/config"
	"github.com/oxur/verovioxide-sub000/internal/diag"
	"github.com/oxur/verovioxide-sub000/internal/fetch"
	"github.com/oxur/verovioxide-sub000/internal/link"
	"github.com/oxur/verovioxide-sub000/internal/prebuilt"
	"github.com/oxur/verovioxide-sub000/internal/release"
	"github.com/oxur/verovioxide-sub000/internal/source"
)

// OriginCache and OriginPrebuilt complement the source kinds in Result.Origin
const (
	OriginCache    = "cache"
	OriginPrebuilt = "prebuilt"
)

// Downloader fetches remote content
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	FetchToFile(ctx context.Context, url, dest string) (int64, error)
}

// Builder compiles a source tree into a static library
type Builder interface {
	Compile(root, outDir string) (string, error)
	Compiler() string
}

// Result describes what a run produced
type Result struct {
	// LibDir is the directory the linker is pointed at
	LibDir string

	// Directives are the emitted link directives
	Directives []link.Directive

	// Origin is "cache", "prebuilt" or the source kind that was compiled
	Origin string

	// Skipped is set when bundled builds are disabled and nothing ran
	Skipped bool
}

// Pipeline orchestrates a single build
type Pipeline struct {
	cfg        *config.Config
	release    release.Pinned
	sink       diag.Sink
	downloader Downloader
	builder    Builder
	stdout     io.Writer

	prebuiltBaseURL string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSink sets where diagnostics go
func WithSink(s diag.Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithDownloader replaces the HTTP downloader
func WithDownloader(d Downloader) Option {
	return func(p *Pipeline) {
		p.downloader = d
	}
}

// WithBuilder replaces the native toolchain
func WithBuilder(b Builder) Option {
	return func(p *Pipeline) {
		p.builder = b
	}
}

// WithStdout sets where rendered link directives are written
func WithStdout(w io.Writer) Option {
	return func(p *Pipeline) {
		p.stdout = w
	}
}

// WithRelease overrides the pinned upstream release
func WithRelease(r release.Pinned) Option {
	return func(p *Pipeline) {
		p.release = r
	}
}

// WithPrebuiltBaseURL overrides where prebuilt libraries are downloaded from
func WithPrebuiltBaseURL(url string) Option {
	return func(p *Pipeline) {
		p.prebuiltBaseURL = url
	}
}

// New creates a pipeline for a validated configuration
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		release: release.Default(),
		sink:    diag.Discard,
		stdout:  os.Stdout,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.downloader == nil {
		p.downloader = fetch.New(p.sink)
	}

	if p.builder == nil {
		bc := compiler.NewBuildConfiguration(cfg.ParsedTarget)
		p.builder = compiler.NewInvoker(bc, cfg.CXX, cfg.AR, p.sink)
	}

	return p
}

// Cache returns the artifact cache the pipeline uses
func (p *Pipeline) Cache() *cache.Cache {
	return cache.New(cache.Dir(p.cfg.WorkspaceRoot), p.release.Version, p.cfg.ParsedTarget)
}

// Run executes the pipeline
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if err := p.release.Validate(); err != nil {
		return nil, codes.New(codes.ConfigFailure, err)
	}

	c := p.Cache()

	if p.cfg.LockCache {
		unlock, err := c.Lock(ctx)
		if err != nil {
			return nil, codes.New(codes.ConfigFailure, err)
		}
		defer func() {
			if err := unlock(); err != nil {
				p.sink.Warnf("Failed to release cache lock: %v", err)
			}
		}()
	}

	if p.cfg.Prebuilt {
		res, err := p.runPrebuilt(ctx, c)
		if err == nil {
			return res, p.emit(res)
		}

		if !p.cfg.Bundled {
			return nil, err
		}

		p.sink.Warnf("Prebuilt download failed, falling back to bundled compilation: %v", err)
	}

	if !p.cfg.Bundled {
		p.sink.Infof("Bundled build disabled; not building Verovio")
		return &Result{Skipped: true}, nil
	}

	fingerprint := compiler.NewBuildConfiguration(p.cfg.ParsedTarget).Fingerprint(p.builder.Compiler())

	if c.ShouldUse(p.cfg.ForceRebuild) {
		p.sink.Infof("Using cached Verovio library from %s", c.ArtifactDir())
		p.warnIfStale(c, fingerprint)

		res := &Result{LibDir: c.ArtifactDir(), Origin: OriginCache}
		return res, p.emit(res)
	}

	if p.cfg.ForceRebuild {
		p.sink.Infof("Forced rebuild requested; ignoring cached library")
	}

	origin, err := p.locator(c).Locate(ctx)
	if err != nil {
		return nil, err
	}

	lib, err := p.builder.Compile(origin.Path, p.cfg.OutDir)
	if err != nil {
		return nil, err
	}

	res := &Result{LibDir: filepath.Dir(lib), Origin: origin.Kind.String()}

	entry := cache.Entry{Fingerprint: fingerprint, Origin: origin.Kind.String()}
	if err := c.Store(lib, entry, p.cfg.ForceRebuild); err != nil {
		p.sink.Warnf("%v", codes.New(codes.CacheWriteFailure, err))
	} else {
		p.sink.Infof("Cached compiled library at %s", c.ArtifactPath())
		res.LibDir = c.ArtifactDir()
	}

	return res, p.emit(res)
}

func (p *Pipeline) runPrebuilt(ctx context.Context, c *cache.Cache) (*Result, error) {
	f := &prebuilt.Fetcher{
		CacheDir:   c.Root(),
		Version:    p.release.Version,
		BaseURL:    p.prebuiltBaseURL,
		Downloader: p.downloader,
		Sink:       p.sink,
	}

	lib, err := f.Fetch(ctx, p.cfg.ParsedTarget)
	if err != nil {
		return nil, err
	}

	if err := c.Store(lib, cache.Entry{Origin: OriginPrebuilt}, true); err != nil {
		return nil, codes.New(codes.PrebuiltFailure, fmt.Errorf("failed to install prebuilt library: %w", err))
	}

	return &Result{LibDir: c.ArtifactDir(), Origin: OriginPrebuilt}, nil
}

// warnIfStale compares the recorded configuration with the current one.
// A cached artifact is still trusted; the person running the build decides
// whether to rebuild.
func (p *Pipeline) warnIfStale(c *cache.Cache, fingerprint string) {
	entry, err := c.Get()
	if err != nil {
		p.sink.Debugf("Could not read cache metadata: %v", err)
		return
	}

	if entry.Stale(fingerprint) {
		p.sink.Warnf("Cached Verovio library was built with a different configuration; run with --force-rebuild to rebuild it")
	}
}

func (p *Pipeline) locator(c *cache.Cache) *source.Locator {
	return &source.Locator{
		Sink: p.sink,
		Strategies: []source.Strategy{
			&source.OverrideStrategy{Dir: p.cfg.SourceDir},
			&source.CheckoutStrategy{Dir: p.cfg.CheckoutDir},
			&source.CachedStrategy{Cache: c, Release: p.release},
			&source.DownloadStrategy{
				Cache:    c,
				Release:  p.release,
				Fetcher:  p.downloader,
				Sink:     p.sink,
				Disabled: p.cfg.Offline,
			},
		},
	}
}

// emit renders the link directives for res in the configured format
func (p *Pipeline) emit(res *Result) error {
	target := p.cfg.ParsedTarget
	res.Directives = link.Directives(target, res.LibDir)

	format, err := link.ParseFormat(p.cfg.Format)
	if err != nil {
		return codes.New(codes.ConfigFailure, err)
	}

	if format == link.FormatCgo && p.cfg.CgoFile != "" {
		written, err := link.WriteCgoFile(p.cfg.CgoFile, p.cfg.CgoPackage, target, res.Directives)
		if err != nil {
			return err
		}

		if written {
			p.sink.Infof("Wrote link directives to %s", p.cfg.CgoFile)
		}
		return nil
	}

	out, err := link.Render(format, p.cfg.CgoPackage, target, res.Directives)
	if err != nil {
		return codes.New(codes.ConfigFailure, err)
	}

	_, err = io.WriteString(p.stdout, out)
	return err
}
