// Package fetch downloads release archives over HTTPS.
//
// Failures are never retried: a transient network error surfaces to the
// person running the build, who decides whether to run it again.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/schollz/progressbar/v3"

	"github.com/oxur/verovioxide-sub000/internal/diag"
)

// TransportError is returned when the request could not be completed
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned for any non-2xx response
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error downloading %s: status %d", e.URL, e.Code)
}

// Downloader fetches remote blobs
type Downloader struct {
	client   *http.Client
	sink     diag.Sink
	progress io.Writer
}

// Option configures a Downloader
type Option func(*Downloader)

// WithClient sets a custom HTTP client
func WithClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.client = c
	}
}

// WithProgress renders a progress bar to w while downloading
func WithProgress(w io.Writer) Option {
	return func(d *Downloader) {
		d.progress = w
	}
}

// New creates a Downloader. Timeouts come from the underlying transport.
func New(sink diag.Sink, opts ...Option) *Downloader {
	if sink == nil {
		sink = diag.Discard
	}

	d := &Downloader{
		client: cleanhttp.DefaultClient(),
		sink:   sink,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Fetch downloads url into memory
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.fetch(ctx, url, &buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// FetchToFile downloads url into dest, creating parent directories. On
// failure the partially written file is removed.
func (d *Downloader) FetchToFile(ctx context.Context, url, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to write downloaded file: %w", err)
	}

	n, err := d.fetch(ctx, url, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write downloaded file: %w", cerr)
	}

	if err != nil {
		_ = os.Remove(dest)
		return 0, err
	}

	return n, nil
}

func (d *Downloader) fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	d.sink.Infof("Downloading %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &TransportError{URL: url, Err: err}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{URL: url, Code: resp.StatusCode}
	}

	if d.progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.progress),
			progressbar.OptionSetDescription("verovio"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Close()
		w = io.MultiWriter(w, bar)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return 0, &TransportError{URL: url, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	d.sink.Infof("Downloaded %s", humanize.Bytes(uint64(n)))
	return n, nil
}
