// Package archive unpacks compressed tarballs.
//
// Decompression and unpacking happen in a single streaming pass; the
// uncompressed tar stream is never materialised. Callers verify integrity
// before extracting.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// ErrExtract wraps every extraction failure
var ErrExtract = errors.New("failed to extract archive")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// ExtractFile extracts the archive at path into dest
func ExtractFile(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: failed to open archive: %v", ErrExtract, err)
	}
	defer f.Close()

	return Extract(f, dest)
}

// Extract decompresses r (gzip or xz, detected from magic bytes) and
// unpacks the tar stream into dest
func Extract(r io.Reader, dest string) error {
	br := bufio.NewReader(r)
	dr, err := decompressor(br)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtract, err)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create destination: %v", ErrExtract, err)
	}

	if err := untar(dr, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrExtract, err)
	}

	return nil
}

func decompressor(br *bufio.Reader) (io.Reader, error) {
	head, err := br.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read archive header: %v", err)
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip stream: %v", err)
		}
		return zr, nil
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("invalid xz stream: %v", err)
		}
		return xr, nil
	default:
		return nil, fmt.Errorf("unsupported archive format")
	}
}

func untar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading tar: %v", err)
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create dir %s: %v", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return fmt.Errorf("refusing absolute symlink %s -> %s", hdr.Name, hdr.Linkname)
			}
			if _, err := safeJoin(dest, filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create parent dir: %v", err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return fmt.Errorf("failed to create symlink %s -> %s: %v", target, hdr.Linkname, err)
			}
		default:
			// pax headers, hard links and devices are not needed for a source tree
		}
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent dir: %v", err)
	}

	if perm == 0 {
		perm = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %v", target, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file %s: %v", target, err)
	}

	return out.Close()
}

// safeJoin joins name onto dest and rejects entries that would land outside it
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal path in archive: %s", name)
	}

	return target, nil
}
