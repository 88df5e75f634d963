// Package cache keeps compiled Verovio libraries between builds.
//
// The cache lives under the workspace target directory so that a clean of
// the per-build output directory does not force a multi-minute C++ rebuild:
//
//	<root>/cache.db                               metadata (BoltDB)
//	<root>/<version>/<os>-<arch>-<env>/<library>  compiled artifact
//	<root>/verovio-source/                        downloaded source trees
//
// Artifacts are trusted on presence. Nothing is created until something is
// stored, and every read checks for existence first.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.etcd.io/bbolt"

	"github.com/oxur/verovioxide-sub000/internal/release"
	"github.com/oxur/verovioxide-sub000/internal/utils"
)

const (
	// DirName is the cache directory name below the workspace target directory
	DirName = "verovio-cache"

	// SourceDirName holds downloaded and extracted source trees
	SourceDirName = "verovio-source"

	dbName     = "cache.db"
	lockName   = ".lock"
	bucketName = "artifacts"
)

// Dir returns the cache root for a workspace
func Dir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, "target", DirName)
}

// Cache manages compiled artifacts for one pinned version and target
type Cache struct {
	root    string
	version string
	target  utils.Target
}

// New creates a cache handle. No directories are created.
func New(root, version string, target utils.Target) *Cache {
	return &Cache{
		root:    root,
		version: version,
		target:  target,
	}
}

// Root returns the cache root directory
func (c *Cache) Root() string {
	return c.root
}

// SourceDir returns the directory downloads are extracted into
func (c *Cache) SourceDir() string {
	return filepath.Join(c.root, SourceDirName)
}

// ArtifactDir returns the directory holding the artifact for this version and target
func (c *Cache) ArtifactDir() string {
	return filepath.Join(c.root, c.version, c.target.Key())
}

// ArtifactPath returns where the compiled library is kept
func (c *Cache) ArtifactPath() string {
	return filepath.Join(c.ArtifactDir(), c.target.LibFileName(release.LibName))
}

// ShouldUse reports whether the cached artifact can be used instead of
// compiling. It never creates anything.
func (c *Cache) ShouldUse(force bool) bool {
	if force {
		return false
	}

	info, err := os.Stat(c.ArtifactPath())
	return err == nil && info.Mode().IsRegular()
}

// Store copies a freshly compiled library into the cache and records its
// metadata. An artifact already present is kept unless overwrite is set.
func (c *Cache) Store(compiledPath string, entry Entry, overwrite bool) error {
	dst := c.ArtifactPath()

	if overwrite || !c.ShouldUse(false) {
		if err := copyAtomic(compiledPath, dst); err != nil {
			return fmt.Errorf("failed to copy artifact into cache: %w", err)
		}
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("failed to stat cached artifact: %w", err)
	}

	sum, err := checksum(dst)
	if err != nil {
		return err
	}

	entry.Version = c.version
	entry.Target = c.target.Key()
	entry.Path = dst
	entry.Size = info.Size()
	entry.SHA256 = sum
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	return c.update(func(b *bbolt.Bucket) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put(entryKey(c.version, c.target), data)
	})
}

// Get returns the metadata recorded for this version and target, or nil if
// nothing was recorded
func (c *Cache) Get() (*Entry, error) {
	var entry *Entry
	err := c.view(func(b *bbolt.Bucket) error {
		data := b.Get(entryKey(c.version, c.target))
		if data == nil {
			return nil
		}

		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// List returns every recorded entry, across versions and targets
func (c *Cache) List() ([]Entry, error) {
	var entries []Entry
	err := c.view(func(b *bbolt.Bucket) error {
		return b.ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}

			entries = append(entries, e)
			return nil
		})
	})

	return entries, err
}

// Stats summarises the cache contents
type Stats struct {
	Entries       int
	ArtifactBytes int64
	SourceBytes   int64
}

// Stats returns cache statistics
func (c *Cache) Stats() (Stats, error) {
	var stats Stats

	err := c.view(func(b *bbolt.Bucket) error {
		stats.Entries = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	sourceDir := c.SourceDir()
	_ = filepath.Walk(c.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if info.IsDir() || info.Name() == dbName || info.Name() == lockName {
			return nil
		}

		if rel, err := filepath.Rel(sourceDir, path); err == nil && filepath.IsLocal(rel) {
			stats.SourceBytes += info.Size()
		} else {
			stats.ArtifactBytes += info.Size()
		}

		return nil
	})

	return stats, nil
}

// Clear removes every artifact, source tree and metadata record
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, e := range entries {
		if e.Name() == lockName {
			continue
		}

		if err := os.RemoveAll(filepath.Join(c.root, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}

	return nil
}

// Lock takes an advisory lock on the cache root, waiting until ctx is done
func (c *Cache) Lock(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	fl := flock.New(filepath.Join(c.root, lockName))
	ok, err := fl.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cache: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("failed to lock cache: %s is held by another build", fl.Path())
	}

	return fl.Unlock, nil
}

func (c *Cache) dbPath() string {
	return filepath.Join(c.root, dbName)
}

func (c *Cache) update(fn func(b *bbolt.Bucket) error) error {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(c.dbPath(), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}

		return fn(b)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// view runs fn against the metadata bucket. fn is not called when the
// database or bucket does not exist yet.
func (c *Cache) view(fn func(b *bbolt.Bucket) error) error {
	if _, err := os.Stat(c.dbPath()); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	db, err := bbolt.Open(c.dbPath(), 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer db.Close()

	return db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return fn(b)
	})
}
