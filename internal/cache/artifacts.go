package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// copyAtomic copies src to dst through a temporary file in dst's directory,
// so a reader never observes a partially written artifact
func copyAtomic(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer srcFile.Close()

	// Create parent directory if needed
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := io.Copy(tmp, srcFile); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	// Preserve file permissions
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := os.Chmod(tmpName, srcInfo.Mode()); err != nil {
		return err
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	return nil
}
