package cache

import (
	"fmt"

	"github.com/oxur/verovioxide-sub000/internal/integrity"
	"github.com/oxur/verovioxide-sub000/internal/utils"
)

// entryKey identifies an artifact in the metadata bucket
func entryKey(version string, target utils.Target) []byte {
	return []byte(version + "/" + target.Key())
}

// checksum hashes a cached artifact
func checksum(path string) (string, error) {
	sum, err := integrity.HashFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to hash cached artifact: %w", err)
	}

	return sum, nil
}
