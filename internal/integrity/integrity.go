// Package integrity verifies downloaded content against pinned SHA-256 hashes.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Outcome is the result of comparing content against an expected hash
type Outcome struct {
	// Match is true when the computed hash equals the expected one
	Match bool

	// Actual is the lower-case hex hash that was computed
	Actual string
}

// Mismatch reports whether verification failed
func (o Outcome) Mismatch() bool {
	return !o.Match
}

// Verify hashes data and compares it with expectedHex. Comparison is done on
// lower-case hex so the expected value may be given in either case.
func Verify(data []byte, expectedHex string) Outcome {
	return compare(HashBytes(data), expectedHex)
}

// VerifyReader streams r through SHA-256 and compares the result
func VerifyReader(r io.Reader, expectedHex string) (Outcome, error) {
	actual, err := hashReader(r)
	if err != nil {
		return Outcome{}, err
	}

	return compare(actual, expectedHex), nil
}

// VerifyFile hashes the file at path without loading it into memory
func VerifyFile(path, expectedHex string) (Outcome, error) {
	actual, err := HashFile(path)
	if err != nil {
		return Outcome{}, err
	}

	return compare(actual, expectedHex), nil
}

// HashBytes returns the lower-case hex SHA-256 of data
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile creates a hash of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	return hashReader(f)
}

func hashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func compare(actual, expectedHex string) Outcome {
	expected := strings.ToLower(strings.TrimSpace(expectedHex))
	return Outcome{
		Match:  actual == expected,
		Actual: actual,
	}
}
