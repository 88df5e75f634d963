package cache

import "time"

// Entry is the metadata recorded for a cached artifact
type Entry struct {
	// Version is the pinned Verovio version the artifact was built from
	Version string `json:"version"`

	// Target is the key of the artifact directory (e.g. "linux-amd64-gnu")
	Target string `json:"target"`

	// Path is the absolute path of the cached library
	Path string `json:"path"`

	// Size of the library in bytes
	Size int64 `json:"size"`

	// SHA256 of the cached library
	SHA256 string `json:"sha256"`

	// Fingerprint identifies the build configuration (includes, defines,
	// flags, compiler) that produced the artifact
	Fingerprint string `json:"fingerprint"`

	// Origin is how the source tree was obtained, or "prebuilt"
	Origin string `json:"origin"`

	// Timestamp when this entry was created
	Timestamp time.Time `json:"timestamp"`
}

// Stale reports whether the artifact was built with a different
// configuration. An entry without a fingerprint is never stale.
func (e *Entry) Stale(fingerprint string) bool {
	return e != nil && e.Fingerprint != "" && fingerprint != "" && e.Fingerprint != fingerprint
}
