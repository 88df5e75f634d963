// Package codes classifies build failures and maps them to exit codes.
package codes

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure
type Kind int

// Failure kinds. Unknown covers errors that were never classified.
const (
	Unknown Kind = iota
	SourceNotFound
	InvalidOverride
	TransportFailure
	HttpStatusFailure
	IntegrityMismatch
	ExtractionFailure
	CompilationFailure
	CacheWriteFailure
	PrebuiltFailure
	ConfigFailure
)

// ExitCodes maps failure kinds to process exit codes
var ExitCodes = map[Kind]int{
	Unknown:            1,
	SourceNotFound:     10,
	InvalidOverride:    11,
	TransportFailure:   12,
	HttpStatusFailure:  13,
	IntegrityMismatch:  14,
	ExtractionFailure:  15,
	CompilationFailure: 16,
	CacheWriteFailure:  17,
	PrebuiltFailure:    18,
	ConfigFailure:      19,
}

// Descriptions maps failure kinds to a short human description
var Descriptions = map[Kind]string{
	Unknown:            "Unknown error",
	SourceNotFound:     "Verovio source not found",
	InvalidOverride:    "Invalid source override",
	TransportFailure:   "Download failed",
	HttpStatusFailure:  "Download returned an HTTP error",
	IntegrityMismatch:  "SHA256 hash mismatch",
	ExtractionFailure:  "Archive extraction failed",
	CompilationFailure: "Compilation failed",
	CacheWriteFailure:  "Failed to write build cache",
	PrebuiltFailure:    "Prebuilt library unavailable",
	ConfigFailure:      "Invalid configuration",
}

func (k Kind) String() string {
	return GetErrorMessage(k)
}

// ExitCode returns the process exit code for a failure kind
func (k Kind) ExitCode() int {
	if code, ok := ExitCodes[k]; ok {
		return code
	}

	return ExitCodes[Unknown]
}

// Fatal reports whether a failure of this kind aborts the build.
// Only a failed cache write is recoverable.
func (k Kind) Fatal() bool {
	return k != CacheWriteFailure
}

// GetErrorMessage returns the description for a kind, or a generic message if unknown
func GetErrorMessage(k Kind) string {
	if msg, ok := Descriptions[k]; ok {
		return msg
	}

	return Descriptions[Unknown]
}

// Error is a classified pipeline failure
type Error struct {
	Kind Kind

	// Err is the underlying cause
	Err error

	// Details are extra lines appended to the diagnostic
	Details []string
}

// New creates an Error of the given kind
func New(kind Kind, err error, details ...string) *Error {
	return &Error{Kind: kind, Err: err, Details: details}
}

// Errorf creates an Error with a formatted cause
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(GetErrorMessage(e.Kind))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	for _, d := range e.Details {
		b.WriteString("\n")
		b.WriteString(d)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Unknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCodeOf returns the exit code for err, 0 for nil
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}

	return KindOf(err).ExitCode()
}
