// Package link describes how the outer build links against the compiled
// library and renders those directives in the formats build tools expect.
package link

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/oxur/verovioxide-sub000/internal/release"
	"github.com/oxur/verovioxide-sub000/internal/utils"
)

// DirectiveKind is the kind of a link directive
type DirectiveKind int

// Directive kinds, in the order they are emitted
const (
	SearchPath DirectiveKind = iota
	StaticLib
	DynamicLib
)

// Directive is a single instruction to the linker
type Directive struct {
	Kind  DirectiveKind
	Value string
}

// Directives returns the search path, the static Verovio library and the
// C++ runtime the target needs
func Directives(target utils.Target, searchDir string) []Directive {
	ds := []Directive{
		{Kind: SearchPath, Value: searchDir},
		{Kind: StaticLib, Value: release.LibName},
	}

	if rt := RuntimeLib(target); rt != "" {
		ds = append(ds, Directive{Kind: DynamicLib, Value: rt})
	}

	return ds
}

// RuntimeLib returns the C++ runtime library for a target, or "" when the
// toolchain links it implicitly (MSVC) or the platform is unknown
func RuntimeLib(target utils.Target) string {
	switch target.OS {
	case utils.OSDarwin:
		return "c++"
	case utils.OSLinux:
		return "stdc++"
	case utils.OSWindows:
		if target.Env == utils.EnvGNU {
			return "stdc++"
		}
		return ""
	default:
		return ""
	}
}

// Format is an output format for directives
type Format string

// Supported output formats
const (
	FormatLines   Format = "lines"
	FormatLDFlags Format = "ldflags"
	FormatCgo     Format = "cgo"
)

// Formats lists every supported format
var Formats = []Format{FormatLines, FormatLDFlags, FormatCgo}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}

	return "", fmt.Errorf("unknown link format %q (want one of lines, ldflags, cgo)", s)
}

// Lines renders one directive per line, in the key=value form build
// scripts parse
func Lines(ds []Directive) string {
	var b strings.Builder
	for _, d := range ds {
		switch d.Kind {
		case SearchPath:
			fmt.Fprintf(&b, "link-search=native=%s\n", d.Value)
		case StaticLib:
			fmt.Fprintf(&b, "link-lib=static=%s\n", d.Value)
		case DynamicLib:
			fmt.Fprintf(&b, "link-lib=%s\n", d.Value)
		}
	}

	return b.String()
}

// LDFlags renders directives as linker flags for the target toolchain
func LDFlags(target utils.Target, ds []Directive) string {
	var flags []string
	for _, d := range ds {
		switch d.Kind {
		case SearchPath:
			if target.IsMSVC() {
				flags = append(flags, "/LIBPATH:"+d.Value)
			} else {
				flags = append(flags, "-L"+d.Value)
			}
		case StaticLib, DynamicLib:
			if target.IsMSVC() {
				flags = append(flags, d.Value+".lib")
			} else {
				flags = append(flags, "-l"+d.Value)
			}
		}
	}

	return strings.Join(flags, " ")
}

var cgoTemplate = template.Must(template.New("cgo").Parse(`// Code generated by vxbuild; DO NOT EDIT.

package {{ .Package }}

// #cgo LDFLAGS: {{ .LDFlags }}
import "C"
`))

// Cgo renders a Go source file carrying the directives as cgo LDFLAGS
func Cgo(pkg string, target utils.Target, ds []Directive) (string, error) {
	if pkg == "" {
		return "", fmt.Errorf("cgo package name is required")
	}

	var buf bytes.Buffer
	err := cgoTemplate.Execute(&buf, struct {
		Package string
		LDFlags string
	}{
		Package: pkg,
		LDFlags: LDFlags(target, ds),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render cgo file: %w", err)
	}

	return buf.String(), nil
}

// WriteCgoFile writes the cgo directives file to path, creating parent
// directories. An identical existing file is left untouched so that the
// outer build does not see a spurious change.
func WriteCgoFile(path, pkg string, target utils.Target, ds []Directive) (bool, error) {
	content, err := Cgo(pkg, target, ds)
	if err != nil {
		return false, err
	}

	if existing, err := os.ReadFile(path); err == nil && string(existing) == content {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return true, nil
}

// Render produces the directives in the requested format. The cgo format
// renders the file content; use WriteCgoFile to persist it.
func Render(format Format, pkg string, target utils.Target, ds []Directive) (string, error) {
	switch format {
	case FormatLines:
		return Lines(ds), nil
	case FormatLDFlags:
		return LDFlags(target, ds) + "\n", nil
	case FormatCgo:
		return Cgo(pkg, target, ds)
	default:
		return "", fmt.Errorf("unknown link format %q", format)
	}
}
