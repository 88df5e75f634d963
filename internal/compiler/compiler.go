package compiler

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/oxur/verovioxide-sub000/internal/utils"
)

// Standard is the C++ language standard Verovio is compiled with
const Standard = "c++20"

// ResourceDir is baked into the library; the runtime resources are loaded
// separately so the path only needs to be a plausible default
const ResourceDir = "/usr/local/share/verovio"

// Define is a preprocessor definition. An empty Value defines the name only.
type Define struct {
	Name  string
	Value string
}

func (d Define) String() string {
	if d.Value == "" {
		return d.Name
	}

	return d.Name + "=" + d.Value
}

// BuildConfiguration holds the include paths, defines and flags used for
// every translation unit
type BuildConfiguration struct {
	Target   utils.Target
	Includes []string
	Defines  []Define
	Flags    []string
	Std      string
}

var baseIncludes = []string{
	"include",
	"include/vrv",
	"include/crc",
	"include/midi",
	"include/hum",
	"include/json",
	"include/pugi",
	"include/zip",
	"libmei/dist",
	"libmei/addons",
}

var gnuFlags = []string{
	"-Wall",
	"-W",
	"-pedantic",
	"-Wno-unused-parameter",
	"-Wno-dollar-in-identifier-extension",
	"-Wno-conversion",
	"-Wno-float-conversion",
	"-Wno-missing-braces",
	"-Wno-missing-field-initializers",
	"-Wno-overloaded-virtual",
	"-Wno-shadow",
	"-Wno-sign-conversion",
	"-Wno-trigraphs",
	"-Wno-unknown-pragmas",
	"-Wno-unused-label",
}

var msvcFlags = []string{"/bigobj", "/W2", "/wd4244"}

// NewBuildConfiguration derives the configuration for a target
func NewBuildConfiguration(target utils.Target) *BuildConfiguration {
	cfg := &BuildConfiguration{
		Target:   target,
		Includes: append([]string(nil), baseIncludes...),
		Defines: []Define{
			{Name: "NO_DARMS_SUPPORT"},
			{Name: "NO_RUNTIME"},
			{Name: "RESOURCE_DIR", Value: `"` + ResourceDir + `"`},
		},
		Std: Standard,
	}

	if target.OS == utils.OSWindows {
		cfg.Includes = append(cfg.Includes, "include/win32")
	}

	if target.IsMSVC() {
		cfg.Defines = append(cfg.Defines, Define{Name: "NO_PAE_SUPPORT"}, Define{Name: "USE_PAE_OLD_PARSER"})
		cfg.Flags = append([]string(nil), msvcFlags...)
		return cfg
	}

	cfg.Flags = append([]string(nil), gnuFlags...)
	if target.OS != utils.OSWindows {
		cfg.Flags = append(cfg.Flags, "-fPIC")
	}

	return cfg
}

// Fingerprint identifies the configuration together with the compiler
// that will use it. Two builds with the same fingerprint produce
// interchangeable artifacts.
func (c *BuildConfiguration) Fingerprint(compiler string) string {
	var b strings.Builder
	b.WriteString("std=" + c.Std + "\x00")
	b.WriteString("target=" + c.Target.Key() + "\x00")
	b.WriteString("cxx=" + compiler + "\x00")
	for _, inc := range c.Includes {
		b.WriteString("I=" + inc + "\x00")
	}
	for _, d := range c.Defines {
		b.WriteString("D=" + d.String() + "\x00")
	}
	for _, f := range c.Flags {
		b.WriteString("F=" + f + "\x00")
	}

	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
