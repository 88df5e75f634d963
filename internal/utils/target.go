package utils

import (
	"fmt"
	"runtime"
	"strings"
)

// Operating system families the pipeline knows how to link for
const (
	OSLinux   = "linux"
	OSDarwin  = "darwin"
	OSWindows = "windows"
)

// Toolchain environments. A triple may name others (gnullvm, musleabihf);
// those are kept verbatim.
const (
	EnvGNU  = "gnu"
	EnvMSVC = "msvc"
	EnvMusl = "musl"
)

// Target identifies the platform the native library is built for
type Target struct {
	// OS family (linux, darwin, windows, or whatever the triple named)
	OS string

	// Arch as given by the triple or GOARCH
	Arch string

	// Env is the toolchain flavour: gnu, msvc, musl, ...
	Env string
}

// Host returns the target for the machine running the build
func Host() Target {
	return Target{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
		Env:  EnvGNU,
	}
}

// ParseTarget parses either a target triple (x86_64-pc-windows-msvc,
// aarch64-apple-darwin) or a Go platform pair (windows/amd64). An empty
// string yields the host target.
func ParseTarget(t string) (Target, error) {
	t = strings.TrimSpace(strings.ToLower(t))
	if t == "" {
		return Host(), nil
	}

	if goos, goarch, ok := strings.Cut(t, "/"); ok {
		if goos == "" || goarch == "" {
			return Target{}, fmt.Errorf("invalid target: %q", t)
		}

		env := EnvGNU
		if e, ok := strings.CutPrefix(goarch, "msvc-"); ok {
			goarch = e
			env = EnvMSVC
		}

		return Target{OS: goos, Arch: goarch, Env: env}, nil
	}

	parts := strings.Split(t, "-")
	if len(parts) < 2 {
		return Target{}, fmt.Errorf("invalid target: %q", t)
	}

	target := Target{Arch: parts[0], Env: EnvGNU}
	for _, p := range parts[1:] {
		switch {
		case p == "linux":
			target.OS = OSLinux
		case p == "darwin" || p == "macos" || p == "ios":
			target.OS = OSDarwin
		case p == "windows":
			target.OS = OSWindows
		case target.OS != "" && p != "":
			// the component after the OS is the environment
			target.Env = p
		}
	}

	if target.OS == "" {
		// unknown-unknown-freebsd and friends keep their last component
		target.OS = parts[len(parts)-1]
	}

	return target, nil
}

// IsMSVC reports whether the toolchain is MSVC-like
func (t Target) IsMSVC() bool {
	return t.OS == OSWindows && t.Env == EnvMSVC
}

// LibFileName returns the platform-specific file name of a static library
// with the given link name
func (t Target) LibFileName(name string) string {
	if t.IsMSVC() {
		return name + ".lib"
	}

	return "lib" + name + ".a"
}

// Key returns the directory-safe name used to separate artifacts per
// target, e.g. linux-amd64-gnu. Triple and GOARCH spellings of the same
// architecture share a key.
func (t Target) Key() string {
	return t.OS + "-" + t.GoArch() + "-" + t.Env
}

// GoArch returns the architecture in GOARCH spelling
func (t Target) GoArch() string {
	switch t.Arch {
	case "x86_64", "x64":
		return "amd64"
	case "aarch64":
		return "arm64"
	case "i386", "i586", "i686", "x86":
		return "386"
	default:
		return t.Arch
	}
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s (%s)", t.OS, t.Arch, t.Env)
}

// Triple returns the target triple prebuilt libraries are published under
func (t Target) Triple() string {
	arch := t.GoArch()
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}

	switch t.OS {
	case OSDarwin:
		return arch + "-apple-darwin"
	case OSLinux:
		return arch + "-unknown-linux-" + t.Env
	case OSWindows:
		return arch + "-pc-windows-" + t.Env
	default:
		return arch + "-unknown-" + t.OS
	}
}
