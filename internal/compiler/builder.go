// Package compiler turns a Verovio source tree into a static library using
// the native C++ toolchain.
package compiler

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/diag"
	"github.com/oxur/verovioxide-sub000/internal/release"
	"github.com/oxur/verovioxide-sub000/internal/utils"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// Invoker compiles translation units one at a time and archives them
type Invoker struct {
	Config *BuildConfiguration

	// CXX is the compiler executable; empty selects the target default
	CXX string

	// AR is the archiver executable; empty selects the target default
	AR string

	Sink   diag.Sink
	Stdout io.Writer
	Stderr io.Writer

	execCommand func(name string, args ...string) Commander
}

// NewInvoker creates an invoker for cfg using the real toolchain
func NewInvoker(cfg *BuildConfiguration, cxx, ar string, sink diag.Sink) *Invoker {
	if sink == nil {
		sink = diag.Discard
	}

	return &Invoker{
		Config: cfg,
		CXX:    cxx,
		AR:     ar,
		Sink:   sink,
		Stdout: os.Stderr,
		Stderr: os.Stderr,
		execCommand: func(name string, args ...string) Commander {
			return exec.Command(name, args...)
		},
	}
}

// DefaultCompiler returns the compiler used when none is configured
func DefaultCompiler(target utils.Target) string {
	switch {
	case target.IsMSVC():
		return "cl.exe"
	case target.OS == utils.OSDarwin:
		return "clang++"
	default:
		return "c++"
	}
}

// DefaultArchiver returns the archiver used when none is configured
func DefaultArchiver(target utils.Target) string {
	if target.IsMSVC() {
		return "lib.exe"
	}

	return "ar"
}

// Compiler returns the compiler executable that will be run
func (inv *Invoker) Compiler() string {
	if inv.CXX != "" {
		return inv.CXX
	}

	return DefaultCompiler(inv.Config.Target)
}

// Archiver returns the archiver executable that will be run
func (inv *Invoker) Archiver() string {
	if inv.AR != "" {
		return inv.AR
	}

	return DefaultArchiver(inv.Config.Target)
}

// Compile builds every translation unit below root into outDir and archives
// them into the static library. It returns the library path.
func (inv *Invoker) Compile(root, outDir string) (string, error) {
	created, err := EnsureVersionHeader(root)
	if err != nil {
		return "", codes.New(codes.CompilationFailure, err)
	}
	if created {
		inv.Sink.Debugf("Generated %s", VersionHeader)
	}

	sources, err := Sources(root)
	if err != nil {
		return "", codes.New(codes.CompilationFailure, err)
	}

	objDir := filepath.Join(outDir, "obj")
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return "", codes.New(codes.CompilationFailure, fmt.Errorf("failed to create object directory: %w", err))
	}

	inv.Sink.Infof("Compiling Verovio (%d translation units) with %s", len(sources), inv.Compiler())

	objects := make([]string, 0, len(sources))
	for _, src := range sources {
		obj := filepath.Join(objDir, objectName(root, src, inv.Config.Target))
		args := inv.CompileArgs(root, src, obj)

		if err := inv.run(inv.Compiler(), args); err != nil {
			return "", codes.New(codes.CompilationFailure, fmt.Errorf("failed to compile %s: %w", src, err))
		}

		objects = append(objects, obj)
	}

	lib := filepath.Join(outDir, inv.Config.Target.LibFileName(release.LibName))
	_ = os.Remove(lib)

	if err := inv.run(inv.Archiver(), inv.ArchiveArgs(lib, objects)); err != nil {
		return "", codes.New(codes.CompilationFailure, fmt.Errorf("failed to archive %s: %w", filepath.Base(lib), err))
	}

	inv.Sink.Infof("Built %s", lib)
	return lib, nil
}

// CompileArgs builds the compiler arguments for a single translation unit
func (inv *Invoker) CompileArgs(root, src, obj string) []string {
	cfg := inv.Config

	var args []string
	if cfg.Target.IsMSVC() {
		args = append(args, "/nologo", "/EHsc", "/std:"+cfg.Std)
	} else {
		args = append(args, "-std="+cfg.Std)
	}

	args = append(args, cfg.Flags...)

	for _, inc := range cfg.Includes {
		dir := filepath.Join(root, filepath.FromSlash(inc))
		if cfg.Target.IsMSVC() {
			args = append(args, "/I"+dir)
		} else {
			args = append(args, "-I"+dir)
		}
	}

	for _, d := range cfg.Defines {
		if cfg.Target.IsMSVC() {
			args = append(args, "/D"+d.String())
		} else {
			args = append(args, "-D"+d.String())
		}
	}

	if cfg.Target.IsMSVC() {
		return append(args, "/c", src, "/Fo"+obj)
	}

	return append(args, "-c", src, "-o", obj)
}

// ArchiveArgs builds the archiver arguments
func (inv *Invoker) ArchiveArgs(lib string, objects []string) []string {
	if inv.Config.Target.IsMSVC() {
		return append([]string{"/NOLOGO", "/OUT:" + lib}, objects...)
	}

	return append([]string{"crs", lib}, objects...)
}

// run executes a toolchain command, passing its output through unmodified
func (inv *Invoker) run(name string, args []string) error {
	inv.Sink.Debugf("%s %s", name, strings.Join(args, " "))

	c := inv.execCommand(name, args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stdout = inv.Stdout
		cmd.Stderr = inv.Stderr
	}

	if err := c.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("%s exited with code %d", filepath.Base(name), exitErr.ExitCode())
		}

		return err
	}

	return nil
}

// objectName flattens a source path into a unique object file name
func objectName(root, src string, target utils.Target) string {
	rel, err := filepath.Rel(root, src)
	if err != nil {
		rel = filepath.Base(src)
	}

	name := strings.NewReplacer(string(filepath.Separator), "_", "/", "_").Replace(rel)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	if target.IsMSVC() {
		return name + ".obj"
	}

	return name + ".o"
}
