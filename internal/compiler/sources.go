package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// sourceGroup is a set of translation units matched by a glob below the
// source root
type sourceGroup struct {
	pattern  string
	exclude  []string
	optional bool
}

var sourceGroups = []sourceGroup{
	{pattern: "src/*.cpp", exclude: []string{"main.cpp"}},
	{pattern: "src/hum/*.cpp", optional: true},
	{pattern: "src/midi/*.cpp"},
	{pattern: "src/crc/*.cpp"},
	{pattern: "src/json/jsonxx.cc"},
	{pattern: "src/pugi/pugixml.cpp"},
	{pattern: "libmei/dist/*.cpp"},
	{pattern: "libmei/addons/*.cpp"},
	{pattern: "tools/c_wrapper.cpp"},
}

// Sources returns every translation unit of the library below root, sorted
// within each group. A required group with no match is an error.
func Sources(root string) ([]string, error) {
	var files []string
	for _, g := range sourceGroups {
		matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(g.pattern)))
		if err != nil {
			return nil, fmt.Errorf("invalid source pattern %s: %w", g.pattern, err)
		}

		matches = excludeNames(matches, g.exclude)
		if len(matches) == 0 {
			if g.optional {
				continue
			}
			return nil, fmt.Errorf("no sources match %s in %s", g.pattern, root)
		}

		sort.Strings(matches)
		files = append(files, matches...)
	}

	return files, nil
}

func excludeNames(paths, names []string) []string {
	if len(names) == 0 {
		return paths
	}

	out := paths[:0]
	for _, p := range paths {
		skip := false
		for _, n := range names {
			if filepath.Base(p) == n {
				skip = true
				break
			}
		}

		if !skip {
			out = append(out, p)
		}
	}

	return out
}

// VersionHeader is the generated header path relative to the source root
const VersionHeader = "include/vrv/git_commit.h"

var versionHeaderContent = strings.Join([]string{
	"////////////////////////////////////////////////////////",
	"/// Git commit version file generated at compilation ///",
	"////////////////////////////////////////////////////////",
	"",
	`#define GIT_COMMIT ""`,
	"",
}, "\n")

// EnsureVersionHeader creates the git commit header upstream normally
// generates during its own build. An existing header is left alone.
func EnsureVersionHeader(root string) (bool, error) {
	path := filepath.Join(root, filepath.FromSlash(VersionHeader))
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create header directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(versionHeaderContent), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", VersionHeader, err)
	}

	return true, nil
}
