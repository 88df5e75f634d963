package config

import (
	"os"
	"path/filepath"
)

// LocalConfigName is the base name of project configuration files
const LocalConfigName = ".vxbuild"

// ConfigExtensions are tried in order at every directory level
var ConfigExtensions = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig returns the nearest .vxbuild.<ext> at or above dir, or ""
func FindLocalConfig(dir string) string {
	var found string
	walkUp(dir, func(d string) bool {
		for _, ext := range ConfigExtensions {
			path := filepath.Join(d, LocalConfigName+"."+ext)
			if isFile(path) {
				found = path
				return true
			}
		}
		return false
	})

	return found
}

// FindWorkspaceRoot returns the nearest directory at or above dir holding a
// go.work file, or dir itself when there is none
func FindWorkspaceRoot(dir string) string {
	root := dir
	walkUp(dir, func(d string) bool {
		if isFile(filepath.Join(d, "go.work")) {
			root = d
			return true
		}
		return false
	})

	return root
}

// walkUp calls stop for dir and each of its parents until stop returns true
// or the filesystem root has been visited
func walkUp(dir string, stop func(string) bool) {
	for {
		if stop(dir) {
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
