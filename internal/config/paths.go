// ABOUTME: Standard filesystem paths for pi-loop configuration
// ABOUTME: Resolves ~/.pi-loop/ for global and .pi-loop/ for project-local paths

package config

import (
	"os"
	"path/filepath"
)

const (
	globalDirName  = ".pi-loop"
	projectDirName = ".pi-loop"
)

// configNames are tried in order inside a config directory.
var configNames = []string{"config.yaml", "config.yml", "config.json"}

// GlobalDir returns the user-global config directory (~/.pi-loop/).
func GlobalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", globalDirName)
	}
	return filepath.Join(home, globalDirName)
}

// ProjectDir returns the project-local config directory (.pi-loop/ in projectRoot).
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, projectDirName)
}

// AuthFile returns the path to the credentials file.
func AuthFile() string {
	return filepath.Join(GlobalDir(), "auth.yaml")
}

// GlobalConfigFiles returns the candidate global config files in lookup order.
func GlobalConfigFiles() []string {
	return candidates(GlobalDir())
}

// ProjectConfigFiles returns the candidate project config files in lookup order.
func ProjectConfigFiles(projectRoot string) []string {
	return candidates(ProjectDir(projectRoot))
}

func candidates(dir string) []string {
	out := make([]string, len(configNames))
	for i, n := range configNames {
		out[i] = filepath.Join(dir, n)
	}
	return out
}

// EnsureDir creates a directory and all parents if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o700)
}
