package filesystem

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := homedir.Dir(); err == nil {
		return home
	}
	return "."
}

// ConfigDir is where conv keeps its config and credentials.
func ConfigDir() string {
	return filepath.Join(UserHomeDir(), ".config", "conv")
}

// ExpandPath resolves a leading ~ and cleans the result.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(expanded)
}

// TempPath joins name onto the system temporary directory.
func TempPath(name string) string {
	return filepath.Join(os.TempDir(), name)
}
