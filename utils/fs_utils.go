package utils

import (
	"os"

	"github.com/pkg/errors"
)

// MakeDirectory creates a directory at the given path, including any parents which do not yet
// exist. If the directory already exists, this is a no-op.
func MakeDirectory(path string) error {
	err := os.MkdirAll(path, 0755)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// FileExists returns a boolean indicating whether a file (not a directory) exists at the given
// path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirectoryExists returns a boolean indicating whether a directory exists at the given path.
func DirectoryExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
