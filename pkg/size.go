package ldup

import (
	"fmt"
	"os"
)

// SizeClassifier reports the byte length of a file
type SizeClassifier interface {
	FileSize(path string) (uint64, error)
}

// StatSizer reads sizes from filesystem metadata. Symlinks are followed so a
// kept file symlink is measured by its target, matching what gets hashed.
type StatSizer struct{}

// FileSize returns the size recorded in the file's metadata
func (StatSizer) FileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", path)
	}
	return uint64(info.Size()), nil
}
