package ldup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WalkOptions controls which files a Walker produces
type WalkOptions struct {
	Recursive   bool           // descend into subdirectories
	Hidden      bool           // include dot files and the contents of dot directories
	SymlinkMode string         // SymlinkNone, SymlinkContained or SymlinkAll
	Ignore      *IgnoreManager // optional
}

// Walker turns a list of root directories into a stream of file paths.
// Relative roots and "." are resolved against BaseDir rather than the
// process working directory.
type Walker struct {
	BaseDir string
	opts    WalkOptions
	seen    map[string]struct{}
}

// NewWalker creates a walker rooted at baseDir
func NewWalker(baseDir string, opts WalkOptions) (*Walker, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("walker needs a base directory")
	}
	opts.SymlinkMode = strings.ToLower(opts.SymlinkMode)
	if opts.SymlinkMode == "" {
		opts.SymlinkMode = SymlinkNone
	}
	if err := ValidateSymlinkMode(opts.SymlinkMode); err != nil {
		return nil, err
	}
	if opts.Ignore == nil {
		opts.Ignore = NewIgnoreManager("")
	}
	return &Walker{
		BaseDir: filepath.Clean(baseDir),
		opts:    opts,
		seen:    make(map[string]struct{}),
	}, nil
}

// ResolveDirectories normalises the user's directory list: "." and relative
// paths are resolved against BaseDir, repeats and non-directories are dropped
// and an empty result falls back to BaseDir. In recursive mode a root nested
// under another root is dropped as well, since its files are reached anyway.
func (w *Walker) ResolveDirectories(dirs []string) []string {
	var resolved []string
	seen := make(map[string]struct{})

	for _, dir := range dirs {
		absPath := dir
		if dir == "." {
			absPath = w.BaseDir
		} else if !filepath.IsAbs(dir) {
			absPath = filepath.Join(w.BaseDir, dir)
		}
		absPath = filepath.Clean(absPath)

		if _, dup := seen[absPath]; dup {
			continue
		}
		seen[absPath] = struct{}{}

		info, err := os.Stat(absPath)
		if err != nil || !info.IsDir() {
			Warnf("ignoring %s: not a directory", dir)
			continue
		}
		resolved = append(resolved, absPath)
	}

	if len(resolved) == 0 {
		resolved = append(resolved, w.BaseDir)
	}

	if w.opts.Recursive {
		resolved = dropNestedPaths(resolved)
	}
	debugLog(DebugWalk, "resolved directories: %v", resolved)
	return resolved
}

// dropNestedPaths removes paths lying under another path in the list, keeping
// the caller's order
func dropNestedPaths(paths []string) []string {
	var kept []string
	for i, path := range paths {
		redundant := false
		for j, other := range paths {
			if i != j && isPathUnder(path, other) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, path)
		}
	}
	return kept
}

// isPathUnder checks if childPath is under parentPath
func isPathUnder(childPath, parentPath string) bool {
	childPath = filepath.Clean(childPath)
	parentPath = filepath.Clean(parentPath)

	if childPath == parentPath {
		return false
	}

	parentWithSep := parentPath
	if !strings.HasSuffix(parentWithSep, string(filepath.Separator)) {
		parentWithSep += string(filepath.Separator)
	}
	return strings.HasPrefix(childPath, parentWithSep)
}

// isPathContained checks if targetPath is containerPath or lies under it
func isPathContained(targetPath, containerPath string) bool {
	targetPath = filepath.Clean(targetPath)
	containerPath = filepath.Clean(containerPath)
	return targetPath == containerPath || isPathUnder(targetPath, containerPath)
}

// Walk streams every selected file under dirs to out, then closes out.
// Within a directory entries come in name order, and a directory's files are
// sent before any of its subdirectories are entered. A path is sent at most
// once per Walker.
func (w *Walker) Walk(dirs []string, out chan<- string, shutdownChan <-chan struct{}) error {
	defer VerboseEnter()()
	defer close(out)

	if err := w.opts.Ignore.LoadIgnorePatterns(); err != nil {
		return fmt.Errorf("failed to load ignore patterns: %w", err)
	}
	if w.opts.Ignore.HasPatterns() {
		VerboseLog(2, "ignore patterns active")
	}

	for _, root := range w.ResolveDirectories(dirs) {
		VerboseLog(1, "scanning directory: %s", root)
		if err := w.walkDir(root, root, out, shutdownChan); err != nil {
			return fmt.Errorf("failed to scan path %s: %w", root, err)
		}
	}
	return nil
}

func (w *Walker) walkDir(root, dir string, out chan<- string, shutdownChan <-chan struct{}) error {
	select {
	case <-shutdownChan:
		return ErrInterrupted
	default:
	}

	// os.ReadDir returns entries sorted by name
	entries, err := os.ReadDir(dir)
	if err != nil {
		Warnf("cannot read directory %s: %v", dir, err)
		return nil
	}

	var subdirs []string
	for _, entry := range entries {
		name := entry.Name()
		if !w.opts.Hidden && strings.HasPrefix(name, ".") {
			continue
		}

		fullPath := filepath.Join(dir, name)
		relPath, err := filepath.Rel(root, fullPath)
		if err != nil {
			continue
		}

		mode := entry.Type()
		switch {
		case mode.IsDir():
			if !w.opts.Recursive || w.opts.Ignore.ShouldIgnore(relPath+"/") {
				continue
			}
			subdirs = append(subdirs, fullPath)

		case mode.IsRegular():
			if w.opts.Ignore.ShouldIgnore(relPath) {
				continue
			}
			if err := w.emit(fullPath, out, shutdownChan); err != nil {
				return err
			}

		case mode&os.ModeSymlink != 0:
			if w.opts.Ignore.ShouldIgnore(relPath) || !w.keepSymlink(root, fullPath) {
				continue
			}
			if err := w.emit(fullPath, out, shutdownChan); err != nil {
				return err
			}

		default:
			debugLog(DebugWalk, "skipping special file %s", fullPath)
		}
	}

	for _, subdir := range subdirs {
		if err := w.walkDir(root, subdir, out, shutdownChan); err != nil {
			return err
		}
	}
	return nil
}

// keepSymlink decides whether a symlink is reported as a file. Directory
// symlinks are never followed.
func (w *Walker) keepSymlink(root, linkPath string) bool {
	if w.opts.SymlinkMode == SymlinkNone {
		return false
	}

	targetInfo, err := os.Stat(linkPath)
	if err != nil || !targetInfo.Mode().IsRegular() {
		return false // broken, or not a file
	}

	if w.opts.SymlinkMode == SymlinkAll {
		return true
	}

	target, err := filepath.EvalSymlinks(linkPath)
	if err != nil {
		return false
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	return isPathContained(target, realRoot)
}

func (w *Walker) emit(path string, out chan<- string, shutdownChan <-chan struct{}) error {
	if _, dup := w.seen[path]; dup {
		return nil
	}
	w.seen[path] = struct{}{}

	debugLog(DebugWalk, "found %s", path)
	select {
	case out <- path:
		return nil
	case <-shutdownChan:
		return ErrInterrupted
	}
}
