package ldup

import (
	"fmt"
	"strings"
	"sync"
)

// DuplicateGroup represents files sharing one size and one content hash
type DuplicateGroup struct {
	Size  uint64   `json:"size"`
	Hash  string   `json:"hash"`
	Files []string `json:"files"` // discovery order
}

// Count returns the number of files in the group
func (g DuplicateGroup) Count() int {
	return len(g.Files)
}

// FinderOptions configures a duplicate search
type FinderOptions struct {
	Walk        WalkOptions
	Algorithm   string // sha256 when empty
	HashBuffer  int    // 0 uses the filesystem block size
	HashWorkers int    // 1 or less admits files sequentially
	ErrorPolicy string // PolicySkip when empty
}

// FinderOptionsFromConfig builds finder options from a loaded configuration.
// The ignore manager may be nil.
func FinderOptionsFromConfig(cfg *Config, ignore *IgnoreManager) (FinderOptions, error) {
	if err := cfg.Validate(); err != nil {
		return FinderOptions{}, err
	}
	all := cfg.GetAllConfig()

	bufferSize := 0
	if all.Performance.HashBuffer != "" {
		size, err := ParseHumanSize(all.Performance.HashBuffer)
		if err != nil {
			return FinderOptions{}, fmt.Errorf("invalid hash buffer: %w", err)
		}
		bufferSize = size
	}

	if ignore == nil {
		ignore = NewIgnoreManager(all.Scan.IgnoreFile)
	}

	policy := PolicySkip
	if all.Scan.Strict {
		policy = PolicyAbort
	}

	return FinderOptions{
		Walk: WalkOptions{
			Recursive:   all.Scan.Recursive,
			Hidden:      all.Scan.Hidden,
			SymlinkMode: strings.ToLower(all.Symlink.Mode),
			Ignore:      ignore,
		},
		Algorithm:   strings.ToLower(all.Hash.Default),
		HashBuffer:  bufferSize,
		HashWorkers: all.Performance.HashWorkers,
		ErrorPolicy: policy,
	}, nil
}

// Finder wires a Walker, a DuplicateIndex and Filter together
type Finder struct {
	BaseDir string
	Options FinderOptions
}

// NewFinder creates a finder. Relative directories given to FindDuplicates
// are resolved against baseDir.
func NewFinder(baseDir string, opts FinderOptions) *Finder {
	return &Finder{
		BaseDir: baseDir,
		Options: opts,
	}
}

// FindDuplicates walks dirs and returns the duplicate groups found, in no
// particular order
func (f *Finder) FindDuplicates(dirs []string, shutdownChan <-chan struct{}) ([]DuplicateGroup, IndexStats, error) {
	defer VerboseEnter()()

	walker, err := NewWalker(f.BaseDir, f.Options.Walk)
	if err != nil {
		return nil, IndexStats{}, fmt.Errorf("failed to create walker: %w", err)
	}

	algorithm := f.Options.Algorithm
	if algorithm == "" {
		algorithm = DefaultHashAlgorithm
	}
	hasher, err := NewFileHasher(algorithm, f.Options.HashBuffer, shutdownChan)
	if err != nil {
		return nil, IndexStats{}, fmt.Errorf("failed to create hasher: %w", err)
	}

	idx, err := NewDuplicateIndex(StatSizer{}, hasher, f.Options.ErrorPolicy)
	if err != nil {
		return nil, IndexStats{}, fmt.Errorf("failed to create index: %w", err)
	}

	VerboseLog(2, "hashing with %s", HashTypeName(hasher.Algorithm.TypeID))

	// stopWalk is closed on shutdown or on the first admission error
	stopWalk := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stopWalk) }) }
	defer halt()
	go func() {
		select {
		case <-shutdownChan:
			halt()
		case <-stopWalk:
		}
	}()

	files := make(chan string, 64)
	walkErr := make(chan error, 1)
	go func() {
		walkErr <- walker.Walk(dirs, files, stopWalk)
	}()

	admitErr := idx.AdmitAll(files, f.Options.HashWorkers, halt)
	werr := <-walkErr
	if admitErr != nil {
		return nil, idx.Stats(), fmt.Errorf("failed to index files: %w", admitErr)
	}
	if werr != nil {
		return nil, idx.Stats(), werr
	}

	groups := Filter(idx)
	stats := idx.Stats()

	duplicates := 0
	for _, group := range groups {
		duplicates += group.Count()
	}
	VerboseLog(1, "examined %d files in %d distinct sizes, hashed %d (%s read), skipped %d, found %d duplicate groups holding %d files",
		stats.Files, stats.Sizes, stats.Hashed, formatBytes(hasher.BytesHashed()), stats.Skipped, len(groups), duplicates)
	if stats.Skipped > 0 {
		VerboseLog(2, "skipped files:\n%v", idx.SkippedError())
	}

	return groups, stats, nil
}
