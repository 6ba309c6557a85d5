package ldup

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// fileEntry is an admitted path stamped with its position in the filename stream
type fileEntry struct {
	Path string
	Seq  uint64
}

// bucketState is the per-size accumulation state. It is always exactly one of
// unresolvedBucket or *resolvedBucket.
type bucketState interface {
	isBucketState()
}

// unresolvedBucket holds the only file seen so far for a size. It has not
// been hashed.
type unresolvedBucket struct {
	entry fileEntry
}

// resolvedBucket maps uppercase hex digests to entries in stream order
type resolvedBucket struct {
	byHash map[string][]fileEntry
}

func (unresolvedBucket) isBucketState() {}
func (*resolvedBucket) isBucketState()  {}

// insert keeps each hash list ordered by sequence number so that concurrent
// admission still reports files in discovery order
func (rb *resolvedBucket) insert(digest string, entry fileEntry) {
	list := append(rb.byHash[digest], entry)
	for i := len(list) - 1; i > 0 && list[i-1].Seq > list[i].Seq; i-- {
		list[i-1], list[i] = list[i], list[i-1]
	}
	rb.byHash[digest] = list
}

// sizeBucket guards the state for one size. mu is held across the
// unresolved to resolved transition and every change to the hash map.
type sizeBucket struct {
	mu    sync.Mutex
	state bucketState
}

// IndexStats summarises one run of the index
type IndexStats struct {
	Files   int64 // admissions attempted
	Skipped int64 // files dropped after a size or hash failure
	Hashed  int64 // hash computations started
	Sizes   int   // distinct sizes seen
}

// DuplicateIndex classifies files by size, hashing only once a second file
// of the same size shows up. Admit is safe for concurrent use.
type DuplicateIndex struct {
	sizer  SizeClassifier
	hasher ContentHasher
	policy string

	mu        sync.Mutex
	buckets   map[uint64]*sizeBucket
	finalized bool

	skipMu  sync.Mutex
	skipped []SkippedFile

	nextSeq atomic.Uint64
	files   atomic.Int64
	hashed  atomic.Int64
}

// NewDuplicateIndex creates an empty index. policy is PolicySkip or PolicyAbort;
// an empty policy means PolicySkip.
func NewDuplicateIndex(sizer SizeClassifier, hasher ContentHasher, policy string) (*DuplicateIndex, error) {
	if sizer == nil || hasher == nil {
		return nil, fmt.Errorf("duplicate index needs both a size classifier and a hasher")
	}
	if policy == "" {
		policy = PolicySkip
	}
	if err := ValidateErrorPolicy(policy); err != nil {
		return nil, err
	}
	return &DuplicateIndex{
		sizer:   sizer,
		hasher:  hasher,
		policy:  policy,
		buckets: make(map[uint64]*sizeBucket),
	}, nil
}

// Admit processes one filename against the current index state
func (idx *DuplicateIndex) Admit(filename string) error {
	return idx.admitAt(filename, idx.nextSeq.Add(1)-1)
}

// AdmitAll consumes a filename stream until it is closed. With workers <= 1
// files are admitted one at a time in stream order; otherwise up to workers
// admissions run at once. On the first error stop (if not nil) is called so
// the producer can quit early; the channel is then drained either way.
func (idx *DuplicateIndex) AdmitAll(filenames <-chan string, workers int, stop func()) error {
	defer VerboseEnter()()
	defer func() {
		for range filenames {
		}
	}()

	err := idx.admitStream(filenames, workers)
	if err != nil && stop != nil {
		stop()
	}
	return err
}

func (idx *DuplicateIndex) admitStream(filenames <-chan string, workers int) error {
	if workers <= 1 {
		for filename := range filenames {
			if err := idx.Admit(filename); err != nil {
				return err
			}
		}
		return nil
	}

	var failed atomic.Bool
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for filename := range filenames {
		if failed.Load() {
			break
		}
		seq := idx.nextSeq.Add(1) - 1
		g.Go(func() error {
			if err := idx.admitAt(filename, seq); err != nil {
				failed.Store(true)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (idx *DuplicateIndex) admitAt(filename string, seq uint64) error {
	idx.files.Add(1)

	size, err := idx.sizer.FileSize(filename)
	if err != nil {
		return idx.fail(filename, err)
	}
	entry := fileEntry{Path: filename, Seq: seq}

	idx.mu.Lock()
	if idx.finalized {
		idx.mu.Unlock()
		idx.files.Add(-1)
		return ErrIndexFinalized
	}
	bucket, exists := idx.buckets[size]
	if !exists {
		idx.buckets[size] = &sizeBucket{state: unresolvedBucket{entry: entry}}
		idx.mu.Unlock()
		debugLog(DebugIndex, "deferred %s (size %d)", filename, size)
		return nil
	}
	idx.mu.Unlock()

	return idx.collide(bucket, size, entry)
}

// collide handles a file whose size already has a bucket
func (idx *DuplicateIndex) collide(bucket *sizeBucket, size uint64, entry fileEntry) error {
	bucket.mu.Lock()
	switch state := bucket.state.(type) {
	case unresolvedBucket:
		defer bucket.mu.Unlock()
		debugLog(DebugIndex, "size %d collided, resolving %s", size, state.entry.Path)

		resolved := &resolvedBucket{byHash: make(map[string][]fileEntry)}
		bucket.state = resolved

		prevHash, err := idx.hash(state.entry.Path)
		if err != nil {
			if err := idx.fail(state.entry.Path, err); err != nil {
				return err
			}
		} else {
			resolved.insert(prevHash, state.entry)
		}

		digest, err := idx.hash(entry.Path)
		if err != nil {
			return idx.fail(entry.Path, err)
		}
		resolved.insert(digest, entry)
		return nil

	case *resolvedBucket:
		// Hashing runs unlocked; other workers may add to this size meanwhile
		bucket.mu.Unlock()
		digest, err := idx.hash(entry.Path)
		if err != nil {
			return idx.fail(entry.Path, err)
		}
		bucket.mu.Lock()
		state.insert(digest, entry)
		bucket.mu.Unlock()
		return nil

	default:
		bucket.mu.Unlock()
		panic(fmt.Sprintf("size bucket %d in unknown state %T", size, state))
	}
}

func (idx *DuplicateIndex) hash(path string) (string, error) {
	idx.hashed.Add(1)
	return idx.hasher.HashFile(path)
}

// fail applies the error policy to a file that could not be measured or hashed
func (idx *DuplicateIndex) fail(path string, err error) error {
	if idx.policy == PolicyAbort || errors.Is(err, ErrInterrupted) {
		return err
	}
	Warnf("skipping %s: %v", path, err)
	idx.skipMu.Lock()
	idx.skipped = append(idx.skipped, SkippedFile{Path: path, Err: err})
	idx.skipMu.Unlock()
	return nil
}

// Finalize makes the index read-only. It is safe to call more than once.
func (idx *DuplicateIndex) Finalize() {
	idx.mu.Lock()
	idx.finalized = true
	idx.mu.Unlock()
}

// BucketState reports whether a size has a bucket and whether it has been resolved
func (idx *DuplicateIndex) BucketState(size uint64) (exists, resolved bool) {
	idx.mu.Lock()
	bucket, exists := idx.buckets[size]
	idx.mu.Unlock()
	if !exists {
		return false, false
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	_, resolved = bucket.state.(*resolvedBucket)
	return true, resolved
}

// Skipped returns the files dropped under PolicySkip
func (idx *DuplicateIndex) Skipped() []SkippedFile {
	idx.skipMu.Lock()
	defer idx.skipMu.Unlock()
	out := make([]SkippedFile, len(idx.skipped))
	copy(out, idx.skipped)
	return out
}

// SkippedError joins all skipped files into one error, or returns nil
func (idx *DuplicateIndex) SkippedError() error {
	return joinSkipped(idx.Skipped())
}

// Stats returns the current counters
func (idx *DuplicateIndex) Stats() IndexStats {
	idx.mu.Lock()
	sizes := len(idx.buckets)
	idx.mu.Unlock()

	idx.skipMu.Lock()
	skipped := int64(len(idx.skipped))
	idx.skipMu.Unlock()

	return IndexStats{
		Files:   idx.files.Load(),
		Skipped: skipped,
		Hashed:  idx.hashed.Load(),
		Sizes:   sizes,
	}
}

// snapshot copies the bucket map so callers can walk it without holding idx.mu
func (idx *DuplicateIndex) snapshot() map[uint64]*sizeBucket {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make(map[uint64]*sizeBucket, len(idx.buckets))
	for size, bucket := range idx.buckets {
		out[size] = bucket
	}
	return out
}
