package ldup

// Filter finalizes the index and returns every (size, hash) group holding two
// or more files. Sizes seen only once never got hashed and are dropped along
// with single-member hash lists. The index itself is left untouched; the
// result is a new structure in no particular order.
func Filter(idx *DuplicateIndex) []DuplicateGroup {
	defer VerboseEnter()()
	idx.Finalize()

	var groups []DuplicateGroup
	for size, bucket := range idx.snapshot() {
		bucket.mu.Lock()
		switch state := bucket.state.(type) {
		case unresolvedBucket:
			// unique size, never hashed
		case *resolvedBucket:
			for digest, entries := range state.byHash {
				if len(entries) < 2 {
					continue
				}
				files := make([]string, len(entries))
				for i, entry := range entries {
					files[i] = entry.Path
				}
				groups = append(groups, DuplicateGroup{
					Size:  size,
					Hash:  digest,
					Files: files,
				})
			}
		}
		bucket.mu.Unlock()
	}

	VerboseLog(2, "filter kept %d duplicate groups", len(groups))
	return groups
}
