// Package ldup finds duplicate files by content.
//
// Files are first classified by size. A file is only hashed once a second
// file of the same size turns up, so in a typical tree most files are never
// read at all:
//
//	idx, _ := ldup.NewDuplicateIndex(ldup.StatSizer{}, hasher, ldup.PolicySkip)
//	for _, name := range names {
//		idx.Admit(name)
//	}
//	groups := ldup.Filter(idx)
//
// # Walking directories
//
// Finder wires a Walker, which applies the recursive, hidden, symlink and
// ignore policies, to a DuplicateIndex:
//
//	finder := ldup.NewFinder(cwd, opts)
//	groups, stats, err := finder.FindDuplicates([]string{"."}, nil)
//
// # Reporting
//
// Reporter writes groups ordered by size and hash as human text, JSON or an
// fdupes-style list:
//
//	r, _ := ldup.NewReporter(os.Stdout, ldup.FormatJSON)
//	r.Report(groups)
//
// # Configuration
//
// Config reads an ini file ($XDG_CONFIG_HOME/ldup/config by default),
// LDUP_* environment variables and "key:value" overrides.
package ldup
