package ldup

import (
	"strings"
)

// Hash type constants
const (
	HashTypeSHA1   uint16 = 1 // SHA-1 (20 bytes)
	HashTypeSHA256 uint16 = 2 // SHA-256 (32 bytes)
	HashTypeSHA512 uint16 = 3 // SHA-512 (64 bytes)
)

// Hash size constants
const (
	HashSizeSHA1   = 20 // SHA-1 hash size in bytes
	HashSizeSHA256 = 32 // SHA-256 hash size in bytes
	HashSizeSHA512 = 64 // SHA-512 hash size in bytes
)

// HashTypeName returns the human-readable name for a hash type
func HashTypeName(hashType uint16) string {
	switch hashType {
	case HashTypeSHA1:
		return "sha1"
	case HashTypeSHA256:
		return "sha256"
	case HashTypeSHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// HashTypeFromName returns the hash type constant from a name (case-insensitive)
func HashTypeFromName(name string) (uint16, bool) {
	switch strings.ToLower(name) {
	case "sha1":
		return HashTypeSHA1, true
	case "sha256":
		return HashTypeSHA256, true
	case "sha512":
		return HashTypeSHA512, true
	default:
		return 0, false
	}
}

// Output formats
const (
	FormatHuman  = "human"
	FormatJSON   = "json"
	FormatFdupes = "fdupes"
)

// Symlink modes for file symlinks met during a walk
const (
	SymlinkNone      = "none"      // skip file symlinks
	SymlinkContained = "contained" // keep symlinks whose target stays under the root
	SymlinkAll       = "all"       // keep every symlink that resolves to a regular file
)

// Error policies for path-access failures
const (
	PolicySkip  = "skip"
	PolicyAbort = "abort"
)

// Defaults
const (
	DefaultHashAlgorithm = "sha256"
	DefaultHashWorkers   = 1
	DefaultBlockSize     = 64 * 1024 // used when stat(2) gives no preferred block size
	MaxHashWorkers       = 64
)

// Debug flag names understood by IsDebugEnabled
const (
	DebugWalk  = "walk"
	DebugIndex = "index"
	DebugHash  = "hash"
)
