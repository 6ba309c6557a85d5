package ldup

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// HashAlgorithm represents a hash algorithm configuration
type HashAlgorithm struct {
	Name    string
	TypeID  uint16
	Size    int
	NewFunc func() hash.Hash
}

// GetHashAlgorithm returns the hash algorithm configuration for the given name
func GetHashAlgorithm(name string) (*HashAlgorithm, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return &HashAlgorithm{
			Name:    "sha1",
			TypeID:  HashTypeSHA1,
			Size:    HashSizeSHA1,
			NewFunc: func() hash.Hash { return sha1.New() },
		}, nil
	case "sha256":
		return &HashAlgorithm{
			Name:    "sha256",
			TypeID:  HashTypeSHA256,
			Size:    HashSizeSHA256,
			NewFunc: func() hash.Hash { return sha256.New() },
		}, nil
	case "sha512":
		return &HashAlgorithm{
			Name:    "sha512",
			TypeID:  HashTypeSHA512,
			Size:    HashSizeSHA512,
			NewFunc: func() hash.Hash { return sha512.New() },
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, name)
	}
}

// ContentHasher produces a content digest for a single file
type ContentHasher interface {
	HashFile(path string) (string, error)
}

// FileHasher streams a file through a hash algorithm in fixed-size chunks.
// A zero BufferSize uses the file's preferred I/O block size.
type FileHasher struct {
	Algorithm    *HashAlgorithm
	BufferSize   int
	ShutdownChan <-chan struct{}

	bytesHashed atomic.Int64
}

// NewFileHasher creates a hasher for the named algorithm
func NewFileHasher(algorithm string, bufferSize int, shutdownChan <-chan struct{}) (*FileHasher, error) {
	alg, err := GetHashAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	if bufferSize < 0 {
		return nil, fmt.Errorf("hash buffer size must not be negative, got: %d", bufferSize)
	}
	return &FileHasher{
		Algorithm:    alg,
		BufferSize:   bufferSize,
		ShutdownChan: shutdownChan,
	}, nil
}

// HashFile returns the digest of the file's contents as uppercase hex
func (fh *FileHasher) HashFile(path string) (string, error) {
	sum, n, err := HashFileInterruptible(path, fh.Algorithm, fh.BufferSize, fh.ShutdownChan)
	fh.bytesHashed.Add(n)
	if err != nil {
		return "", err
	}
	debugLog(DebugHash, "hashed %s (%d bytes)", path, n)
	return FormatDigest(sum), nil
}

// BytesHashed returns the total number of bytes read by this hasher
func (fh *FileHasher) BytesHashed() int64 {
	return fh.bytesHashed.Load()
}

// FormatDigest renders a digest in its canonical uppercase hex form
func FormatDigest(sum []byte) string {
	return strings.ToUpper(hex.EncodeToString(sum))
}

// HashBytesToHexString hashes an in-memory value, mostly useful for tests and
// for comparing a known content against a reported group
func HashBytesToHexString(data []byte, algorithm *HashAlgorithm) string {
	hasher := algorithm.NewFunc()
	hasher.Write(data)
	return FormatDigest(hasher.Sum(nil))
}

// HashFileInterruptible calculates the hash of a file reading bufferSize bytes at a time
// and checks for shutdown signals between buffer reads. It also returns the number of
// bytes read, even on failure.
func HashFileInterruptible(filePath string, algorithm *HashAlgorithm, bufferSize int, shutdownChan <-chan struct{}) ([]byte, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	if bufferSize <= 0 {
		bufferSize = preferredBlockSize(file)
	}

	// Advisory only; a filesystem that refuses it still reads fine
	_ = unix.Fadvise(int(file.Fd()), 0, 0, unix.FADV_SEQUENTIAL)

	hasher := algorithm.NewFunc()
	buffer := make([]byte, bufferSize)
	var total int64

	for {
		select {
		case <-shutdownChan:
			return nil, total, fmt.Errorf("hashing %s: %w", filePath, ErrInterrupted)
		default:
		}

		n, err := file.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
			total += int64(n)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, total, fmt.Errorf("failed to read from file %s: %w", filePath, err)
		}
	}

	return hasher.Sum(nil), total, nil
}

// preferredBlockSize asks the filesystem for its efficient I/O size
func preferredBlockSize(file *os.File) int {
	var st unix.Stat_t
	if err := unix.Fstat(int(file.Fd()), &st); err != nil || st.Blksize <= 0 {
		return DefaultBlockSize
	}
	return int(st.Blksize)
}
