package ldup

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha512"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestFileHasher_EmptyFile(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "empty", nil)

	hasher, err := NewFileHasher("sha256", 0, nil)
	if err != nil {
		t.Fatalf("Failed to create hasher: %v", err)
	}

	digest, err := hasher.HashFile(path)
	if err != nil {
		t.Fatalf("Failed to hash empty file: %v", err)
	}

	expected := "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855"
	if digest != expected {
		t.Errorf("Expected digest %s, got %s", expected, digest)
	}
}

func TestFileHasher_Idempotent(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "data", bytes.Repeat([]byte("ldup"), 10000))

	hasher, err := NewFileHasher("sha256", 0, nil)
	if err != nil {
		t.Fatalf("Failed to create hasher: %v", err)
	}

	first, err := hasher.HashFile(path)
	if err != nil {
		t.Fatalf("First hash failed: %v", err)
	}
	second, err := hasher.HashFile(path)
	if err != nil {
		t.Fatalf("Second hash failed: %v", err)
	}

	if first != second {
		t.Errorf("Hashing the same file twice gave %s and %s", first, second)
	}
	if first != strings.ToUpper(first) {
		t.Errorf("Digest should be uppercase hex, got %s", first)
	}
	if hasher.BytesHashed() != 80000 {
		t.Errorf("Expected 80000 bytes hashed, got %d", hasher.BytesHashed())
	}
}

func TestFileHasher_BufferSizeDoesNotChangeDigest(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789abcdef"), 4099)
	path := writeTestFile(t, t.TempDir(), "data", content)

	var digests []string
	for _, bufferSize := range []int{0, 1, 7, 4096, 1 << 20} {
		hasher, err := NewFileHasher("sha256", bufferSize, nil)
		if err != nil {
			t.Fatalf("Failed to create hasher with buffer %d: %v", bufferSize, err)
		}
		digest, err := hasher.HashFile(path)
		if err != nil {
			t.Fatalf("Hash with buffer %d failed: %v", bufferSize, err)
		}
		digests = append(digests, digest)
	}

	for i := 1; i < len(digests); i++ {
		if digests[i] != digests[0] {
			t.Errorf("Digest %d differs: %s vs %s", i, digests[i], digests[0])
		}
	}
}

func TestFileHasher_Algorithms(t *testing.T) {
	content := []byte("hello world\n")
	path := writeTestFile(t, t.TempDir(), "hello", content)

	sum1 := sha1.Sum(content)
	sum512 := sha512.Sum512(content)

	testCases := []struct {
		algorithm string
		expected  string
	}{
		{"sha1", FormatDigest(sum1[:])},
		{"SHA512", FormatDigest(sum512[:])},
	}

	for _, tc := range testCases {
		hasher, err := NewFileHasher(tc.algorithm, 0, nil)
		if err != nil {
			t.Fatalf("Failed to create %s hasher: %v", tc.algorithm, err)
		}
		digest, err := hasher.HashFile(path)
		if err != nil {
			t.Fatalf("%s hash failed: %v", tc.algorithm, err)
		}
		if digest != tc.expected {
			t.Errorf("%s: expected %s, got %s", tc.algorithm, tc.expected, digest)
		}
	}
}

func TestFileHasher_DifferentContent(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a", []byte("aaaa"))
	b := writeTestFile(t, dir, "b", []byte("aaab"))

	hasher, err := NewFileHasher("sha256", 0, nil)
	if err != nil {
		t.Fatalf("Failed to create hasher: %v", err)
	}
	ha, _ := hasher.HashFile(a)
	hb, _ := hasher.HashFile(b)
	if ha == hb {
		t.Errorf("Different content should give different digests, both %s", ha)
	}
}

func TestFileHasher_Errors(t *testing.T) {
	if _, err := NewFileHasher("md5", 0, nil); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("Expected ErrUnsupportedAlgorithm, got %v", err)
	}
	if _, err := NewFileHasher("sha256", -1, nil); err == nil {
		t.Error("Negative buffer size should be rejected")
	}

	hasher, err := NewFileHasher("sha256", 0, nil)
	if err != nil {
		t.Fatalf("Failed to create hasher: %v", err)
	}
	_, err = hasher.HashFile(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestFileHasher_Interrupted(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "data", []byte("some content"))

	shutdown := make(chan struct{})
	close(shutdown)

	hasher, err := NewFileHasher("sha256", 0, shutdown)
	if err != nil {
		t.Fatalf("Failed to create hasher: %v", err)
	}
	_, err = hasher.HashFile(path)
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("Expected ErrInterrupted, got %v", err)
	}
}

func TestHashBytesToHexString(t *testing.T) {
	alg, err := GetHashAlgorithm("sha256")
	if err != nil {
		t.Fatalf("Failed to get algorithm: %v", err)
	}

	path := writeTestFile(t, t.TempDir(), "x", []byte("X"))
	hasher, _ := NewFileHasher("sha256", 0, nil)
	fromFile, err := hasher.HashFile(path)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if got := HashBytesToHexString([]byte("X"), alg); got != fromFile {
		t.Errorf("In-memory digest %s differs from file digest %s", got, fromFile)
	}
}

func TestGetHashAlgorithm(t *testing.T) {
	testCases := []struct {
		name   string
		typeID uint16
		size   int
		valid  bool
	}{
		{"sha1", HashTypeSHA1, HashSizeSHA1, true},
		{"sha256", HashTypeSHA256, HashSizeSHA256, true},
		{"sha512", HashTypeSHA512, HashSizeSHA512, true},
		{"invalid", 0, 0, false},
	}

	for _, tc := range testCases {
		algo, err := GetHashAlgorithm(tc.name)
		if tc.valid {
			if err != nil {
				t.Errorf("GetHashAlgorithm('%s') should succeed but got error: %v", tc.name, err)
				continue
			}
			if algo.TypeID != tc.typeID {
				t.Errorf("GetHashAlgorithm('%s') type ID = %d, expected %d", tc.name, algo.TypeID, tc.typeID)
			}
			if algo.Size != tc.size {
				t.Errorf("GetHashAlgorithm('%s') size = %d, expected %d", tc.name, algo.Size, tc.size)
			}
			if HashTypeName(algo.TypeID) != tc.name {
				t.Errorf("HashTypeName(%d) = %s, expected %s", algo.TypeID, HashTypeName(algo.TypeID), tc.name)
			}
		} else if err == nil {
			t.Errorf("GetHashAlgorithm('%s') should fail but succeeded", tc.name)
		}
	}
}

func TestStatSizer(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "ten", []byte("0123456789"))

	size, err := StatSizer{}.FileSize(path)
	if err != nil {
		t.Fatalf("FileSize failed: %v", err)
	}
	if size != 10 {
		t.Errorf("Expected size 10, got %d", size)
	}

	if _, err := (StatSizer{}).FileSize(dir); err == nil {
		t.Error("A directory should not have a file size")
	}
	if _, err := (StatSizer{}).FileSize(filepath.Join(dir, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
