package ldup

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderReport(t *testing.T, format string, groups []DuplicateGroup) string {
	t.Helper()
	var buf bytes.Buffer
	reporter, err := NewReporter(&buf, format)
	require.NoError(t, err)
	assert.False(t, reporter.Color, "a buffer is never a terminal")
	require.NoError(t, reporter.Report(groups))
	return buf.String()
}

func TestReporter_JSONShape(t *testing.T) {
	groups := []DuplicateGroup{{Size: 10, Hash: "ABC123", Files: []string{"/d/a", "/d/b"}}}

	expected := `{
  "10": {
    "ABC123": [
      "/d/a",
      "/d/b"
    ]
  }
}
`
	assert.Equal(t, expected, renderReport(t, FormatJSON, groups))
}

func TestReporter_JSONOrdering(t *testing.T) {
	groups := []DuplicateGroup{
		{Size: 10, Hash: "BB", Files: []string{"b1", "b2"}},
		{Size: 9, Hash: "CC", Files: []string{"c1", "c2", "c3"}},
		{Size: 10, Hash: "AA", Files: []string{"a1", "a2"}},
	}

	out := renderReport(t, FormatJSON, groups)

	// Sizes are numeric keys: 9 before 10
	assert.Less(t, strings.Index(out, `"9"`), strings.Index(out, `"10"`))
	assert.Less(t, strings.Index(out, `"AA"`), strings.Index(out, `"BB"`))

	var decoded map[string]map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, map[string]map[string][]string{
		"9":  {"CC": {"c1", "c2", "c3"}},
		"10": {"AA": {"a1", "a2"}, "BB": {"b1", "b2"}},
	}, decoded)
}

func TestReporter_JSONNoHTMLEscaping(t *testing.T) {
	groups := []DuplicateGroup{{Size: 1, Hash: "H", Files: []string{"a&b<c>", "d\"e"}}}

	out := renderReport(t, FormatJSON, groups)
	assert.Contains(t, out, `"a&b<c>"`)
	assert.Contains(t, out, `"d\"e"`)
}

func TestReporter_EmptyResult(t *testing.T) {
	assert.Equal(t, "{}\n", renderReport(t, FormatJSON, nil))
	assert.Equal(t, "", renderReport(t, FormatHuman, nil))
	assert.Equal(t, "", renderReport(t, FormatFdupes, nil))
}

func TestReporter_Human(t *testing.T) {
	groups := []DuplicateGroup{
		{Size: 20, Hash: "BEEF", Files: []string{"x", "y"}},
		{Size: 3, Hash: "CAFE", Files: []string{"p", "q", "r"}},
	}

	expected := "CAFE 3\n  p\n  q\n  r\n\nBEEF 20\n  x\n  y\n\n"
	assert.Equal(t, expected, renderReport(t, "HUMAN", groups))
}

func TestReporter_Fdupes(t *testing.T) {
	groups := []DuplicateGroup{
		{Size: 20, Hash: "BEEF", Files: []string{"x", "y"}},
		{Size: 3, Hash: "CAFE", Files: []string{"p", "q"}},
	}

	assert.Equal(t, "p\nq\n\nx\ny\n\n", renderReport(t, FormatFdupes, groups))
}

func TestReporter_ColorHeader(t *testing.T) {
	var buf bytes.Buffer
	reporter, err := NewReporter(&buf, FormatHuman)
	require.NoError(t, err)
	reporter.Color = true

	require.NoError(t, reporter.Report([]DuplicateGroup{{Size: 1, Hash: "AB", Files: []string{"f", "g"}}}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\x1b[1mAB 1\x1b["), "header should be bold, got %q", out)
	assert.True(t, strings.HasSuffix(out, "m\n  f\n  g\n\n"), "file lines stay plain, got %q", out)
}

func TestReporter_UnknownFormat(t *testing.T) {
	_, err := NewReporter(&bytes.Buffer{}, "xml")
	assert.Error(t, err)
}

func TestReporter_WritesToFile(t *testing.T) {
	// *os.File output goes through writev
	path := filepath.Join(t.TempDir(), "out")
	f, err := os.Create(path)
	require.NoError(t, err)

	files := make([]string, iovMax+10)
	for i := range files {
		files[i] = filepath.Join("dir", strings.Repeat("f", i%7+1))
	}
	groups := []DuplicateGroup{
		{Size: 5, Hash: "AA", Files: files},
		{Size: 6, Hash: "BB", Files: []string{"u", "v"}},
	}

	reporter, err := NewReporter(f, FormatFdupes)
	require.NoError(t, err)
	require.NoError(t, reporter.Report(groups))
	require.NoError(t, f.Close())

	var expected strings.Builder
	for _, file := range files {
		expected.WriteString(file + "\n")
	}
	expected.WriteString("\nu\nv\n\n")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, expected.String(), string(got))
}

func TestWriteRemainder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	f, err := os.Create(path)
	require.NoError(t, err)

	batch := [][]byte{[]byte("abc"), []byte("de"), []byte("fgh")}
	require.NoError(t, writeRemainder(f, batch, 4))
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "efgh", string(got))
}

func TestReporter_JSONInvalidUTF8Names(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	odd := filepath.Join(dir, "a\xff.txt")
	if err := os.WriteFile(odd, []byte("same"), 0644); err != nil {
		t.Skipf("Filesystem rejects non-UTF-8 names: %v", err)
	}
	writeTestFile(t, dir, "b.txt", []byte("same"))

	groups, _, err := NewFinder(dir, FinderOptions{}).FindDuplicates(nil, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	out := renderReport(t, FormatJSON, groups)
	assert.Contains(t, out, `a\udcff.txt"`)
	assert.NotContains(t, out, "�")
	assert.True(t, json.Valid([]byte(out)), "output must stay valid JSON:\n%s", out)
}

func TestWriteJSONString(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"plain", `"plain"`},
		{"a&b<c>", `"a&b<c>"`},
		{"quote\"tab\t", `"quote\"tab\t"`},
		{"héllo", `"héllo"`},
		{"\xff", `"\udcff"`},
		{"x\x80y\xc3", `"x\udc80y\udcc3"`},
		{"", `""`},
	}

	for _, tc := range testCases {
		var buf bytes.Buffer
		require.NoError(t, writeJSONString(&buf, tc.input))
		assert.Equal(t, tc.expected, buf.String(), "input %q", tc.input)
	}
}
