package ldup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/google/vectorio"
	"golang.org/x/sys/unix"
)

// iovMax is the most buffers one writev(2) call accepts on Linux
const iovMax = 1024

// Reporter renders duplicate groups in one of the supported output formats.
// Groups are always written ordered by size and then hash.
type Reporter struct {
	Color bool // emphasise group headers in human output

	w      io.Writer
	format string
	bold   *color.Color
}

// NewReporter creates a reporter writing to w. Color is switched on when w is
// a terminal.
func NewReporter(w io.Writer, format string) (*Reporter, error) {
	format = strings.ToLower(format)
	if err := ValidateOutputFormat(format); err != nil {
		return nil, err
	}
	return &Reporter{
		Color:  isTerminal(w),
		w:      w,
		format: format,
		bold:   color.New(color.Bold),
	}, nil
}

// Report writes every group
func (r *Reporter) Report(groups []DuplicateGroup) error {
	order := newGroupOrder()
	for _, group := range groups {
		if !order.Insert(group) {
			VerboseLog(1, "dropping repeated group for size %d hash %s", group.Size, group.Hash)
		}
	}
	VerboseLog(2, "reporting %d duplicate groups", order.Length())

	switch r.format {
	case FormatJSON:
		return r.writeJSON(order)
	case FormatFdupes:
		return r.writeRecords(order, r.fdupesRecord)
	default:
		return r.writeRecords(order, r.humanRecord)
	}
}

// writeJSON emits {"size": {"HASH": ["file", ...]}} with sizes in numeric
// order and hashes in lexicographic order, indented by two spaces
func (r *Reporter) writeJSON(order *groupOrder) error {
	var compact bytes.Buffer
	var encodeErr error
	currentSize := ""

	compact.WriteByte('{')
	order.ForEach(func(group *DuplicateGroup, sizeKey string) bool {
		if sizeKey != currentSize {
			if currentSize != "" {
				compact.WriteString("},")
			}
			currentSize = sizeKey
			compact.WriteString(`"` + sizeKey + `":{`)
		} else {
			compact.WriteByte(',')
		}

		if encodeErr = writeJSONString(&compact, group.Hash); encodeErr != nil {
			return false
		}
		compact.WriteString(":[")
		for i, file := range group.Files {
			if i > 0 {
				compact.WriteByte(',')
			}
			if encodeErr = writeJSONString(&compact, file); encodeErr != nil {
				return false
			}
		}
		compact.WriteByte(']')
		return true
	})
	if encodeErr != nil {
		return fmt.Errorf("failed to encode report: %w", encodeErr)
	}
	if currentSize != "" {
		compact.WriteByte('}')
	}
	compact.WriteByte('}')

	var indented bytes.Buffer
	if err := json.Indent(&indented, compact.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("failed to indent report: %w", err)
	}
	indented.WriteByte('\n')

	if _, err := r.w.Write(indented.Bytes()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// writeJSONString encodes s as a JSON string without HTML escaping. Bytes
// that are not valid UTF-8 become \udc80-\udcff escapes (surrogateescape),
// so a reported path still maps back to the bytes on disk.
func writeJSONString(buf *bytes.Buffer, s string) error {
	buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			if err := writeJSONFragment(buf, s[start:i]); err != nil {
				return err
			}
			fmt.Fprintf(buf, `\udc%02x`, s[i])
			i++
			start = i
			continue
		}
		i += size
	}
	if err := writeJSONFragment(buf, s[start:]); err != nil {
		return err
	}
	buf.WriteByte('"')
	return nil
}

// writeJSONFragment writes the escaped body of a valid UTF-8 string, without
// the surrounding quotes
func writeJSONFragment(buf *bytes.Buffer, s string) error {
	if s == "" {
		return nil
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	quoted := bytes.TrimRight(tmp.Bytes(), "\n")
	buf.Write(quoted[1 : len(quoted)-1])
	return nil
}

// humanRecord is "HASH SIZE", then each file indented by two spaces, then a
// blank line
func (r *Reporter) humanRecord(group *DuplicateGroup) [][]byte {
	header := fmt.Sprintf("%s %d", group.Hash, group.Size)
	if r.Color {
		r.bold.EnableColor()
		header = r.bold.Sprint(header)
	}

	record := make([][]byte, 0, len(group.Files)+2)
	record = append(record, []byte(header+"\n"))
	for _, file := range group.Files {
		record = append(record, []byte("  "+file+"\n"))
	}
	return append(record, []byte("\n"))
}

// fdupesRecord lists the files one per line followed by a blank line
func (r *Reporter) fdupesRecord(group *DuplicateGroup) [][]byte {
	record := make([][]byte, 0, len(group.Files)+1)
	for _, file := range group.Files {
		record = append(record, []byte(file+"\n"))
	}
	return append(record, []byte("\n"))
}

func (r *Reporter) writeRecords(order *groupOrder, render func(*DuplicateGroup) [][]byte) error {
	var writeErr error
	order.ForEach(func(group *DuplicateGroup, _ string) bool {
		writeErr = writeRecord(r.w, render(group))
		return writeErr == nil
	})
	if writeErr != nil {
		return fmt.Errorf("failed to write report: %w", writeErr)
	}
	return nil
}

// writeRecord sends one group's lines. Files get a single writev(2) per
// iovMax buffers; anything a short write leaves behind goes out with Write.
func writeRecord(w io.Writer, bufs [][]byte) error {
	f, ok := w.(*os.File)
	if !ok {
		for _, buf := range bufs {
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	}

	for len(bufs) > 0 {
		batch := bufs
		if len(batch) > iovMax {
			batch = batch[:iovMax]
		}
		bufs = bufs[len(batch):]

		total := 0
		for _, buf := range batch {
			total += len(buf)
		}

		nw, err := vectorio.Writev(f, batch)
		if err != nil {
			return err
		}
		if nw < total {
			if err := writeRemainder(f, batch, nw); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeRemainder writes whatever of batch lies past the first skip bytes
func writeRemainder(f *os.File, batch [][]byte, skip int) error {
	for _, buf := range batch {
		if skip >= len(buf) {
			skip -= len(buf)
			continue
		}
		if _, err := f.Write(buf[skip:]); err != nil {
			return err
		}
		skip = 0
	}
	return nil
}

// isTerminal reports whether w is a terminal device
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}
