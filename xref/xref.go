// Package xref builds and emits the classic cross-reference table mapping
// object numbers to byte offsets, and parses one back out of a generated
// file so tests can verify offsets bit-exactly.
package xref

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/officekit/pdfgen/sink"
)

// Table accumulates object offsets during serialization.
type Table struct {
	entries map[int]int64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[int]int64)}
}

// Record stores the byte offset at which objNum's definition begins.
func (t *Table) Record(objNum int, offset int64) {
	t.entries[objNum] = offset
}

// Lookup returns the recorded offset for objNum.
func (t *Table) Lookup(objNum int) (int64, bool) {
	off, ok := t.entries[objNum]
	return off, ok
}

// Len reports the number of recorded objects.
func (t *Table) Len() int { return len(t.entries) }

// MaxObjectNumber returns the highest recorded object number.
func (t *Table) MaxObjectNumber() int {
	max := 0
	for n := range t.entries {
		if n > max {
			max = n
		}
	}
	return max
}

// Objects returns the recorded object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for n := range t.entries {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Emit writes the table in classic format: one section starting at object 0
// with the free-list head entry, then a 20-byte line per object. Gaps in
// the number space come out as free entries.
func (t *Table) Emit(w *sink.Writer) int64 {
	offset := w.Offset()
	max := t.MaxObjectNumber()

	w.WriteLine("xref")
	w.WriteLine(fmt.Sprintf("0 %d", max+1))
	w.WriteLine("0000000000 65535 f ")
	for n := 1; n <= max; n++ {
		if off, ok := t.entries[n]; ok {
			w.WriteLine(fmt.Sprintf("%010d 00000 n ", off))
		} else {
			w.WriteLine("0000000000 65535 f ")
		}
	}
	return offset
}

// Parsed is a cross-reference table read back from a file.
type Parsed struct {
	Offsets    map[int]int64
	Size       int
	RootNumber int
	Start      int64
}

// Parse locates the startxref pointer at the end of data and reads the
// classic table it points at.
func Parse(data []byte) (*Parsed, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return nil, fmt.Errorf("xref: startxref not found")
	}
	var start int64 = -1
	sc := bufio.NewScanner(bytes.NewReader(data[idx+len("startxref"):]))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("xref: parse startxref value: %w", err)
		}
		start = v
		break
	}
	if start < 0 || start >= int64(len(data)) {
		return nil, fmt.Errorf("xref: offset %d out of range", start)
	}

	p := &Parsed{Offsets: make(map[int]int64), Start: start}
	sc = bufio.NewScanner(bytes.NewReader(data[start:]))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "xref" {
		return nil, fmt.Errorf("xref: keyword not found at offset %d", start)
	}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			break
		}
		header := strings.Fields(line)
		if len(header) != 2 {
			return nil, fmt.Errorf("xref: invalid subsection header %q", line)
		}
		first, err := strconv.Atoi(header[0])
		if err != nil {
			return nil, fmt.Errorf("xref: parse subsection start: %w", err)
		}
		count, err := strconv.Atoi(header[1])
		if err != nil {
			return nil, fmt.Errorf("xref: parse subsection count: %w", err)
		}
		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, fmt.Errorf("xref: truncated subsection")
			}
			fields := strings.Fields(strings.TrimSpace(sc.Text()))
			if len(fields) < 3 {
				return nil, fmt.Errorf("xref: invalid entry %q", sc.Text())
			}
			if fields[2] != "n" {
				continue
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("xref: parse entry offset: %w", err)
			}
			p.Offsets[first+i] = off
		}
	}

	if i := bytes.Index(data[start:], []byte("/Size")); i >= 0 {
		fmt.Sscanf(string(data[start+int64(i):]), "/Size %d", &p.Size)
	}
	if i := bytes.Index(data[start:], []byte("/Root")); i >= 0 {
		fmt.Sscanf(string(data[start+int64(i):]), "/Root %d", &p.RootNumber)
	}
	return p, nil
}
