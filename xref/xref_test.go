package xref

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/officekit/pdfgen/sink"
)

func TestTable_EmitClassicFormat(t *testing.T) {
	table := NewTable()
	table.Record(1, 15)
	table.Record(2, 120)
	table.Record(4, 3456) // gap at 3

	w := sink.NewBuffer()
	w.WriteString("stub")
	start := table.Emit(w)
	if start != 4 {
		t.Fatalf("section offset = %d, want 4", start)
	}

	want := "stub" +
		"xref\n" +
		"0 5\n" +
		"0000000000 65535 f \n" +
		"0000000015 00000 n \n" +
		"0000000120 00000 n \n" +
		"0000000000 65535 f \n" +
		"0000003456 00000 n \n"
	if got := string(w.Bytes()); got != want {
		t.Fatalf("emitted %q\nwant %q", got, want)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	table := NewTable()
	offsets := map[int]int64{1: 9, 2: 52, 3: 107, 5: 388}
	for n, off := range offsets {
		table.Record(n, off)
	}

	w := sink.NewBuffer()
	w.WriteString("%PDF-1.7\n")
	start := table.Emit(w)
	w.WriteLine("trailer")
	w.WriteLine("<< /Size 6 /Root 1 0 R >>")
	w.WriteLine("startxref")
	w.WriteLine(fmt.Sprintf("%d", start))
	w.WriteLine("%%EOF")

	parsed, err := Parse(w.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Start != start {
		t.Fatalf("start = %d, want %d", parsed.Start, start)
	}
	if diff := cmp.Diff(offsets, parsed.Offsets); diff != "" {
		t.Fatalf("offsets mismatch (-want +got):\n%s", diff)
	}
	if parsed.Size != 6 {
		t.Fatalf("size = %d, want 6", parsed.Size)
	}
	if parsed.RootNumber != 1 {
		t.Fatalf("root = %d, want 1", parsed.RootNumber)
	}
}

func TestParse_MissingStartxref(t *testing.T) {
	if _, err := Parse([]byte("%PDF-1.7\nno pointer here")); err == nil {
		t.Fatal("missing startxref did not fail")
	}
}

func TestParse_OffsetOutOfRange(t *testing.T) {
	if _, err := Parse([]byte("startxref\n99999\n%%EOF\n")); err == nil {
		t.Fatal("out-of-range offset did not fail")
	}
}

func TestTable_LookupAndObjects(t *testing.T) {
	table := NewTable()
	table.Record(7, 700)
	table.Record(2, 200)

	if off, ok := table.Lookup(7); !ok || off != 700 {
		t.Fatalf("lookup(7) = %d,%v", off, ok)
	}
	if _, ok := table.Lookup(3); ok {
		t.Fatal("lookup(3) found a phantom entry")
	}
	got := table.Objects()
	if len(got) != 2 || got[0] != 2 || got[1] != 7 {
		t.Fatalf("objects = %v, want [2 7]", got)
	}
	if table.MaxObjectNumber() != 7 {
		t.Fatalf("max = %d", table.MaxObjectNumber())
	}
}
