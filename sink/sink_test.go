package sink

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriter_OffsetTracksEveryWrite(t *testing.T) {
	w := NewBuffer()
	w.WriteString("abc")
	if got := w.Offset(); got != 3 {
		t.Fatalf("offset after WriteString = %d, want 3", got)
	}
	w.WriteByte('x')
	w.WriteLine("yz")
	if got := w.Offset(); got != 7 {
		t.Fatalf("offset after WriteLine = %d, want 7", got)
	}
	w.WriteInt(-42)
	if got := w.Offset(); got != 10 {
		t.Fatalf("offset after WriteInt = %d, want 10", got)
	}
	if got := string(w.Bytes()); got != "abcxyz\n-42" {
		t.Fatalf("buffer = %q", got)
	}
}

func TestFormatFloat_TrimsTrailingZeros(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{-1.5, "-1.5"},
		{595.276, "595.276"},
		{0.500000, "0.5"},
		{100.0, "100"},
		{0.123456, "0.123456"},
	}
	for _, c := range cases {
		if got := FormatFloat(c.in); got != c.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWriter_WriteFloatUsesTrimmedForm(t *testing.T) {
	w := NewBuffer()
	w.WriteFloat(72.0)
	w.WriteByte(' ')
	w.WriteFloat(0.25)
	if got := string(w.Bytes()); got != "72 0.25" {
		t.Fatalf("got %q", got)
	}
}

func TestWriteFile_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.pdf")

	if err := WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("content = %q, want %q", data, "second")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
