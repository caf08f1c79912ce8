package objects

import (
	"testing"

	"github.com/officekit/pdfgen/serializer"
	"github.com/officekit/pdfgen/sink"
)

func render(t *testing.T, o *Object) string {
	t.Helper()
	w := sink.NewBuffer()
	s := serializer.New(w)
	o.Encode(s)
	if err := s.Close(); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(w.Bytes())
}

func TestDict_KeepsInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("Zeta", Integer(1))
	d.Set("Alpha", Integer(2))
	d.Set("Mid", Integer(3))
	d.Set("Zeta", Integer(9)) // overwrite keeps position

	want := []string{"Zeta", "Alpha", "Mid"}
	got := d.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
	if v, _ := d.Get("Zeta"); v != Integer(9) {
		t.Fatalf("overwrite lost: %v", v)
	}
}

func TestObject_EncodeCatalog(t *testing.T) {
	o := New(ObjectID{Number: 1}, KindCatalog)
	o.Dict.Set("Type", Name("Catalog"))
	o.Dict.Set("Pages", Ref(ObjectID{Number: 2}))

	want := "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n"
	if got := render(t, o); got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestObject_EncodeStreamKind(t *testing.T) {
	o := New(ObjectID{Number: 4}, KindContent)
	o.SetStream([]byte("0 0 10 10 re f\n"))

	got := render(t, o)
	want := "4 0 obj\n<< /Length 15 >>\nstream\n0 0 10 10 re f\n\nendstream\nendobj\n"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestObject_HasStreamPerKind(t *testing.T) {
	withStream := []Kind{KindStream, KindContent, KindFontFile, KindToUnicode, KindImage}
	without := []Kind{KindDictionary, KindCatalog, KindPages, KindPage, KindFont, KindFontDescriptor, KindCIDFont, KindInfo}
	for _, k := range withStream {
		if !New(ObjectID{Number: 1}, k).HasStream() {
			t.Errorf("%v should carry a stream", k)
		}
	}
	for _, k := range without {
		if New(ObjectID{Number: 1}, k).HasStream() {
			t.Errorf("%v should not carry a stream", k)
		}
	}
}

func TestEncodeValue_NestedStructures(t *testing.T) {
	inner := NewDict()
	inner.Set("Registry", String("Adobe"))
	inner.Set("Supplement", Integer(0))

	o := New(ObjectID{Number: 7}, KindCIDFont)
	o.Dict.Set("CIDSystemInfo", inner)
	o.Dict.Set("W", Array{Integer(3), Array{Real(500), Real(612.5)}})

	got := render(t, o)
	want := "7 0 obj\n<< /CIDSystemInfo << /Registry (Adobe) /Supplement 0 >> /W [3 [500 612.5]] >>\nendobj\n"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}
