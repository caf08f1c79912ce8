package fonts

import (
	"testing"
)

func TestPlanner_RegisterIsIdempotent(t *testing.T) {
	p := NewPlanner()
	p.Register("Body", []byte("first"), true, true)
	p.RecordText("Body", "abc")
	p.Register("Body", []byte("second"), false, false)

	u, ok := p.Usage("Body")
	if !ok {
		t.Fatal("usage missing")
	}
	if string(u.Program) != "first" {
		t.Fatalf("re-registration replaced program: %q", u.Program)
	}
	if !u.Subsetting {
		t.Fatal("re-registration cleared subsetting flag")
	}
	if u.UsedCount() != 3 {
		t.Fatalf("re-registration reset used set: %d", u.UsedCount())
	}
}

func TestPlanner_UsageAccumulatesMonotonically(t *testing.T) {
	p := NewPlanner()
	p.Register("Body", nil, true, true)
	p.RecordText("Body", "AB")
	p.RecordText("Body", "BC")
	p.RecordRune("Body", 'A')

	u, _ := p.Usage("Body")
	got := u.UsedRunes()
	want := []rune{'A', 'B', 'C'}
	if len(got) != len(want) {
		t.Fatalf("used = %q, want %q", string(got), string(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("used = %q, want %q", string(got), string(want))
		}
	}
}

func TestPlanner_RecordForUnknownFontIsIgnored(t *testing.T) {
	p := NewPlanner()
	p.RecordText("Ghost", "abc")
	if p.Registered("Ghost") {
		t.Fatal("recording created a registration")
	}
}

func TestPlanner_SubsettingDisabledPassesOriginalThrough(t *testing.T) {
	p := NewPlanner()
	program := []byte("not a real font")
	p.Register("Body", program, false, true)
	p.RecordText("Body", "hello")

	results, err := p.PerformSubsetting(NewManager())
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	res := results[0]
	if res.Subsetted {
		t.Fatal("disabled subsetting still subsetted")
	}
	if string(res.Data) != string(program) {
		t.Fatal("original bytes not passed through")
	}
}

func TestPlanner_EmptyUsageSkipsSubsetting(t *testing.T) {
	p := NewPlanner()
	p.Register("Body", []byte("program"), true, true)

	if _, err := p.PerformSubsetting(NewManager()); err != nil {
		t.Fatalf("subset: %v", err)
	}
	res, ok := p.Result("Body")
	if !ok || res.Subsetted {
		t.Fatalf("empty usage should pass through, got %+v", res)
	}
}

func TestPlanner_UnparsableProgramFallsBack(t *testing.T) {
	p := NewPlanner()
	program := []byte("definitely not sfnt")
	p.Register("Body", program, true, true)
	p.RecordText("Body", "x")

	if _, err := p.PerformSubsetting(NewManager()); err != nil {
		t.Fatalf("subsetting pass must not fail the document: %v", err)
	}
	data, err := p.FinalProgram("Body")
	if err != nil {
		t.Fatalf("final program: %v", err)
	}
	if string(data) != string(program) {
		t.Fatal("fallback did not keep original bytes")
	}
}

func TestPlanner_FinalProgramUnknownFont(t *testing.T) {
	p := NewPlanner()
	if _, err := p.FinalProgram("Ghost"); err == nil {
		t.Fatal("unknown font did not fail")
	}
}
