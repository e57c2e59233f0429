package mirtext_test

import (
	"strings"
	"testing"

	"tarn/internal/diag"
	"tarn/internal/mir"
	"tarn/internal/mirtext"
	"tarn/internal/source"
	"tarn/internal/testkit"
	"tarn/internal/types"
)

func parseWithFile(t *testing.T, src string) (*mir.Module, *source.File) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("spans.tir", []byte(src))
	bag := diag.NewBag(64)
	ti := types.NewInterner()
	m, ok := mirtext.Parse(fs.Get(id), ti, diag.BagReporter{Bag: bag})
	if !ok {
		t.Fatalf("Parse failed: %v", bagCodes(bag))
	}
	return m, fs.Get(id)
}

func TestFunctionSpanEndsAtClosingBrace(t *testing.T) {
	src := "fn @id(%x: $Int) -> $Int {\nbb0:\n\treturn %x\n}\n"
	m, _ := parseWithFile(t, src)

	fid, exists := m.FuncByName("id")
	if !exists {
		t.Fatal("function @id not found")
	}
	f := m.Func(fid)
	if f.Span.Start != 0 {
		t.Errorf("Span.Start = %d, want 0", f.Span.Start)
	}
	wantEnd := uint32(strings.LastIndexByte(src, '}') + 1)
	if f.Span.End != wantEnd {
		t.Errorf("Span.End = %d, want %d (past closing brace)", f.Span.End, wantEnd)
	}
}

func TestSpanInvariantsOnParsedModule(t *testing.T) {
	src := `struct Pair { a: $Int, b: $Int }

fn @ext(%n: $Int) -> $Int;

fn @sum(%c: $Bool) -> $Int {
bb0:
	%box = alloc $Pair
	%pa = elem_addr %box, 0
	%one = const 1 : $Int
	store %one to %pa
	if %c then bb1 else bb2
bb1:
	%pb = elem_addr %box, 1
	store %one to %pb
	goto bb2
bb2:
	%back = load %pa
	dealloc %box
	return %back
}
`
	m, sf := parseWithFile(t, src)
	if err := testkit.CheckSpanInvariants(m, sf); err != nil {
		t.Fatalf("CheckSpanInvariants: %v", err)
	}
	if err := mir.Validate(m); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
