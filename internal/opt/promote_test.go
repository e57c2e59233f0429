package opt_test

import (
	"strings"
	"testing"

	"tarn/internal/diag"
	"tarn/internal/layout"
	"tarn/internal/mir"
	"tarn/internal/mirtext"
	"tarn/internal/opt"
	"tarn/internal/source"
	"tarn/internal/types"
)

func parseModule(t *testing.T, src string) (*mir.Module, *source.FileSet) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.tir", []byte(src))
	bag := diag.NewBag(64)
	m, ok := mirtext.Parse(fs.Get(id), types.NewInterner(), diag.BagReporter{Bag: bag})
	if !ok {
		t.Fatalf("Parse failed: %v", bagCodes(bag))
	}
	if err := mir.Validate(m); err != nil {
		t.Fatalf("input does not validate: %v", err)
	}
	return m, fs
}

func promoteFn(t *testing.T, m *mir.Module, name string, bag *diag.Bag) *mir.Func {
	t.Helper()
	id, ok := m.FuncByName(name)
	if !ok {
		t.Fatalf("function @%s not found", name)
	}
	f := m.Func(id)
	if err := opt.PromoteMemory(f, m.Types, layout.New(m.Types), diag.BagReporter{Bag: bag}); err != nil {
		t.Fatalf("PromoteMemory: %v", err)
	}
	if err := mir.Validate(m); err != nil {
		t.Fatalf("output does not validate: %v", err)
	}
	return f
}

func countOps(f *mir.Func, kind mir.OpKind) int {
	n := 0
	for bi := range f.Blocks {
		for ii := range f.Blocks[bi].Instrs {
			if f.Blocks[bi].Instrs[ii].Kind == kind {
				n++
			}
		}
	}
	return n
}

func findOp(f *mir.Func, kind mir.OpKind) *mir.Instr {
	for bi := range f.Blocks {
		for ii := range f.Blocks[bi].Instrs {
			if f.Blocks[bi].Instrs[ii].Kind == kind {
				return &f.Blocks[bi].Instrs[ii]
			}
		}
	}
	return nil
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func bagCodes(bag *diag.Bag) []diag.Code {
	out := make([]diag.Code, 0, bag.Len())
	for _, d := range bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func dumpFn(t *testing.T, m *mir.Module, f *mir.Func) string {
	t.Helper()
	var b strings.Builder
	if err := mir.DumpFunc(&b, m, f); err != nil {
		t.Fatalf("DumpFunc: %v", err)
	}
	return b.String()
}

func TestPromotePairOfScalars(t *testing.T) {
	m, _ := parseModule(t, `fn @pair() -> $Int {
bb0:
	%b = alloc $(Int, Int)
	%a0 = elem_addr %b, 0
	%a1 = elem_addr %b, 1
	%one = const 1 : $Int
	%two = const 2 : $Int
	store %one to %a0
	store %two to %a1
	%x = load %a0
	%y = load %a1
	%t = tuple (%x, %y)
	%r = extract %t, 0
	return %r
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "pair", bag)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	for _, kind := range []mir.OpKind{mir.OpAlloc, mir.OpElemAddr, mir.OpLoad, mir.OpStore} {
		if n := countOps(f, kind); n != 0 {
			t.Errorf("%v count = %d, want 0", kind, n)
		}
	}
	instrs := f.Blocks[0].Instrs
	if len(instrs) != 4 {
		t.Fatalf("len(Instrs) = %d, want 4 (two consts, tuple, extract)", len(instrs))
	}
	tup := findOp(f, mir.OpTuple)
	if tup == nil {
		t.Fatal("tuple instruction missing")
	}
	if tup.Tuple.Elems[0] != instrs[0].Result || tup.Tuple.Elems[1] != instrs[1].Result {
		t.Errorf("tuple elems = %v, want the two const results %%%d, %%%d",
			tup.Tuple.Elems, instrs[0].Result, instrs[1].Result)
	}
}

func TestPromoteCapturedElementStaysLoaded(t *testing.T) {
	m, _ := parseModule(t, `fn @sink(%p: $*Int) -> $Unit;

fn @mixed() -> $Int {
bb0:
	%b = alloc $(Int, Int)
	%a0 = elem_addr %b, 0
	%a1 = elem_addr %b, 1
	%one = const 1 : $Int
	%two = const 2 : $Int
	store %one to %a0
	store %two to %a1
	%f = func_ref @sink
	%u = apply %f(%a0)
	%x = load %a0
	%y = load %a1
	%t = tuple (%x, %y)
	%r = extract %t, 1
	return %r
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "mixed", bag)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Fatalf("load count = %d, want 1 (only the captured element keeps its load)", n)
	}
	if n := countOps(f, mir.OpAlloc); n != 1 {
		t.Errorf("alloc count = %d, want 1 (captured box must survive)", n)
	}
	// The surviving load must read element 0, the one whose address the
	// call captured.
	ld := findOp(f, mir.OpLoad)
	proj := mir.NoValueID
	for bi := range f.Blocks {
		for ii := range f.Blocks[bi].Instrs {
			in := &f.Blocks[bi].Instrs[ii]
			if in.Kind == mir.OpElemAddr && in.Result == ld.Load.Src {
				if in.ElemAddr.Index != 0 {
					t.Errorf("surviving load reads element %d, want 0", in.ElemAddr.Index)
				}
				proj = in.Result
			}
		}
	}
	if proj == mir.NoValueID {
		t.Error("surviving load does not read through an element projection")
	}
}

func TestPromoteMergeWithoutStoreDiagnoses(t *testing.T) {
	m, fs := parseModule(t, `fn @branchy(%c: $Bool) -> $Int {
bb0:
	%b = alloc $Int
	if %c then bb1 else bb2
bb1:
	%one = const 1 : $Int
	store %one to %b
	goto bb2
bb2:
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "branchy", bag)

	if bag.Len() != 1 {
		t.Fatalf("diagnostic count = %d, want 1: %v", bag.Len(), bagCodes(bag))
	}
	if !hasCode(bag, diag.OptMaybeUninit) {
		t.Fatalf("diagnostics = %v, want %v", bagCodes(bag), diag.OptMaybeUninit)
	}
	if hasCode(bag, diag.OptUseBeforeInit) {
		t.Error("merge of stored and unstored paths must not report a definite use-before-init")
	}
	golden := diag.FormatGoldenDiagnostics(bag.Items(), fs, false)
	if !strings.Contains(golden, "test.tir:10:") {
		t.Errorf("diagnostic not at the load line:\n%s", golden)
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Errorf("load count = %d, want 1 (diagnosed load stays)", n)
	}
	if n := countOps(f, mir.OpAlloc); n != 1 {
		t.Errorf("alloc count = %d, want 1", n)
	}
}

func TestPromoteUseBeforeAnyStore(t *testing.T) {
	m, _ := parseModule(t, `fn @oops() -> $Int {
bb0:
	%b = alloc $Int
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "oops", bag)

	if !hasCode(bag, diag.OptUseBeforeInit) {
		t.Fatalf("diagnostics = %v, want %v", bagCodes(bag), diag.OptUseBeforeInit)
	}
	if bag.Len() != 1 {
		t.Errorf("diagnostic count = %d, want 1", bag.Len())
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Errorf("load count = %d, want 1", n)
	}
}

func TestPromoteOpaqueAsOneUnit(t *testing.T) {
	m, _ := parseModule(t, `struct Handle opaque

fn @roundtrip(%h: $Handle) -> $Handle {
bb0:
	%b = alloc $Handle
	store %h to %b
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "roundtrip", bag)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := len(f.Blocks[0].Instrs); n != 0 {
		t.Fatalf("len(Instrs) = %d, want 0 (opaque box promoted as one unit)", n)
	}
	term := f.Blocks[0].Term
	if term.Return.Value != f.Params[0] {
		t.Errorf("return value = %%%d, want the parameter %%%d", term.Return.Value, f.Params[0])
	}
}

func TestPromoteStoreOnlyBoxErased(t *testing.T) {
	m, _ := parseModule(t, `fn @writeonly() -> $Unit {
bb0:
	%b = alloc $(Int, Int)
	%a0 = elem_addr %b, 0
	%one = const 1 : $Int
	store %one to %a0
	%two = const 2 : $Int
	store %two to %a0
	return
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "writeonly", bag)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	for _, kind := range []mir.OpKind{mir.OpAlloc, mir.OpElemAddr, mir.OpStore} {
		if n := countOps(f, kind); n != 0 {
			t.Errorf("%v count = %d, want 0 (write-only box dies with its stores)", kind, n)
		}
	}
	if n := countOps(f, mir.OpConst); n != 2 {
		t.Errorf("const count = %d, want 2 (dead values are a later pass's business)", n)
	}
}

func TestPromoteBookkeepingErased(t *testing.T) {
	m, _ := parseModule(t, `fn @boxed() -> $Int {
bb0:
	%b = alloc $Int
	retain %b
	%one = const 1 : $Int
	store %one to %b
	%x = load %b
	release %b
	dealloc %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "boxed", bag)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	instrs := f.Blocks[0].Instrs
	if len(instrs) != 1 || instrs[0].Kind != mir.OpConst {
		t.Fatalf("surviving instrs = %d, want just the const", len(instrs))
	}
	if got := f.Blocks[0].Term.Return.Value; got != instrs[0].Result {
		t.Errorf("return value = %%%d, want the const %%%d", got, instrs[0].Result)
	}
}

func TestPromoteWholeAggregateRoundtrip(t *testing.T) {
	m, _ := parseModule(t, `struct Point { x: $Int, y: $Int }

fn @whole(%p: $Point) -> $Point {
bb0:
	%b = alloc $Point
	store %p to %b
	%q = load %b
	return %q
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "whole", bag)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := len(f.Blocks[0].Instrs); n != 0 {
		t.Fatalf("len(Instrs) = %d, want 0", n)
	}
	if got := f.Blocks[0].Term.Return.Value; got != f.Params[0] {
		t.Errorf("return value = %%%d, want the parameter %%%d", got, f.Params[0])
	}
}

func TestPromoteElementwiseStoresKeepAggregateLoad(t *testing.T) {
	m, _ := parseModule(t, `struct Point { x: $Int, y: $Int }

fn @assemble() -> $Point {
bb0:
	%b = alloc $Point
	%ax = elem_addr %b, 0
	%ay = elem_addr %b, 1
	%one = const 1 : $Int
	%two = const 2 : $Int
	store %one to %ax
	store %two to %ay
	%q = load %b
	return %q
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "assemble", bag)

	// Each leaf is known from a different store, so the aggregate load
	// cannot be rewritten to a single value. Initialization is complete,
	// so there is nothing to diagnose either.
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Errorf("load count = %d, want 1", n)
	}
	if n := countOps(f, mir.OpAlloc); n != 1 {
		t.Errorf("alloc count = %d, want 1", n)
	}
}

func TestPromoteElementLoadFromAggregateStore(t *testing.T) {
	m, _ := parseModule(t, `struct Point { x: $Int, y: $Int }

fn @spread(%p: $Point) -> $Int {
bb0:
	%b = alloc $Point
	store %p to %b
	%ax = elem_addr %b, 0
	%x = load %ax
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "spread", bag)

	// The known value covers the whole aggregate while the load wants one
	// leaf; without value projection the rewrite is declined.
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Errorf("load count = %d, want 1", n)
	}
	if n := countOps(f, mir.OpAlloc); n != 1 {
		t.Errorf("alloc count = %d, want 1", n)
	}
}

func TestPromoteByRefCallBlocksPromotion(t *testing.T) {
	m, _ := parseModule(t, `fn @fill(%p: $&Int) -> $Unit;

fn @shared() -> $Int {
bb0:
	%b = alloc $Int
	%one = const 1 : $Int
	store %one to %b
	%f = func_ref @fill
	%u = apply %f(%b)
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "shared", bag)

	// The callee may overwrite the box, so the stored value is stale at
	// the load. Initialized memory is not an error.
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Errorf("load count = %d, want 1", n)
	}
	if n := countOps(f, mir.OpAlloc); n != 1 {
		t.Errorf("alloc count = %d, want 1", n)
	}
}

func TestPromoteIndirectSlotCountsAsInit(t *testing.T) {
	m, _ := parseModule(t, `fn @make(%out: $&Int) -> indirect $Int;

fn @viaslot() -> $Int {
bb0:
	%b = alloc $Int
	%f = func_ref @make
	%u = apply %f(%b)
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "viaslot", bag)

	// The out-slot is certainly written by the callee, so the later load
	// is neither promotable nor uninitialized.
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Errorf("load count = %d, want 1", n)
	}
	if n := countOps(f, mir.OpAlloc); n != 1 {
		t.Errorf("alloc count = %d, want 1", n)
	}
}

func TestPromotePartialApplyByRef(t *testing.T) {
	m, _ := parseModule(t, `fn @fill2(%n: $Int, %p: $&Int) -> $Unit;

fn @bind() -> $Int {
bb0:
	%b = alloc $Int
	%one = const 1 : $Int
	store %one to %b
	%f = func_ref @fill2
	%g = partial_apply %f(%b)
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "bind", bag)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Errorf("load count = %d, want 1 (closure may write through the bound address)", n)
	}
	if n := countOps(f, mir.OpPartialApply); n != 1 {
		t.Errorf("partial_apply count = %d, want 1", n)
	}
	if n := countOps(f, mir.OpAlloc); n != 1 {
		t.Errorf("alloc count = %d, want 1", n)
	}
}

func TestPromoteEscapeDoesNotPoisonEarlierBlocks(t *testing.T) {
	m, _ := parseModule(t, `fn @sink(%p: $*Int) -> $Unit;

fn @early() -> $Int {
bb0:
	%b = alloc $Int
	%one = const 1 : $Int
	store %one to %b
	%x = load %b
	goto bb1
bb1:
	%f = func_ref @sink
	%u = apply %f(%b)
	%y = load %b
	return %y
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "early", bag)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Fatalf("load count = %d, want 1 (load before the capture is promoted, load after stays)", n)
	}
	for ii := range f.Blocks[0].Instrs {
		if f.Blocks[0].Instrs[ii].Kind == mir.OpLoad {
			t.Error("load before the capture should have been promoted")
		}
	}
	if n := countOps(f, mir.OpAlloc); n != 1 {
		t.Errorf("alloc count = %d, want 1", n)
	}
}

func TestPromoteSameStoreOnBothPaths(t *testing.T) {
	m, _ := parseModule(t, `fn @diamond(%c: $Bool) -> $Int {
bb0:
	%b = alloc $Int
	%one = const 1 : $Int
	store %one to %b
	if %c then bb1 else bb2
bb1:
	goto bb3
bb2:
	goto bb3
bb3:
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "diamond", bag)

	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	for _, kind := range []mir.OpKind{mir.OpAlloc, mir.OpLoad, mir.OpStore} {
		if n := countOps(f, kind); n != 0 {
			t.Errorf("%v count = %d, want 0", kind, n)
		}
	}
	c := findOp(f, mir.OpConst)
	if c == nil {
		t.Fatal("const missing")
	}
	if got := f.Blocks[3].Term.Return.Value; got != c.Result {
		t.Errorf("return value = %%%d, want the const %%%d", got, c.Result)
	}
}

func TestPromoteDifferentStoresMergeToInit(t *testing.T) {
	m, _ := parseModule(t, `fn @pick(%c: $Bool) -> $Int {
bb0:
	%b = alloc $Int
	if %c then bb1 else bb2
bb1:
	%one = const 1 : $Int
	store %one to %b
	goto bb3
bb2:
	%two = const 2 : $Int
	store %two to %b
	goto bb3
bb3:
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "pick", bag)

	// Both paths initialize but with different values, so the load reads
	// memory. No diagnostic: the memory is never uninitialized.
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := countOps(f, mir.OpLoad); n != 1 {
		t.Errorf("load count = %d, want 1", n)
	}
	if n := countOps(f, mir.OpStore); n != 2 {
		t.Errorf("store count = %d, want 2", n)
	}
}

func TestPromoteUninitAggregateReportsOnce(t *testing.T) {
	m, _ := parseModule(t, `fn @blank() -> $(Int, Int) {
bb0:
	%b = alloc $(Int, Int)
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	promoteFn(t, m, "blank", bag)

	// The load misses on both leaves but is one source construct.
	if bag.Len() != 1 {
		t.Fatalf("diagnostic count = %d, want 1: %v", bag.Len(), bagCodes(bag))
	}
	if !hasCode(bag, diag.OptUseBeforeInit) {
		t.Errorf("diagnostics = %v, want %v", bagCodes(bag), diag.OptUseBeforeInit)
	}
}

func TestPromoteEmptyTupleBox(t *testing.T) {
	m, _ := parseModule(t, `fn @nothing() -> $Unit {
bb0:
	%b = alloc $()
	retain %b
	release %b
	dealloc %b
	return
}

fn @peek() -> $() {
bb0:
	%b = alloc $()
	%x = load %b
	return %x
}
`)
	bag := diag.NewBag(64)
	f := promoteFn(t, m, "nothing", bag)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := len(f.Blocks[0].Instrs); n != 0 {
		t.Errorf("len(Instrs) = %d, want 0 (bookkeeping-only empty box erased)", n)
	}

	g := promoteFn(t, m, "peek", bag)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if n := countOps(g, mir.OpAlloc); n != 1 {
		t.Errorf("alloc count = %d, want 1 (empty box with a real access is left alone)", n)
	}
	if n := countOps(g, mir.OpLoad); n != 1 {
		t.Errorf("load count = %d, want 1", n)
	}
}

func TestPromoteIdempotent(t *testing.T) {
	m, _ := parseModule(t, `fn @twice(%c: $Bool) -> $Int {
bb0:
	%p = alloc $Int
	%one = const 1 : $Int
	store %one to %p
	%q = alloc $Int
	if %c then bb1 else bb2
bb1:
	%two = const 2 : $Int
	store %two to %q
	goto bb2
bb2:
	%x = load %p
	%y = load %q
	%t = tuple (%x, %y)
	%r = extract %t, 0
	return %r
}
`)
	bag1 := diag.NewBag(64)
	f := promoteFn(t, m, "twice", bag1)
	dump1 := dumpFn(t, m, f)

	bag2 := diag.NewBag(64)
	promoteFn(t, m, "twice", bag2)
	dump2 := dumpFn(t, m, f)

	if dump1 != dump2 {
		t.Errorf("second run changed the function:\nfirst:\n%s\nsecond:\n%s", dump1, dump2)
	}
	c1, c2 := bagCodes(bag1), bagCodes(bag2)
	if len(c1) != 1 || len(c2) != 1 || c1[0] != c2[0] {
		t.Errorf("diagnostics differ between runs: %v vs %v", c1, c2)
	}
	if !hasCode(bag1, diag.OptMaybeUninit) {
		t.Errorf("diagnostics = %v, want %v", c1, diag.OptMaybeUninit)
	}
}
