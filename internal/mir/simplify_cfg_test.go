package mir_test

import (
	"testing"

	"tarn/internal/mir"
	"tarn/internal/source"
	"tarn/internal/types"
)

func constInt(f *mir.Func, bb mir.BlockID, t types.TypeID, v int64) mir.ValueID {
	res := f.NewValue(t)
	f.Append(bb, mir.Instr{
		Kind:   mir.OpConst,
		Result: res,
		Const:  mir.ConstInstr{Value: mir.ConstValue{Kind: mir.ConstInt, Int: v}, Type: t},
	})
	return res
}

// TestSimplifyCFG_TrivialGoto tests that trivial goto blocks are removed.
func TestSimplifyCFG_TrivialGoto(t *testing.T) {
	// bb0 (with instruction) -> bb1 (trivial goto) -> bb2 (return)
	ti := types.NewInterner()
	b := ti.Builtins()
	fnType := ti.RegisterFn(nil, b.Unit, false)

	f := mir.NewFunc("test", fnType, nil, source.Span{})
	bb0 := f.AddBlock()
	bb1 := f.AddBlock()
	bb2 := f.AddBlock()
	constInt(f, bb0, b.Int, 1)
	f.Terminate(bb0, mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: bb1}})
	f.Terminate(bb1, mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: bb2}})
	f.Terminate(bb2, mir.Terminator{Kind: mir.TermReturn})

	mir.SimplifyCFG(f)

	if len(f.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(f.Blocks))
	}
	if f.Blocks[0].Term.Kind != mir.TermGoto {
		t.Errorf("expected goto terminator in bb0, got %v", f.Blocks[0].Term.Kind)
	}
	if f.Blocks[0].Term.Goto.Target != 1 {
		t.Errorf("expected bb0 to target bb1, got bb%d", f.Blocks[0].Term.Goto.Target)
	}
	if f.Blocks[1].Term.Kind != mir.TermReturn {
		t.Errorf("expected return terminator in bb1, got %v", f.Blocks[1].Term.Kind)
	}
}

// TestSimplifyCFG_GotoChain tests that chains of trivial gotos collapse
// to the final target in one pass.
func TestSimplifyCFG_GotoChain(t *testing.T) {
	ti := types.NewInterner()
	b := ti.Builtins()
	fnType := ti.RegisterFn(nil, b.Unit, false)

	f := mir.NewFunc("chain", fnType, nil, source.Span{})
	bb0 := f.AddBlock()
	bb1 := f.AddBlock()
	bb2 := f.AddBlock()
	bb3 := f.AddBlock()
	constInt(f, bb0, b.Int, 7)
	f.Terminate(bb0, mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: bb1}})
	f.Terminate(bb1, mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: bb2}})
	f.Terminate(bb2, mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: bb3}})
	f.Terminate(bb3, mir.Terminator{Kind: mir.TermReturn})

	mir.SimplifyCFG(f)

	if len(f.Blocks) != 2 {
		t.Fatalf("expected 2 blocks after collapsing the chain, got %d", len(f.Blocks))
	}
	if got := f.Blocks[0].Term.Goto.Target; got != 1 {
		t.Errorf("expected bb0 to jump straight to bb1, got bb%d", got)
	}
}

// TestSimplifyCFG_UnreachableRemoved tests that blocks with no path from
// entry disappear and their values leave the value table.
func TestSimplifyCFG_UnreachableRemoved(t *testing.T) {
	ti := types.NewInterner()
	b := ti.Builtins()
	fnType := ti.RegisterFn(nil, b.Int, false)

	f := mir.NewFunc("dead", fnType, nil, source.Span{})
	bb0 := f.AddBlock()
	bb1 := f.AddBlock() // unreachable
	v := constInt(f, bb0, b.Int, 3)
	f.Terminate(bb0, mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: true, Value: v}})
	dead := constInt(f, bb1, b.Int, 9)
	f.Terminate(bb1, mir.Terminator{Kind: mir.TermReturn, Return: mir.ReturnTerm{HasValue: true, Value: dead}})

	mir.SimplifyCFG(f)

	if len(f.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(f.Blocks))
	}
	if len(f.Values) != 1 {
		t.Fatalf("expected 1 surviving value, got %d", len(f.Values))
	}
	ret := f.Blocks[0].Term
	if !ret.Return.HasValue || ret.Return.Value != 0 {
		t.Errorf("expected return of renumbered %%v0, got %+v", ret.Return)
	}
	def := f.Values[0].Def
	if def.Block != 0 || def.Index != 0 {
		t.Errorf("expected definition site bb0/0, got %+v", def)
	}
}

// TestSimplifyCFG_EntryStays tests that a trivial goto entry block is not
// redirected away.
func TestSimplifyCFG_EntryStays(t *testing.T) {
	ti := types.NewInterner()
	b := ti.Builtins()
	fnType := ti.RegisterFn(nil, b.Unit, false)

	f := mir.NewFunc("entry", fnType, nil, source.Span{})
	bb0 := f.AddBlock()
	bb1 := f.AddBlock()
	f.Terminate(bb0, mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: bb1}})
	f.Terminate(bb1, mir.Terminator{Kind: mir.TermReturn})

	mir.SimplifyCFG(f)

	if len(f.Blocks) != 2 {
		t.Fatalf("expected entry block to survive, got %d blocks", len(f.Blocks))
	}
	if f.Blocks[0].Term.Kind != mir.TermGoto {
		t.Errorf("expected entry to keep its goto, got %v", f.Blocks[0].Term.Kind)
	}
}

// TestSimplifyCFG_IfTargets tests that both branch edges are redirected.
func TestSimplifyCFG_IfTargets(t *testing.T) {
	ti := types.NewInterner()
	b := ti.Builtins()
	fnType := ti.RegisterFn(nil, b.Unit, false)

	f := mir.NewFunc("branch", fnType, nil, source.Span{})
	bb0 := f.AddBlock()
	bb1 := f.AddBlock() // trivial goto -> bb3
	bb2 := f.AddBlock() // trivial goto -> bb3
	bb3 := f.AddBlock()
	cond := f.NewValue(b.Bool)
	f.Append(bb0, mir.Instr{
		Kind:   mir.OpConst,
		Result: cond,
		Const:  mir.ConstInstr{Value: mir.ConstValue{Kind: mir.ConstBool, Bool: true}, Type: b.Bool},
	})
	f.Terminate(bb0, mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{Cond: cond, Then: bb1, Else: bb2}})
	f.Terminate(bb1, mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: bb3}})
	f.Terminate(bb2, mir.Terminator{Kind: mir.TermGoto, Goto: mir.GotoTerm{Target: bb3}})
	f.Terminate(bb3, mir.Terminator{Kind: mir.TermReturn})

	mir.SimplifyCFG(f)

	if len(f.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(f.Blocks))
	}
	ifTerm := f.Blocks[0].Term
	if ifTerm.Kind != mir.TermIf {
		t.Fatalf("expected if terminator, got %v", ifTerm.Kind)
	}
	if ifTerm.If.Then != 1 || ifTerm.If.Else != 1 {
		t.Errorf("expected both edges to land on bb1, got then=bb%d else=bb%d", ifTerm.If.Then, ifTerm.If.Else)
	}
}
