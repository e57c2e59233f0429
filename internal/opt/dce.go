package opt

import (
	"tarn/internal/mir"
)

// EliminateDeadValues erases pure value instructions whose results are
// never read, iterating until nothing else drops. Memory operations,
// calls, allocations, and refcounting always stay: their effects do not
// depend on whether anyone reads the result.
func EliminateDeadValues(fn *mir.Func) {
	if fn == nil || fn.IsDecl() {
		return
	}
	changed := false
	for {
		uses := mir.BuildUses(fn)
		erased := false
		for bi := range fn.Blocks {
			blk := &fn.Blocks[bi]
			for ii := range blk.Instrs {
				in := &blk.Instrs[ii]
				if !isPureValue(in.Kind) {
					continue
				}
				if in.Result == mir.NoValueID || uses.Count(in.Result) == 0 {
					mir.EraseInstr(fn, mir.InstrRef{Block: blk.ID, Index: int32(ii)}) //nolint:gosec // G115: block sizes fit int32
					erased = true
				}
			}
		}
		if !erased {
			break
		}
		changed = true
	}
	if changed {
		mir.CompactInstrs(fn)
	}
}

// isPureValue reports whether the instruction only computes a value.
func isPureValue(k mir.OpKind) bool {
	switch k {
	case mir.OpConst, mir.OpTuple, mir.OpExtract, mir.OpFuncRef, mir.OpElemAddr:
		return true
	default:
		return false
	}
}
