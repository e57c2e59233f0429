package opt

import (
	"fmt"

	"tarn/internal/diag"
	"tarn/internal/layout"
	"tarn/internal/mir"
	"tarn/internal/types"
)

// PromoteMemory rewrites loads from locally initialized boxes into direct
// uses of the stored values and erases boxes whose contents never leave
// the function. Loads of memory that is certainly or possibly
// uninitialized are reported through r and left in place.
//
// Diagnostics never make the pass fail; a returned error is an internal
// inconsistency (an unresolvable boxed type) and aborts the pipeline.
func PromoteMemory(fn *mir.Func, ti *types.Interner, eng *layout.Engine, r diag.Reporter) error {
	if fn == nil || fn.IsDecl() {
		return nil
	}
	if r == nil {
		r = diag.NopReporter{}
	}

	changed := false
	for bi := range fn.Blocks {
		for ii := range fn.Blocks[bi].Instrs {
			if fn.Blocks[bi].Instrs[ii].Kind != mir.OpAlloc {
				continue
			}
			ref := mir.InstrRef{Block: fn.Blocks[bi].ID, Index: int32(ii)} //nolint:gosec // G115: block sizes fit int32
			ch, err := promoteAlloc(fn, ti, eng, r, ref)
			if err != nil {
				return fmt.Errorf("promoting alloc at bb%d[%d]: %w", ref.Block, ref.Index, err)
			}
			changed = changed || ch
		}
	}
	if changed {
		mir.CompactInstrs(fn)
	}
	return nil
}

// promoteAlloc analyzes and rewrites a single allocation. Erasures leave
// nops behind; the caller compacts once at the end so instruction indices
// stay stable across allocations.
func promoteAlloc(fn *mir.Func, ti *types.Interner, eng *layout.Engine, r diag.Reporter, allocRef mir.InstrRef) (bool, error) {
	uses := mir.BuildUses(fn)
	au, err := collectAllocUses(fn, ti, eng, uses, allocRef)
	if err != nil {
		return false, err
	}

	// A box of a zero-leaf type carries no data. Drop it when only
	// bookkeeping touches it; any real access keeps it as is.
	if len(au.elems) == 0 {
		if len(au.all) > 0 {
			return false, nil
		}
		for _, ref := range au.insignificant {
			mir.EraseInstr(fn, ref)
		}
		mir.EraseInstr(fn, allocRef)
		return true, nil
	}

	perLoad := make(map[mir.InstrRef][]verdict)
	for _, elemUses := range au.elems {
		em := buildEscapeMap(fn, elemUses)
		ep := newElementPromoter(fn, elemUses, em)
		for _, lv := range ep.loads {
			perLoad[lv.load] = append(perLoad[lv.load], lv.v)
		}
	}

	changed := false
	allPromoted := true
	for _, lref := range au.loadOrder() {
		switch v := mergeVerdicts(perLoad[lref]); v.kind {
		case verdictPromote:
			if promoteLoad(fn, lref, v.store) {
				changed = true
			} else {
				allPromoted = false
			}
		case verdictUninit:
			in := fn.Instr(lref)
			diag.ReportError(r, diag.OptUseBeforeInit, in.Span, "use of uninitialized value").Emit()
			allPromoted = false
		case verdictMaybeUninit:
			in := fn.Instr(lref)
			diag.ReportError(r, diag.OptMaybeUninit, in.Span, "use of possibly-uninitialized value").Emit()
			allPromoted = false
		default:
			allPromoted = false
		}
	}

	// The box dies when nothing escaped it, no callee saw it, and every
	// read was promoted away: the remaining stores feed memory nobody
	// reads. A box with only stores and bookkeeping is erased outright.
	if allPromoted && !au.hasBlocker() {
		for _, u := range au.all {
			if u.kind == useStore {
				mir.EraseInstr(fn, u.instr)
			}
		}
		for _, ref := range au.projections {
			mir.EraseInstr(fn, ref)
		}
		for _, ref := range au.insignificant {
			mir.EraseInstr(fn, ref)
		}
		mir.EraseInstr(fn, allocRef)
		changed = true
	}
	return changed, nil
}

// mergeVerdicts combines per-element verdicts into one decision for the
// load. A definite uninitialized read outranks a possible one; promotion
// needs every element to come from the same store. An empty list means the
// load sits in unreachable code and is left alone.
func mergeVerdicts(vs []verdict) verdict {
	if len(vs) == 0 {
		return verdict{kind: verdictKeep}
	}
	hasUninit := false
	hasMaybe := false
	uniform := true
	store := mir.NoInstrRef
	for _, v := range vs {
		switch v.kind {
		case verdictUninit:
			hasUninit = true
		case verdictMaybeUninit:
			hasMaybe = true
		case verdictKeep:
			uniform = false
		case verdictPromote:
			if store == mir.NoInstrRef {
				store = v.store
			} else if store != v.store {
				uniform = false
			}
		}
	}
	switch {
	case hasUninit:
		return verdict{kind: verdictUninit}
	case hasMaybe:
		return verdict{kind: verdictMaybeUninit}
	case uniform && store != mir.NoInstrRef:
		return verdict{kind: verdictPromote, store: store}
	default:
		return verdict{kind: verdictKeep}
	}
}

// promoteLoad replaces every use of the load's result with the value the
// store wrote, then erases the load. The rewrite is refused when the
// store's value type does not match the load's result type, which happens
// when an aggregate was assembled from differently typed element stores.
func promoteLoad(fn *mir.Func, loadRef, storeRef mir.InstrRef) bool {
	loadIn := fn.Instr(loadRef)
	storeIn := fn.Instr(storeRef)
	if loadIn == nil || storeIn == nil || loadIn.Kind != mir.OpLoad || storeIn.Kind != mir.OpStore {
		return false
	}
	src := storeIn.Store.Src
	if fn.ValueType(src) != fn.ValueType(loadIn.Result) {
		return false
	}
	mir.ReplaceUses(fn, loadIn.Result, src)
	mir.EraseInstr(fn, loadRef)
	return true
}
