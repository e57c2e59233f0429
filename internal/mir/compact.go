package mir

// CompactInstrs removes every nop from f and renumbers values densely.
// Passes erase instructions by overwriting them with OpNop so that
// instruction indices stay stable mid-pass; one compaction at the end
// restores the dense form the printer and validator expect.
//
// Values defined by erased instructions must be unused by the time this
// runs. A surviving read of a dropped value maps to NoValueID and the
// validator reports it.
func CompactInstrs(f *Func) {
	changed := false
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		kept := blk.Instrs[:0]
		for ii := range blk.Instrs {
			if blk.Instrs[ii].Kind == OpNop {
				changed = true
				continue
			}
			kept = append(kept, blk.Instrs[ii])
		}
		blk.Instrs = kept
	}
	if !changed {
		return
	}
	renumberValues(f)
}

// renumberValues rebuilds the value table from what the blocks still
// define: params plus results of surviving instructions. Operands,
// params and definition sites are rewritten to the new numbering.
func renumberValues(f *Func) {
	alive := make([]bool, len(f.Values))
	for _, p := range f.Params {
		alive[p] = true
	}
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		for ii := range blk.Instrs {
			if r := blk.Instrs[ii].Result; r != NoValueID {
				alive[r] = true
			}
		}
	}

	remap := make([]ValueID, len(f.Values))
	newValues := make([]ValueInfo, 0, len(f.Values))
	for i := range f.Values {
		if !alive[i] {
			remap[i] = NoValueID
			continue
		}
		remap[i] = ValueID(int32(len(newValues))) //nolint:gosec // G115: shrinking an int32-sized slice
		newValues = append(newValues, f.Values[i])
	}
	f.Values = newValues

	for i := range f.Params {
		f.Params[i] = remap[f.Params[i]]
	}

	rewrite := func(_ int, v *ValueID) bool {
		if *v >= 0 && int(*v) < len(remap) {
			*v = remap[*v]
		}
		return true
	}
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		for ii := range blk.Instrs {
			in := &blk.Instrs[ii]
			if in.Result != NoValueID {
				nr := remap[in.Result]
				in.Result = nr
				f.Values[nr].Def = InstrRef{Block: blk.ID, Index: int32(ii)} //nolint:gosec // G115: block sizes fit int32
			}
			in.Operands(rewrite)
		}
		blk.Term.Operands(rewrite)
	}
}

// EraseInstr overwrites the instruction at ref with a nop. The slot stays
// in place until CompactInstrs runs.
func EraseInstr(f *Func, ref InstrRef) {
	in := f.Instr(ref)
	if in == nil {
		return
	}
	*in = Instr{Kind: OpNop, Result: NoValueID, Span: in.Span}
}
