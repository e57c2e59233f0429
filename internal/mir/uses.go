package mir

// UseSite names one operand slot that reads a value. Terminator operands
// use Ref.Index == TermIndex.
type UseSite struct {
	Ref     InstrRef
	Operand int
}

// Uses maps every value of a function to the sites that read it, in
// program order within each block. The index goes stale as soon as the
// function is mutated; rebuild after rewrites.
type Uses struct {
	sites map[ValueID][]UseSite
}

// BuildUses scans f and indexes every operand read.
func BuildUses(f *Func) *Uses {
	u := &Uses{sites: make(map[ValueID][]UseSite)}
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		for ii := range blk.Instrs {
			ref := InstrRef{Block: blk.ID, Index: int32(ii)} //nolint:gosec // G115: block sizes fit int32
			blk.Instrs[ii].Operands(func(pos int, v *ValueID) bool {
				u.sites[*v] = append(u.sites[*v], UseSite{Ref: ref, Operand: pos})
				return true
			})
		}
		ref := InstrRef{Block: blk.ID, Index: TermIndex}
		blk.Term.Operands(func(pos int, v *ValueID) bool {
			u.sites[*v] = append(u.sites[*v], UseSite{Ref: ref, Operand: pos})
			return true
		})
	}
	return u
}

// Of returns the recorded use sites of v.
func (u *Uses) Of(v ValueID) []UseSite {
	return u.sites[v]
}

// Count returns how many operand slots read v.
func (u *Uses) Count(v ValueID) int {
	return len(u.sites[v])
}

// ReplaceUses rewrites every operand reading old to read new instead,
// in instructions and terminators alike. Definitions are not touched.
func ReplaceUses(f *Func, old, repl ValueID) int {
	n := 0
	rewrite := func(_ int, v *ValueID) bool {
		if *v == old {
			*v = repl
			n++
		}
		return true
	}
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		for ii := range blk.Instrs {
			blk.Instrs[ii].Operands(rewrite)
		}
		blk.Term.Operands(rewrite)
	}
	return n
}
