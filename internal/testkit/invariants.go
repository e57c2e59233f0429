package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"tarn/internal/mir"
	"tarn/internal/source"
)

// CheckSpanInvariants runs a minimal set of span invariants on a parsed module:
// 1) every function span is non-empty and within file content bounds
// 2) every instruction and terminator span is non-empty and fully contained
// in its function's span
// 3) each function span covers the union of its body spans (if any)
func CheckSpanInvariants(m *mir.Module, sf *source.File) error {
	if m == nil || sf == nil {
		return fmt.Errorf("nil module or file")
	}
	lenContent, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}

	for _, fn := range m.Funcs {
		// 1) function span sanity
		fsp := fn.Span
		if fsp.End <= fsp.Start {
			return fmt.Errorf("%s: function span is empty: %v", fn.Name, fsp)
		}
		if fsp.File != sf.ID {
			return fmt.Errorf("%s: function span points to different file id: got=%d want=%d", fn.Name, fsp.File, sf.ID)
		}
		if fsp.End > lenContent {
			return fmt.Errorf("%s: function span end beyond content: %d > %d", fn.Name, fsp.End, lenContent)
		}

		// 2) body spans within function span; 3) function covers union
		var union source.Span
		var haveSpan bool
		cover := func(what string, sp source.Span) error {
			if sp.End <= sp.Start {
				return fmt.Errorf("%s: empty %s span: %v", fn.Name, what, sp)
			}
			if sp.File != sf.ID {
				return fmt.Errorf("%s: %s span file mismatch: got=%d want=%d", fn.Name, what, sp.File, sf.ID)
			}
			if sp.Start < fsp.Start || sp.End > fsp.End {
				return fmt.Errorf("%s: %s span %v is outside function span %v", fn.Name, what, sp, fsp)
			}
			if !haveSpan {
				union = sp
				haveSpan = true
			} else {
				union = union.Cover(sp)
			}
			return nil
		}

		for bi := range fn.Blocks {
			b := &fn.Blocks[bi]
			for ii := range b.Instrs {
				if err := cover("instruction", b.Instrs[ii].Span); err != nil {
					return err
				}
			}
			if b.Term.Kind != mir.TermNone {
				if err := cover("terminator", b.Term.Span); err != nil {
					return err
				}
			}
		}

		if haveSpan {
			if union.Start < fsp.Start || union.End > fsp.End {
				return fmt.Errorf("%s: function span %v does not cover union of body spans %v", fn.Name, fsp, union)
			}
		}
	}
	return nil
}
