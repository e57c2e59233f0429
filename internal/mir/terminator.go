package mir

import "tarn/internal/source"

// TermKind enumerates block terminators.
type TermKind uint8

const (
	// TermNone marks a block that has not been terminated yet. The
	// validator rejects it; it only appears mid-construction.
	TermNone TermKind = iota
	// TermReturn leaves the function, optionally with a value.
	TermReturn
	// TermGoto jumps unconditionally.
	TermGoto
	// TermIf branches on a Bool value.
	TermIf
	// TermUnreachable marks a point control flow never reaches.
	TermUnreachable
)

func (k TermKind) String() string {
	switch k {
	case TermNone:
		return "none"
	case TermReturn:
		return "return"
	case TermGoto:
		return "goto"
	case TermIf:
		return "if"
	case TermUnreachable:
		return "unreachable"
	default:
		return "term?"
	}
}

// Terminator closes a basic block.
type Terminator struct {
	Kind TermKind
	Span source.Span

	Return ReturnTerm
	Goto   GotoTerm
	If     IfTerm
}

// ReturnTerm returns from the function. HasValue is false for Unit returns.
type ReturnTerm struct {
	HasValue bool
	Value    ValueID
}

// GotoTerm jumps to Target.
type GotoTerm struct {
	Target BlockID
}

// IfTerm branches to Then when Cond is true, else to Else.
type IfTerm struct {
	Cond ValueID
	Then BlockID
	Else BlockID
}

// Operands calls fn for each value operand of the terminator.
func (t *Terminator) Operands(fn func(pos int, v *ValueID) bool) {
	switch t.Kind {
	case TermReturn:
		if t.Return.HasValue {
			fn(0, &t.Return.Value)
		}
	case TermIf:
		fn(0, &t.If.Cond)
	case TermNone, TermGoto, TermUnreachable:
	}
}

// Successors calls fn for each outgoing edge target. The pointer lets
// CFG rewrites redirect edges in place.
func (t *Terminator) Successors(fn func(target *BlockID) bool) {
	switch t.Kind {
	case TermGoto:
		fn(&t.Goto.Target)
	case TermIf:
		if fn(&t.If.Then) {
			fn(&t.If.Else)
		}
	case TermNone, TermReturn, TermUnreachable:
	}
}
