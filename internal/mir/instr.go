package mir

import (
	"tarn/internal/source"
	"tarn/internal/types"
)

// OpKind enumerates instruction kinds in MIR.
type OpKind uint8

const (
	// OpNop is an erased instruction awaiting compaction.
	OpNop OpKind = iota
	// OpAlloc allocates an uninitialized box and yields its address.
	OpAlloc
	// OpDealloc releases a box's storage.
	OpDealloc
	// OpRetain increments a box's reference count.
	OpRetain
	// OpRelease decrements a box's reference count.
	OpRelease
	// OpLoad reads the value behind an address.
	OpLoad
	// OpStore writes a value through an address.
	OpStore
	// OpElemAddr projects the address of one aggregate element.
	OpElemAddr
	// OpCopyAddr copies memory between two addresses.
	OpCopyAddr
	// OpApply calls a function value.
	OpApply
	// OpPartialApply binds trailing arguments and yields a closure.
	OpPartialApply
	// OpTuple constructs a tuple value.
	OpTuple
	// OpExtract reads one element of an aggregate value.
	OpExtract
	// OpFuncRef yields a function value for a declared function.
	OpFuncRef
	// OpConst materializes a literal.
	OpConst
)

func (k OpKind) String() string {
	switch k {
	case OpNop:
		return "nop"
	case OpAlloc:
		return "alloc"
	case OpDealloc:
		return "dealloc"
	case OpRetain:
		return "retain"
	case OpRelease:
		return "release"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpElemAddr:
		return "elem_addr"
	case OpCopyAddr:
		return "copy_addr"
	case OpApply:
		return "apply"
	case OpPartialApply:
		return "partial_apply"
	case OpTuple:
		return "tuple"
	case OpExtract:
		return "extract"
	case OpFuncRef:
		return "func_ref"
	case OpConst:
		return "const"
	default:
		return "op?"
	}
}

// Instr represents a MIR instruction. Result is NoValueID for instructions
// that produce no value.
type Instr struct {
	Kind   OpKind
	Result ValueID
	Span   source.Span

	Alloc        AllocInstr
	Dealloc      DeallocInstr
	Retain       RetainInstr
	Release      ReleaseInstr
	Load         LoadInstr
	Store        StoreInstr
	ElemAddr     ElemAddrInstr
	CopyAddr     CopyAddrInstr
	Apply        ApplyInstr
	PartialApply PartialApplyInstr
	Tuple        TupleInstr
	Extract      ExtractInstr
	FuncRef      FuncRefInstr
	Const        ConstInstr
}

// AllocInstr allocates a box holding a value of Elem type.
type AllocInstr struct {
	Elem types.TypeID
}

// DeallocInstr frees the box behind the address.
type DeallocInstr struct {
	Box ValueID
}

// RetainInstr increments the box's reference count.
type RetainInstr struct {
	Box ValueID
}

// ReleaseInstr decrements the box's reference count.
type ReleaseInstr struct {
	Box ValueID
}

// LoadInstr reads the value at Src.
type LoadInstr struct {
	Src ValueID
}

// StoreInstr writes Src through the Dst address. The destination is operand
// position 1; a store whose stored value is itself an address has that
// address at position 0.
type StoreInstr struct {
	Src ValueID
	Dst ValueID
}

// ElemAddrInstr projects element Index of the aggregate behind Src.
type ElemAddrInstr struct {
	Src   ValueID
	Index int32
}

// CopyAddrInstr copies the value at Src to Dst, memory to memory.
type CopyAddrInstr struct {
	Src ValueID
	Dst ValueID
}

// ApplyInstr calls Callee. The callee is operand position 0, arguments
// follow from position 1.
type ApplyInstr struct {
	Callee ValueID
	Args   []ValueID
}

// PartialApplyInstr binds Args to the trailing parameters of Callee and
// yields the narrowed function value.
type PartialApplyInstr struct {
	Callee ValueID
	Args   []ValueID
}

// TupleInstr builds a tuple from element values.
type TupleInstr struct {
	Elems []ValueID
}

// ExtractInstr reads element Index from the aggregate value Src.
type ExtractInstr struct {
	Src   ValueID
	Index int32
}

// FuncRefInstr references a declared function.
type FuncRefInstr struct {
	Fn FuncID
}

// ConstKind distinguishes literal forms.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstBool
)

// ConstValue is a literal payload.
type ConstValue struct {
	Kind ConstKind
	Int  int64
	Bool bool
}

// ConstInstr materializes a literal of the annotated type.
type ConstInstr struct {
	Value ConstValue
	Type  types.TypeID
}

// HasResult reports whether the opcode defines a value.
func (k OpKind) HasResult() bool {
	switch k {
	case OpNop, OpDealloc, OpRetain, OpRelease, OpStore, OpCopyAddr:
		return false
	default:
		return true
	}
}

// HasResult reports whether the instruction defines a live value. Erased
// instructions drop their result.
func (in *Instr) HasResult() bool {
	return in.Kind.HasResult() && in.Result != NoValueID
}

// Operands calls fn for each value operand in a fixed order that defines
// the instruction's operand numbering. The pointer lets rewrites update
// operands in place. Iteration stops early when fn returns false.
func (in *Instr) Operands(fn func(pos int, v *ValueID) bool) {
	switch in.Kind {
	case OpDealloc:
		fn(0, &in.Dealloc.Box)
	case OpRetain:
		fn(0, &in.Retain.Box)
	case OpRelease:
		fn(0, &in.Release.Box)
	case OpLoad:
		fn(0, &in.Load.Src)
	case OpStore:
		if fn(0, &in.Store.Src) {
			fn(1, &in.Store.Dst)
		}
	case OpElemAddr:
		fn(0, &in.ElemAddr.Src)
	case OpCopyAddr:
		if fn(0, &in.CopyAddr.Src) {
			fn(1, &in.CopyAddr.Dst)
		}
	case OpApply:
		if !fn(0, &in.Apply.Callee) {
			return
		}
		for i := range in.Apply.Args {
			if !fn(1+i, &in.Apply.Args[i]) {
				return
			}
		}
	case OpPartialApply:
		if !fn(0, &in.PartialApply.Callee) {
			return
		}
		for i := range in.PartialApply.Args {
			if !fn(1+i, &in.PartialApply.Args[i]) {
				return
			}
		}
	case OpTuple:
		for i := range in.Tuple.Elems {
			if !fn(i, &in.Tuple.Elems[i]) {
				return
			}
		}
	case OpExtract:
		fn(0, &in.Extract.Src)
	case OpNop, OpAlloc, OpFuncRef, OpConst:
		// no value operands
	}
}
