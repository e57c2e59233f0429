package mir

import (
	"tarn/internal/source"
	"tarn/internal/types"

	"fortio.org/safecast"
)

// ValueInfo describes one SSA-like value of a function. Params are defined
// with Def.Block == NoBlockID and Def.Index holding the parameter position.
type ValueInfo struct {
	Name string
	Type types.TypeID
	Def  InstrRef
}

// Block is a basic block: a run of instructions closed by one terminator.
type Block struct {
	ID     BlockID
	Instrs []Instr
	Term   Terminator
}

// Func is one function. A declaration without a body has no blocks.
// Blocks[0] is the entry block.
type Func struct {
	ID     FuncID
	Name   string
	Type   types.TypeID
	Params []ValueID
	Blocks []Block
	Values []ValueInfo
	Span   source.Span
}

// NewFunc builds an empty function of the given signature type and
// registers one value per declared parameter.
func NewFunc(name string, fnType types.TypeID, paramTypes []types.TypeID, span source.Span) *Func {
	fn := &Func{
		ID:   NoFuncID,
		Name: name,
		Type: fnType,
		Span: span,
	}
	for i, pt := range paramTypes {
		idx, err := safecast.Conv[int32](i)
		if err != nil {
			panic(err)
		}
		v := fn.addValue(ValueInfo{
			Type: pt,
			Def:  InstrRef{Block: NoBlockID, Index: idx},
		})
		fn.Params = append(fn.Params, v)
	}
	return fn
}

// IsDecl reports whether the function is an external declaration.
func (f *Func) IsDecl() bool {
	return len(f.Blocks) == 0
}

// Entry returns the entry block, nil for declarations.
func (f *Func) Entry() *Block {
	if f.IsDecl() {
		return nil
	}
	return &f.Blocks[0]
}

// AddBlock appends a fresh empty block and returns its ID.
func (f *Func) AddBlock() BlockID {
	id, err := safecast.Conv[int32](len(f.Blocks))
	if err != nil {
		panic(err)
	}
	b := BlockID(id)
	f.Blocks = append(f.Blocks, Block{ID: b})
	return b
}

// Block returns the block with the given ID, nil when out of range.
func (f *Func) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// NewValue registers a value of the given type and returns its ID. The
// definition site is filled in by Append.
func (f *Func) NewValue(t types.TypeID) ValueID {
	return f.addValue(ValueInfo{Type: t, Def: NoInstrRef})
}

func (f *Func) addValue(info ValueInfo) ValueID {
	id, err := safecast.Conv[int32](len(f.Values))
	if err != nil {
		panic(err)
	}
	f.Values = append(f.Values, info)
	return ValueID(id)
}

// Append places an instruction at the end of block b and records the
// definition site of its result, if any.
func (f *Func) Append(b BlockID, in Instr) InstrRef {
	blk := f.Block(b)
	idx, err := safecast.Conv[int32](len(blk.Instrs))
	if err != nil {
		panic(err)
	}
	ref := InstrRef{Block: b, Index: idx}
	if !in.Kind.HasResult() {
		in.Result = NoValueID
	}
	if in.Result != NoValueID {
		f.Values[in.Result].Def = ref
	}
	blk.Instrs = append(blk.Instrs, in)
	return ref
}

// Terminate closes block b. A block can be terminated once.
func (f *Func) Terminate(b BlockID, t Terminator) {
	f.Block(b).Term = t
}

// Instr resolves an instruction reference. Terminator refs and out of
// range refs yield nil.
func (f *Func) Instr(ref InstrRef) *Instr {
	if !ref.Valid() || ref.IsTerm() {
		return nil
	}
	blk := f.Block(ref.Block)
	if blk == nil || int(ref.Index) >= len(blk.Instrs) {
		return nil
	}
	return &blk.Instrs[ref.Index]
}

// ValueType returns the declared type of a value, NoTypeID when out of
// range.
func (f *Func) ValueType(v ValueID) types.TypeID {
	if v < 0 || int(v) >= len(f.Values) {
		return types.NoTypeID
	}
	return f.Values[v].Type
}

// IsParam reports whether v is one of the function's parameters.
func (f *Func) IsParam(v ValueID) bool {
	if v < 0 || int(v) >= len(f.Values) {
		return false
	}
	return f.Values[v].Def.Block == NoBlockID && f.Values[v].Def.Index != TermIndex
}
