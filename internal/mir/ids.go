package mir

type FuncID int32
type BlockID int32
type ValueID int32

const (
	NoFuncID  FuncID  = -1
	NoBlockID BlockID = -1
	NoValueID ValueID = -1
)

// TermIndex is the instruction index denoting a block's terminator.
const TermIndex int32 = -1

// InstrRef addresses one instruction inside a function: Blocks[Block].
// Instrs[Index], or the block's terminator when Index == TermIndex.
type InstrRef struct {
	Block BlockID
	Index int32
}

// NoInstrRef marks the absence of a defining instruction.
var NoInstrRef = InstrRef{Block: NoBlockID, Index: TermIndex}

func (r InstrRef) IsTerm() bool {
	return r.Index == TermIndex
}

func (r InstrRef) Valid() bool {
	return r.Block != NoBlockID
}

// Before reports whether r precedes other in program order within one block.
func (r InstrRef) Before(other InstrRef) bool {
	if r.Block != other.Block {
		return false
	}
	if r.IsTerm() {
		return false
	}
	if other.IsTerm() {
		return true
	}
	return r.Index < other.Index
}
