package mir

import (
	"tarn/internal/types"

	"fortio.org/safecast"
)

// Module is a collection of functions sharing one type interner.
// Structs records nominal type declarations in source order so dumps
// stay stable.
type Module struct {
	Types   *types.Interner
	Structs []types.TypeID
	Funcs   []*Func

	index map[string]FuncID
}

// NewModule builds an empty module over the given interner.
func NewModule(ti *types.Interner) *Module {
	return &Module{
		Types: ti,
		index: make(map[string]FuncID),
	}
}

// AddFunc registers fn and assigns its ID. Duplicate names return the
// existing ID with ok=false.
func (m *Module) AddFunc(fn *Func) (FuncID, bool) {
	if id, exists := m.index[fn.Name]; exists {
		return id, false
	}
	raw, err := safecast.Conv[int32](len(m.Funcs))
	if err != nil {
		panic(err)
	}
	id := FuncID(raw)
	fn.ID = id
	m.Funcs = append(m.Funcs, fn)
	m.index[fn.Name] = id
	return id, true
}

// Func returns the function with the given ID, nil when out of range.
func (m *Module) Func(id FuncID) *Func {
	if id < 0 || int(id) >= len(m.Funcs) {
		return nil
	}
	return m.Funcs[id]
}

// FuncByName resolves a function's ID by its declared name.
func (m *Module) FuncByName(name string) (FuncID, bool) {
	id, ok := m.index[name]
	return id, ok
}
