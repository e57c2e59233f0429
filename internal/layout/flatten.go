// Package layout flattens aggregate types into their scalar leaf elements.
//
// Promotion works element-wise: a tuple or transparent struct is a
// concatenation of the leaves of its fields, while scalars, addresses,
// functions, and opaque structs count as a single leaf. The engine caches
// counts per type, so repeated queries are O(1).
package layout

import (
	"tarn/internal/types"
)

// Engine computes leaf-element counts and offsets for types.
type Engine struct {
	Types *types.Interner

	cache map[types.TypeID]int
}

// New creates an Engine bound to the interner.
func New(typesIn *types.Interner) *Engine {
	return &Engine{
		Types: typesIn,
		cache: make(map[types.TypeID]int, 64),
	}
}

// LeafCount returns the number of scalar leaf elements of a type: tuples and
// transparent structs sum their fields, opaque structs and every non-aggregate
// kind count as one. An empty tuple has zero leaves.
func (e *Engine) LeafCount(id types.TypeID) (int, error) {
	return e.leafCount(id, nil)
}

func (e *Engine) leafCount(id types.TypeID, path []types.TypeID) (int, error) {
	if n, ok := e.cache[id]; ok {
		return n, nil
	}
	for _, p := range path {
		if p == id {
			return 0, &FlattenError{Kind: FlattenErrRecursive, Type: id, Cycle: append(path[:len(path):len(path)], id)}
		}
	}

	tt, ok := e.Types.Lookup(id)
	if !ok {
		return 0, &FlattenError{Kind: FlattenErrUnknownType, Type: id}
	}

	var n int
	switch tt.Kind {
	case types.KindTuple:
		info, ok := e.Types.TupleInfo(id)
		if !ok {
			return 0, &FlattenError{Kind: FlattenErrMissingInfo, Type: id}
		}
		path = append(path, id)
		for _, elem := range info.Elems {
			c, err := e.leafCount(elem, path)
			if err != nil {
				return 0, err
			}
			n += c
		}

	case types.KindStruct:
		info, ok := e.Types.StructInfo(id)
		if !ok {
			return 0, &FlattenError{Kind: FlattenErrMissingInfo, Type: id}
		}
		if info.Opaque {
			n = 1
			break
		}
		if info.Fields == nil {
			// transparent struct whose fields were never resolved
			return 0, &FlattenError{Kind: FlattenErrMissingInfo, Type: id}
		}
		path = append(path, id)
		for _, f := range info.Fields {
			c, err := e.leafCount(f.Type, path)
			if err != nil {
				return 0, err
			}
			n += c
		}

	default:
		n = 1
	}

	e.cache[id] = n
	return n, nil
}

// FieldOffset returns the leaf offset of field index within the aggregate:
// the sum of LeafCount over all preceding fields.
func (e *Engine) FieldOffset(agg types.TypeID, field int) (int, error) {
	fields, err := e.fieldsOf(agg)
	if err != nil {
		return 0, err
	}
	if field < 0 || field >= len(fields) {
		return 0, &FlattenError{Kind: FlattenErrBadField, Type: agg, Field: field}
	}
	off := 0
	for _, f := range fields[:field] {
		c, err := e.LeafCount(f)
		if err != nil {
			return 0, err
		}
		off += c
	}
	return off, nil
}

// FieldType returns the type of field index within the aggregate.
func (e *Engine) FieldType(agg types.TypeID, field int) (types.TypeID, error) {
	fields, err := e.fieldsOf(agg)
	if err != nil {
		return types.NoTypeID, err
	}
	if field < 0 || field >= len(fields) {
		return types.NoTypeID, &FlattenError{Kind: FlattenErrBadField, Type: agg, Field: field}
	}
	return fields[field], nil
}

// LeafTypes returns the in-order leaf types of a type. Opaque structs and
// scalars yield themselves.
func (e *Engine) LeafTypes(id types.TypeID) ([]types.TypeID, error) {
	n, err := e.LeafCount(id)
	if err != nil {
		return nil, err
	}
	out := make([]types.TypeID, 0, n)
	return e.appendLeaves(out, id)
}

func (e *Engine) appendLeaves(out []types.TypeID, id types.TypeID) ([]types.TypeID, error) {
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return nil, &FlattenError{Kind: FlattenErrUnknownType, Type: id}
	}
	switch tt.Kind {
	case types.KindTuple:
		info, _ := e.Types.TupleInfo(id)
		if info == nil {
			return nil, &FlattenError{Kind: FlattenErrMissingInfo, Type: id}
		}
		for _, elem := range info.Elems {
			var err error
			out, err = e.appendLeaves(out, elem)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case types.KindStruct:
		info, _ := e.Types.StructInfo(id)
		if info == nil {
			return nil, &FlattenError{Kind: FlattenErrMissingInfo, Type: id}
		}
		if info.Opaque {
			return append(out, id), nil
		}
		for _, f := range info.Fields {
			var err error
			out, err = e.appendLeaves(out, f.Type)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return append(out, id), nil
	}
}

// fieldsOf returns the addressable fields of an aggregate type: tuple
// elements or transparent struct fields. Every other type has none.
func (e *Engine) fieldsOf(agg types.TypeID) ([]types.TypeID, error) {
	tt, ok := e.Types.Lookup(agg)
	if !ok {
		return nil, &FlattenError{Kind: FlattenErrUnknownType, Type: agg}
	}
	switch tt.Kind {
	case types.KindTuple:
		info, ok := e.Types.TupleInfo(agg)
		if !ok {
			return nil, &FlattenError{Kind: FlattenErrMissingInfo, Type: agg}
		}
		return info.Elems, nil
	case types.KindStruct:
		info, ok := e.Types.StructInfo(agg)
		if !ok || info.Opaque {
			return nil, &FlattenError{Kind: FlattenErrNotAggregate, Type: agg}
		}
		out := make([]types.TypeID, len(info.Fields))
		for i, f := range info.Fields {
			out[i] = f.Type
		}
		return out, nil
	default:
		return nil, &FlattenError{Kind: FlattenErrNotAggregate, Type: agg}
	}
}
