package types

import (
	"fmt"

	"fortio.org/safecast"

	"tarn/internal/source"
)

// StructField describes a single field inside a nominal struct type.
type StructField struct {
	Name string
	Type TypeID
}

// StructInfo stores metadata for a nominal struct type.
//
// An opaque struct hides its field layout behind a resilience boundary:
// consumers must treat the whole value as a single scalar.
type StructInfo struct {
	Name   string
	Decl   source.Span
	Fields []StructField
	Opaque bool
}

// RegisterStruct allocates a nominal struct type slot and returns its TypeID.
// The name must be unique within the interner; re-registering a name returns
// the existing TypeID unchanged.
func (in *Interner) RegisterStruct(name string, decl source.Span, opaque bool) TypeID {
	if id, ok := in.byName[name]; ok {
		return id
	}
	slot := in.appendStructInfo(StructInfo{Name: name, Decl: decl, Opaque: opaque})
	id := in.internRaw(Type{Kind: KindStruct, Payload: slot})
	in.byName[name] = id
	return id
}

// DeclareStruct finalizes a struct that may have been registered earlier
// by reference only: it stamps the declaration span and the opaque flag.
// Opaque structs drop any field list.
func (in *Interner) DeclareStruct(typeID TypeID, decl source.Span, opaque bool) {
	info := in.structInfo(typeID)
	if info == nil {
		return
	}
	info.Decl = decl
	info.Opaque = opaque
	if opaque {
		info.Fields = nil
	}
}

// SetStructFields stores the resolved field descriptors for the struct type.
// Opaque structs keep no field list.
func (in *Interner) SetStructFields(typeID TypeID, fields []StructField) {
	info := in.structInfo(typeID)
	if info == nil || info.Opaque {
		return
	}
	info.Fields = cloneStructFields(fields)
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(typeID TypeID) (*StructInfo, bool) {
	info := in.structInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

// StructByName resolves a nominal struct by declared name.
func (in *Interner) StructByName(name string) (TypeID, bool) {
	id, ok := in.byName[name]
	return id, ok
}

func (in *Interner) structInfo(typeID TypeID) *StructInfo {
	if typeID == NoTypeID {
		return nil
	}
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindStruct {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[tt.Payload]
}

func (in *Interner) appendStructInfo(info StructInfo) uint32 {
	in.structs = append(in.structs, StructInfo{
		Name:   info.Name,
		Decl:   info.Decl,
		Fields: cloneStructFields(info.Fields),
		Opaque: info.Opaque,
	})
	slot, err := safecast.Conv[uint32](len(in.structs) - 1)
	if err != nil {
		panic(fmt.Errorf("struct info overflow: %w", err))
	}
	return slot
}

func cloneStructFields(fields []StructField) []StructField {
	if len(fields) == 0 {
		return nil
	}
	out := make([]StructField, len(fields))
	copy(out, fields)
	return out
}
