package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnit
	KindBool
	KindInt
	KindFloat
	KindString
	KindRef
	KindPtr
	KindFn
	KindTuple
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindRef:
		return "ref"
	case KindPtr:
		return "ptr"
	case KindFn:
		return "fn"
	case KindTuple:
		return "tuple"
	case KindStruct:
		return "struct"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is a compact descriptor for any supported type.
//
// Elem is the pointee for KindRef/KindPtr. Payload indexes per-kind metadata
// tables in the interner for KindTuple/KindStruct/KindFn.
type Type struct {
	Kind    Kind
	Elem    TypeID
	Payload uint32
}

// MakeRef describes &T: a borrowed address that the holder may read and
// write through but must not retain past its scope.
func MakeRef(elem TypeID) Type {
	return Type{Kind: KindRef, Elem: elem}
}

// MakePtr describes *T: a raw pointer value with no borrow discipline.
func MakePtr(elem TypeID) Type {
	return Type{Kind: KindPtr, Elem: elem}
}

// IsAddress reports whether the kind carries an address (ref or raw pointer).
func (k Kind) IsAddress() bool {
	return k == KindRef || k == KindPtr
}
