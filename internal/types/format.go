package types

import (
	"fmt"
	"strings"
)

// TypeString renders a type in its textual IR form, without the leading
// sigil: "Int", "&Point", "*Int", "(Int, Float)", "fn(Int) -> Unit".
func (in *Interner) TypeString(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return "invalid"
	}
	switch tt.Kind {
	case KindUnit:
		return "Unit"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindRef:
		return "&" + in.TypeString(tt.Elem)
	case KindPtr:
		return "*" + in.TypeString(tt.Elem)
	case KindTuple:
		info, ok := in.TupleInfo(id)
		if !ok {
			return "invalid"
		}
		parts := make([]string, len(info.Elems))
		for i, e := range info.Elems {
			parts[i] = in.TypeString(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindStruct:
		info, ok := in.StructInfo(id)
		if !ok {
			return "invalid"
		}
		return info.Name
	case KindFn:
		info, ok := in.FnInfo(id)
		if !ok {
			return "invalid"
		}
		parts := make([]string, len(info.Params))
		for i, p := range info.Params {
			parts[i] = in.TypeString(p)
		}
		var b strings.Builder
		b.WriteString("fn(")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(") -> ")
		if info.IndirectResult {
			b.WriteString("indirect ")
		}
		b.WriteString(in.TypeString(info.Result))
		return b.String()
	default:
		return fmt.Sprintf("Kind(%d)", tt.Kind)
	}
}
