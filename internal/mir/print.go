package mir

import (
	"fmt"
	"io"
	"strings"

	"tarn/internal/types"
)

// DumpModule writes the canonical textual form of a module: struct
// declarations first, then functions, both in declaration order. The
// output parses back into an equivalent module.
func DumpModule(w io.Writer, m *Module) error {
	if w == nil || m == nil {
		return nil
	}
	for _, sid := range m.Structs {
		if err := dumpStruct(w, m.Types, sid); err != nil {
			return err
		}
	}
	if len(m.Structs) > 0 && len(m.Funcs) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	for i, f := range m.Funcs {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := DumpFunc(w, m, f); err != nil {
			return err
		}
	}
	return nil
}

func dumpStruct(w io.Writer, ti *types.Interner, id types.TypeID) error {
	info, ok := ti.StructInfo(id)
	if !ok {
		return fmt.Errorf("struct type %d has no info", id)
	}
	if info.Opaque {
		_, err := fmt.Fprintf(w, "struct %s opaque\n", info.Name)
		return err
	}
	parts := make([]string, len(info.Fields))
	for i, f := range info.Fields {
		parts[i] = fmt.Sprintf("%s: $%s", f.Name, ti.TypeString(f.Type))
	}
	_, err := fmt.Fprintf(w, "struct %s { %s }\n", info.Name, strings.Join(parts, ", "))
	return err
}

// DumpFunc writes one function in canonical form.
func DumpFunc(w io.Writer, m *Module, f *Func) error {
	if w == nil || f == nil {
		return nil
	}
	ti := m.Types

	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s: $%s", valueName(f, p), ti.TypeString(f.Values[p].Type))
	}

	resultStr := ""
	if info, ok := ti.FnInfo(f.Type); ok {
		if info.IndirectResult {
			resultStr = " -> indirect $" + ti.TypeString(info.Result)
		} else {
			resultStr = " -> $" + ti.TypeString(info.Result)
		}
	}

	if f.IsDecl() {
		_, err := fmt.Fprintf(w, "fn @%s(%s)%s;\n", f.Name, strings.Join(params, ", "), resultStr)
		return err
	}

	if _, err := fmt.Fprintf(w, "fn @%s(%s)%s {\n", f.Name, strings.Join(params, ", "), resultStr); err != nil {
		return err
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if _, err := fmt.Fprintf(w, "bb%d:\n", i); err != nil {
			return err
		}
		for j := range bb.Instrs {
			if _, err := fmt.Fprintf(w, "\t%s\n", formatInstr(m, f, &bb.Instrs[j])); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "\t%s\n", formatTerm(f, &bb.Term)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// valueName renders a value reference. Values without a source name fall
// back to a numbered form.
func valueName(f *Func, v ValueID) string {
	if v == NoValueID {
		return "%?"
	}
	if int(v) < len(f.Values) && f.Values[v].Name != "" {
		return "%" + f.Values[v].Name
	}
	return fmt.Sprintf("%%v%d", v)
}

func formatInstr(m *Module, f *Func, in *Instr) string {
	ti := m.Types
	var b strings.Builder
	if in.HasResult() {
		b.WriteString(valueName(f, in.Result))
		b.WriteString(" = ")
	}
	switch in.Kind {
	case OpNop:
		b.WriteString("nop")
	case OpAlloc:
		fmt.Fprintf(&b, "alloc $%s", ti.TypeString(in.Alloc.Elem))
	case OpDealloc:
		fmt.Fprintf(&b, "dealloc %s", valueName(f, in.Dealloc.Box))
	case OpRetain:
		fmt.Fprintf(&b, "retain %s", valueName(f, in.Retain.Box))
	case OpRelease:
		fmt.Fprintf(&b, "release %s", valueName(f, in.Release.Box))
	case OpLoad:
		fmt.Fprintf(&b, "load %s", valueName(f, in.Load.Src))
	case OpStore:
		fmt.Fprintf(&b, "store %s to %s", valueName(f, in.Store.Src), valueName(f, in.Store.Dst))
	case OpElemAddr:
		fmt.Fprintf(&b, "elem_addr %s, %d", valueName(f, in.ElemAddr.Src), in.ElemAddr.Index)
	case OpCopyAddr:
		fmt.Fprintf(&b, "copy_addr %s to %s", valueName(f, in.CopyAddr.Src), valueName(f, in.CopyAddr.Dst))
	case OpApply:
		fmt.Fprintf(&b, "apply %s(%s)", valueName(f, in.Apply.Callee), formatArgs(f, in.Apply.Args))
	case OpPartialApply:
		fmt.Fprintf(&b, "partial_apply %s(%s)", valueName(f, in.PartialApply.Callee), formatArgs(f, in.PartialApply.Args))
	case OpTuple:
		fmt.Fprintf(&b, "tuple (%s)", formatArgs(f, in.Tuple.Elems))
	case OpExtract:
		fmt.Fprintf(&b, "extract %s, %d", valueName(f, in.Extract.Src), in.Extract.Index)
	case OpFuncRef:
		callee := m.Func(in.FuncRef.Fn)
		if callee == nil {
			b.WriteString("func_ref @?")
		} else {
			fmt.Fprintf(&b, "func_ref @%s", callee.Name)
		}
	case OpConst:
		switch in.Const.Value.Kind {
		case ConstBool:
			fmt.Fprintf(&b, "const %t : $%s", in.Const.Value.Bool, ti.TypeString(in.Const.Type))
		default:
			fmt.Fprintf(&b, "const %d : $%s", in.Const.Value.Int, ti.TypeString(in.Const.Type))
		}
	default:
		fmt.Fprintf(&b, "op?%d", in.Kind)
	}
	return b.String()
}

func formatArgs(f *Func, args []ValueID) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = valueName(f, a)
	}
	return strings.Join(parts, ", ")
}

func formatTerm(f *Func, t *Terminator) string {
	switch t.Kind {
	case TermReturn:
		if t.Return.HasValue {
			return "return " + valueName(f, t.Return.Value)
		}
		return "return"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", t.Goto.Target)
	case TermIf:
		return fmt.Sprintf("if %s then bb%d else bb%d", valueName(f, t.If.Cond), t.If.Then, t.If.Else)
	case TermUnreachable:
		return "unreachable"
	default:
		return "<unterminated>"
	}
}

// ModuleString renders a module to a string, for tests and debug output.
func ModuleString(m *Module) string {
	var b strings.Builder
	_ = DumpModule(&b, m)
	return b.String()
}
