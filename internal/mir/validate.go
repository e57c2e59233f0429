package mir

import (
	"errors"
	"fmt"

	"tarn/internal/diag"
	"tarn/internal/source"
	"tarn/internal/types"
)

// ValError is one validator finding. It keeps the diagnostic code and the
// offending location so drivers can report validation failures of user
// input the same way parse errors are reported.
type ValError struct {
	Code diag.Code
	Span source.Span
	Msg  string
}

func (e *ValError) Error() string { return e.Msg }

func valErr(code diag.Code, sp source.Span, format string, args ...any) *ValError {
	return &ValError{Code: code, Span: sp, Msg: fmt.Sprintf(format, args...)}
}

// ValidationErrors flattens the error tree built by Validate into its
// individual findings, in check order. Non-ValError leaves are dropped.
func ValidationErrors(err error) []*ValError {
	var out []*ValError
	var walk func(error)
	walk = func(e error) {
		switch t := e.(type) {
		case nil:
		case *ValError:
			out = append(out, t)
		case interface{ Unwrap() []error }:
			for _, sub := range t.Unwrap() {
				walk(sub)
			}
		case interface{ Unwrap() error }:
			walk(t.Unwrap())
		}
	}
	walk(err)
	return out
}

// Validate checks MIR module invariants.
// Returns error if any invariant is violated.
func Validate(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := validateFunc(m, f); err != nil {
			errs = append(errs, fmt.Errorf("function @%s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func validateFunc(m *Module, f *Func) error {
	if f.IsDecl() {
		return nil
	}

	var errs []error

	// 1. Check all blocks terminated
	if err := validateBlocksTerminated(f); err != nil {
		errs = append(errs, err)
	}

	// 2. Check block targets exist
	if err := validateBlockTargets(f); err != nil {
		errs = append(errs, err)
	}

	// 3. Check value operands exist and results match the value table
	if err := validateValueIDs(f); err != nil {
		errs = append(errs, err)
	}

	// 4. Check memory operands are addresses of the right pointee
	if err := validateMemoryOps(m, f); err != nil {
		errs = append(errs, err)
	}

	// 5. Check call signatures
	if err := validateCalls(m, f); err != nil {
		errs = append(errs, err)
	}

	// 6. Check return shape against the signature
	if err := validateReturn(m, f); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// validateBlocksTerminated checks that every block ends with a terminator.
func validateBlocksTerminated(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if bb.Term.Kind == TermNone {
			sp := f.Span
			if n := len(bb.Instrs); n > 0 {
				sp = bb.Instrs[n-1].Span
			}
			errs = append(errs, valErr(diag.ValUnterminatedBlock, sp, "bb%d: unterminated block", i))
		}
	}
	return errors.Join(errs...)
}

// validateBlockTargets checks that all block target IDs exist.
func validateBlockTargets(f *Func) error {
	var errs []error

	blockExists := func(id BlockID) bool {
		return id >= 0 && int(id) < len(f.Blocks)
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		switch bb.Term.Kind {
		case TermGoto:
			if !blockExists(bb.Term.Goto.Target) {
				errs = append(errs, valErr(diag.ValBadBlockTarget, bb.Term.Span, "bb%d: goto target bb%d does not exist", i, bb.Term.Goto.Target))
			}
		case TermIf:
			if !blockExists(bb.Term.If.Then) {
				errs = append(errs, valErr(diag.ValBadBlockTarget, bb.Term.Span, "bb%d: if then target bb%d does not exist", i, bb.Term.If.Then))
			}
			if !blockExists(bb.Term.If.Else) {
				errs = append(errs, valErr(diag.ValBadBlockTarget, bb.Term.Span, "bb%d: if else target bb%d does not exist", i, bb.Term.If.Else))
			}
		}
	}
	return errors.Join(errs...)
}

// validateValueIDs checks that operands and results reference registered
// values and that every non-nop result records its definition site.
func validateValueIDs(f *Func) error {
	var errs []error

	valueExists := func(id ValueID) bool {
		return id >= 0 && int(id) < len(f.Values)
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			ctx := fmt.Sprintf("bb%d instr %d (%s)", i, j, ins.Kind)

			if ins.Result != NoValueID {
				if !valueExists(ins.Result) {
					errs = append(errs, valErr(diag.ValUndefinedValue, ins.Span, "%s: result %%%d does not exist", ctx, ins.Result))
				} else if def := f.Values[ins.Result].Def; def.Block != bb.ID || int(def.Index) != j {
					errs = append(errs, valErr(diag.ValUndefinedValue, ins.Span, "%s: result %%%d has stale definition site", ctx, ins.Result))
				}
			}

			ins.Operands(func(pos int, v *ValueID) bool {
				if !valueExists(*v) {
					errs = append(errs, valErr(diag.ValUndefinedValue, ins.Span, "%s: operand %d references undefined value %%%d", ctx, pos, *v))
				}
				return true
			})
		}

		ctx := fmt.Sprintf("bb%d terminator", i)
		bb.Term.Operands(func(pos int, v *ValueID) bool {
			if !valueExists(*v) {
				errs = append(errs, valErr(diag.ValUndefinedValue, bb.Term.Span, "%s: operand %d references undefined value %%%d", ctx, pos, *v))
			}
			return true
		})
	}

	return errors.Join(errs...)
}

// validateMemoryOps checks address-shaped operands: loads and stores go
// through Ref or Ptr values, projections index real aggregate fields.
func validateMemoryOps(m *Module, f *Func) error {
	var errs []error

	pointee := func(v ValueID) (types.TypeID, bool) {
		tt, ok := m.Types.Lookup(f.ValueType(v))
		if !ok || !tt.Kind.IsAddress() {
			return types.NoTypeID, false
		}
		return tt.Elem, true
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			ctx := fmt.Sprintf("bb%d instr %d", i, j)

			switch ins.Kind {
			case OpAlloc:
				if ins.Alloc.Elem == types.NoTypeID {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: alloc of unknown type", ctx))
				}
			case OpDealloc:
				if _, ok := pointee(ins.Dealloc.Box); !ok {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: dealloc of non-address %%%d", ctx, ins.Dealloc.Box))
				}
			case OpRetain:
				if _, ok := pointee(ins.Retain.Box); !ok {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: retain of non-address %%%d", ctx, ins.Retain.Box))
				}
			case OpRelease:
				if _, ok := pointee(ins.Release.Box); !ok {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: release of non-address %%%d", ctx, ins.Release.Box))
				}
			case OpLoad:
				pt, ok := pointee(ins.Load.Src)
				if !ok {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: load from non-address %%%d", ctx, ins.Load.Src))
					continue
				}
				if got := f.ValueType(ins.Result); got != pt {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: load result type %s does not match pointee %s",
						ctx, m.Types.TypeString(got), m.Types.TypeString(pt)))
				}
			case OpStore:
				pt, ok := pointee(ins.Store.Dst)
				if !ok {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: store to non-address %%%d", ctx, ins.Store.Dst))
					continue
				}
				if got := f.ValueType(ins.Store.Src); got != pt {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: store of %s into slot of %s",
						ctx, m.Types.TypeString(got), m.Types.TypeString(pt)))
				}
			case OpElemAddr:
				pt, ok := pointee(ins.ElemAddr.Src)
				if !ok {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: elem_addr of non-address %%%d", ctx, ins.ElemAddr.Src))
					continue
				}
				if err := checkElemIndex(m.Types, pt, ins.ElemAddr.Index); err != nil {
					errs = append(errs, valErr(diag.ValBadElemIndex, ins.Span, "%s: %v", ctx, err))
				}
			case OpCopyAddr:
				srcPt, srcOK := pointee(ins.CopyAddr.Src)
				dstPt, dstOK := pointee(ins.CopyAddr.Dst)
				if !srcOK {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: copy_addr from non-address %%%d", ctx, ins.CopyAddr.Src))
				}
				if !dstOK {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: copy_addr to non-address %%%d", ctx, ins.CopyAddr.Dst))
				}
				if srcOK && dstOK && srcPt != dstPt {
					errs = append(errs, valErr(diag.ValTypeMismatch, ins.Span, "%s: copy_addr between %s and %s",
						ctx, m.Types.TypeString(srcPt), m.Types.TypeString(dstPt)))
				}
			case OpExtract:
				if err := checkElemIndex(m.Types, f.ValueType(ins.Extract.Src), ins.Extract.Index); err != nil {
					errs = append(errs, valErr(diag.ValBadElemIndex, ins.Span, "%s: %v", ctx, err))
				}
			}
		}
	}

	return errors.Join(errs...)
}

func checkElemIndex(ti *types.Interner, agg types.TypeID, index int32) error {
	tt, ok := ti.Lookup(agg)
	if !ok {
		return fmt.Errorf("element of unknown type")
	}
	var n int
	switch tt.Kind {
	case types.KindTuple:
		info, ok := ti.TupleInfo(agg)
		if !ok {
			return fmt.Errorf("element of unresolved tuple %s", ti.TypeString(agg))
		}
		n = len(info.Elems)
	case types.KindStruct:
		info, ok := ti.StructInfo(agg)
		if !ok || info.Opaque || info.Fields == nil {
			return fmt.Errorf("element of opaque or unresolved struct %s", ti.TypeString(agg))
		}
		n = len(info.Fields)
	default:
		return fmt.Errorf("element of non-aggregate %s", ti.TypeString(agg))
	}
	if index < 0 || int(index) >= n {
		return fmt.Errorf("element index %d out of range for %s", index, ti.TypeString(agg))
	}
	return nil
}

// validateCalls checks apply and partial_apply against the callee's
// signature. Passing a borrowed address where the parameter wants a raw
// pointer of the same pointee is accepted.
func validateCalls(m *Module, f *Func) error {
	var errs []error

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			ctx := fmt.Sprintf("bb%d instr %d", i, j)

			switch ins.Kind {
			case OpApply:
				errs = appendCallErrs(errs, m, f, ctx, ins.Span, "apply", ins.Apply.Callee, ins.Apply.Args, ins.Result, false)
			case OpPartialApply:
				errs = appendCallErrs(errs, m, f, ctx, ins.Span, "partial_apply", ins.PartialApply.Callee, ins.PartialApply.Args, ins.Result, true)
			}
		}
	}

	return errors.Join(errs...)
}

func appendCallErrs(errs []error, m *Module, f *Func, ctx string, sp source.Span, what string, callee ValueID, args []ValueID, result ValueID, partial bool) []error {
	fnType := f.ValueType(callee)
	info, ok := m.Types.FnInfo(fnType)
	if !ok {
		return append(errs, valErr(diag.ValBadApply, sp, "%s: %s of non-function %%%d", ctx, what, callee))
	}

	params := info.Params
	if info.IndirectResult {
		// The out-slot is an explicit leading argument of Ref type.
		params = append([]types.TypeID{m.Types.Intern(types.MakeRef(info.Result))}, params...)
	}

	if partial {
		if len(args) > len(params) {
			return append(errs, valErr(diag.ValBadApply, sp, "%s: partial_apply binds %d args, callee has %d params", ctx, len(args), len(params)))
		}
		// Bound arguments fill the trailing parameters.
		params = params[len(params)-len(args):]
	} else if len(args) != len(params) {
		return append(errs, valErr(diag.ValBadApply, sp, "%s: apply passes %d args, callee wants %d", ctx, len(args), len(params)))
	}

	for k, arg := range args {
		got := f.ValueType(arg)
		want := params[k]
		if got == want || refToPtrOK(m.Types, got, want) {
			continue
		}
		errs = append(errs, valErr(diag.ValBadApply, sp, "%s: %s arg %d has type %s, parameter wants %s",
			ctx, what, k, m.Types.TypeString(got), m.Types.TypeString(want)))
	}

	if !partial && result != NoValueID {
		want := info.Result
		if info.IndirectResult {
			want = m.Types.Builtins().Unit
		}
		if got := f.ValueType(result); got != want {
			errs = append(errs, valErr(diag.ValBadApply, sp, "%s: apply result type %s, callee returns %s",
				ctx, m.Types.TypeString(got), m.Types.TypeString(want)))
		}
	}

	return errs
}

// refToPtrOK reports whether a borrowed address may stand in for a raw
// pointer argument of the same pointee.
func refToPtrOK(ti *types.Interner, got, want types.TypeID) bool {
	g, ok := ti.Lookup(got)
	if !ok || g.Kind != types.KindRef {
		return false
	}
	w, ok := ti.Lookup(want)
	if !ok || w.Kind != types.KindPtr {
		return false
	}
	return g.Elem == w.Elem
}

// validateReturn checks that return terminators match the signature.
// Indirect-result functions write through their slot and return nothing.
func validateReturn(m *Module, f *Func) error {
	info, ok := m.Types.FnInfo(f.Type)
	if !ok {
		return valErr(diag.ValTypeMismatch, f.Span, "function type %s is not a signature", m.Types.TypeString(f.Type))
	}

	wantsValue := !info.IndirectResult
	if wantsValue {
		tt, ok := m.Types.Lookup(info.Result)
		if ok && tt.Kind == types.KindUnit {
			wantsValue = false
		}
	}

	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if bb.Term.Kind != TermReturn {
			continue
		}
		switch {
		case wantsValue && !bb.Term.Return.HasValue:
			errs = append(errs, valErr(diag.ValTypeMismatch, bb.Term.Span, "bb%d: return without value in %s function", i, m.Types.TypeString(info.Result)))
		case !wantsValue && bb.Term.Return.HasValue:
			errs = append(errs, valErr(diag.ValTypeMismatch, bb.Term.Span, "bb%d: return with value in unit function", i))
		case wantsValue:
			if got := f.ValueType(bb.Term.Return.Value); got != info.Result {
				errs = append(errs, valErr(diag.ValTypeMismatch, bb.Term.Span, "bb%d: return of %s, signature wants %s",
					i, m.Types.TypeString(got), m.Types.TypeString(info.Result)))
			}
		}
	}
	return errors.Join(errs...)
}
