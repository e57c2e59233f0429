// Package opt implements the optimization passes and the pass pipeline.
//
// The centerpiece is memory promotion: loads from boxes whose contents are
// locally known become direct uses of the stored values, and boxes that no
// longer matter are deleted. The analysis is element-wise over the
// flattened leaves of the boxed type, so a partially initialized aggregate
// is still promotable leaf by leaf.
package opt

import (
	"sort"

	"tarn/internal/layout"
	"tarn/internal/mir"
	"tarn/internal/types"
)

// useKind classifies how an instruction touches a leaf element.
type useKind uint8

const (
	// useLoad reads the element.
	useLoad useKind = iota
	// useStore overwrites the element with a known value.
	useStore
	// useIndirectCall passes the element's address to a callee that may
	// write it but cannot keep it.
	useIndirectCall
	// useEscape lets the address leave local analysis entirely.
	useEscape
)

func (k useKind) String() string {
	switch k {
	case useLoad:
		return "load"
	case useStore:
		return "store"
	case useIndirectCall:
		return "indirect-call"
	case useEscape:
		return "escape"
	default:
		return "use?"
	}
}

// elementUse is one classified access to a single leaf element. For
// useIndirectCall, definite marks an indirect-return slot, which the callee
// certainly initializes; a by-reference argument may or may not be written.
type elementUse struct {
	instr    mir.InstrRef
	kind     useKind
	definite bool
}

// allocUses indexes every access to one allocation. elems holds the
// accesses per leaf element in program order; an access touching n leaves
// appears in n lists. all holds each classified access once, also in
// program order, so cleanup can see accesses that fan over zero leaves.
// Refcount bookkeeping on the box itself and address projections are kept
// apart: neither reads nor writes the contents.
type allocUses struct {
	elems         [][]elementUse
	all           []elementUse
	insignificant []mir.InstrRef
	projections   []mir.InstrRef
}

// hasBlocker reports whether any access rules out deleting the box: an
// escape means unknown readers, an indirect call means the callee observes
// the memory.
func (au *allocUses) hasBlocker() bool {
	for _, u := range au.all {
		if u.kind == useEscape || u.kind == useIndirectCall {
			return true
		}
	}
	return false
}

// loadOrder returns the distinct load accesses in program order.
func (au *allocUses) loadOrder() []mir.InstrRef {
	var out []mir.InstrRef
	seen := make(map[mir.InstrRef]bool)
	for _, u := range au.all {
		if u.kind == useLoad && !seen[u.instr] {
			seen[u.instr] = true
			out = append(out, u.instr)
		}
	}
	return out
}

type useCollector struct {
	fn     *mir.Func
	types  *types.Interner
	layout *layout.Engine
	uses   *mir.Uses
	box    mir.ValueID

	out allocUses
}

// collectAllocUses walks the address graph rooted at one alloc and
// classifies every access by the leaf elements it touches. The use index
// must be fresh for the current function state.
func collectAllocUses(fn *mir.Func, ti *types.Interner, eng *layout.Engine, uses *mir.Uses, allocRef mir.InstrRef) (*allocUses, error) {
	in := fn.Instr(allocRef)
	count, err := eng.LeafCount(in.Alloc.Elem)
	if err != nil {
		return nil, err
	}
	c := &useCollector{
		fn:     fn,
		types:  ti,
		layout: eng,
		uses:   uses,
		box:    in.Result,
	}
	c.out.elems = make([][]elementUse, count)
	if err := c.collect(in.Result, in.Alloc.Elem, 0); err != nil {
		return nil, err
	}
	c.sortUses()
	return &c.out, nil
}

// collect classifies every use of addr, whose pointee occupies the leaf
// range [base, base+LeafCount(pointee)). Projections recurse with a
// narrower range; everything unrecognized escapes the whole current range.
func (c *useCollector) collect(addr mir.ValueID, pointee types.TypeID, base int) error {
	if addr == mir.NoValueID {
		return nil
	}
	count, err := c.layout.LeafCount(pointee)
	if err != nil {
		return err
	}

	for _, site := range c.uses.Of(addr) {
		if site.Ref.IsTerm() {
			c.record(useEscape, false, site.Ref, base, count)
			continue
		}
		in := c.fn.Instr(site.Ref)
		if in == nil {
			c.record(useEscape, false, site.Ref, base, count)
			continue
		}

		switch in.Kind {
		case mir.OpRetain, mir.OpRelease, mir.OpDealloc:
			// Refcounting applies to the box as a whole; on an interior
			// address it is malformed and treated as an escape.
			if addr == c.box {
				c.out.insignificant = append(c.out.insignificant, site.Ref)
			} else {
				c.record(useEscape, false, site.Ref, base, count)
			}

		case mir.OpLoad:
			c.record(useLoad, false, site.Ref, base, count)

		case mir.OpStore:
			if site.Operand == 1 {
				c.record(useStore, false, site.Ref, base, count)
			} else {
				// The address itself is the stored value.
				c.record(useEscape, false, site.Ref, base, count)
			}

		case mir.OpElemAddr:
			off, offErr := c.layout.FieldOffset(pointee, int(in.ElemAddr.Index))
			ft, ftErr := c.layout.FieldType(pointee, int(in.ElemAddr.Index))
			if offErr != nil || ftErr != nil {
				c.record(useEscape, false, site.Ref, base, count)
				continue
			}
			c.out.projections = append(c.out.projections, site.Ref)
			if err := c.collect(in.Result, ft, base+off); err != nil {
				return err
			}

		case mir.OpApply:
			if kind, definite, ok := c.classifyCallArg(in.Apply.Callee, site.Operand, false, len(in.Apply.Args)); ok {
				c.record(kind, definite, site.Ref, base, count)
			} else {
				c.record(useEscape, false, site.Ref, base, count)
			}

		case mir.OpPartialApply:
			if kind, definite, ok := c.classifyCallArg(in.PartialApply.Callee, site.Operand, true, len(in.PartialApply.Args)); ok {
				c.record(kind, definite, site.Ref, base, count)
			} else {
				c.record(useEscape, false, site.Ref, base, count)
			}

		default:
			// copy_addr on either side, aggregation into values, anything
			// unrecognized: the address leaves local analysis.
			c.record(useEscape, false, site.Ref, base, count)
		}
	}
	return nil
}

// classifyCallArg decides what passing an address at the given operand of a
// call means for the memory behind it. Operand 0 is the callee; argument k
// sits at operand k+1. ok=false means the call captures the address.
func (c *useCollector) classifyCallArg(callee mir.ValueID, operand int, partial bool, argCount int) (useKind, bool, bool) {
	if operand == 0 {
		return useEscape, false, false
	}
	arg := operand - 1
	info, ok := c.types.FnInfo(c.fn.ValueType(callee))
	if !ok {
		return useEscape, false, false
	}

	if partial {
		// Bound arguments fill the callee's trailing parameters. The
		// indirect-return slot is a leading argument of the eventual full
		// call and can never be bound here.
		param := len(info.Params) - argCount + arg
		if param < 0 || param >= len(info.Params) {
			return useEscape, false, false
		}
		tt, ok := c.types.Lookup(info.Params[param])
		if !ok || tt.Kind != types.KindRef {
			return useEscape, false, false
		}
		return useIndirectCall, false, true
	}

	if !c.types.ParamIsNonCapturing(c.fn.ValueType(callee), arg) {
		return useEscape, false, false
	}
	definite := info.IndirectResult && arg == 0
	return useIndirectCall, definite, true
}

func (c *useCollector) record(kind useKind, definite bool, ref mir.InstrRef, base, count int) {
	u := elementUse{instr: ref, kind: kind, definite: definite}
	c.out.all = append(c.out.all, u)
	for i := base; i < base+count; i++ {
		c.out.elems[i] = append(c.out.elems[i], u)
	}
}

// sortUses restores program order. Recursing through projections appends
// uses of the projected address when the projection is met, which can be
// earlier than sibling accesses through the box itself.
func (c *useCollector) sortUses() {
	for _, list := range c.out.elems {
		sortElementUses(list)
	}
	sortElementUses(c.out.all)
}

func sortElementUses(list []elementUse) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].instr, list[j].instr
		if a.Block != b.Block {
			return a.Block < b.Block
		}
		return instrOrder(a) < instrOrder(b)
	})
}

// instrOrder maps an instruction index to its in-block position, with the
// terminator last.
func instrOrder(ref mir.InstrRef) int64 {
	if ref.IsTerm() {
		return int64(1) << 32
	}
	return int64(ref.Index)
}
