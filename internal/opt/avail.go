package opt

import (
	"tarn/internal/mir"
)

// availKind is one point of the must-initialization lattice for a single
// leaf element.
type availKind uint8

const (
	// availBottom means no path information yet.
	availBottom availKind = iota
	// availUninit means the element was certainly never written.
	availUninit
	// availKnown means exactly one store's value sits in the element.
	availKnown
	// availInit means the element holds some value, source unknown.
	availInit
	// availMaybe means written on some paths, untouched on others.
	availMaybe
)

// availState pairs the lattice point with the producing store when the
// value is known.
type availState struct {
	kind  availKind
	store mir.InstrRef
}

var (
	stateBottom = availState{kind: availBottom, store: mir.NoInstrRef}
	stateUninit = availState{kind: availUninit, store: mir.NoInstrRef}
	stateInit   = availState{kind: availInit, store: mir.NoInstrRef}
	stateMaybe  = availState{kind: availMaybe, store: mir.NoInstrRef}
)

func knownState(store mir.InstrRef) availState {
	return availState{kind: availKnown, store: store}
}

// meetAvail joins two path facts. Matching facts survive, two different
// initialized facts blur to init, and mixing initialized with uninit goes
// to maybe because neither claim holds on all paths.
func meetAvail(a, b availState) availState {
	if a.kind == availBottom {
		return b
	}
	if b.kind == availBottom {
		return a
	}
	if a == b {
		return a
	}
	if a.kind == availUninit || b.kind == availUninit ||
		a.kind == availMaybe || b.kind == availMaybe {
		return stateMaybe
	}
	return stateInit
}

// transferUse advances the fact across one access in program order. Loads
// read only.
func transferUse(st availState, u elementUse) availState {
	switch u.kind {
	case useStore:
		return knownState(u.instr)
	case useIndirectCall:
		if u.definite {
			return stateInit
		}
		return mayWrite(st)
	case useEscape:
		return mayWrite(st)
	default:
		return st
	}
}

// mayWrite weakens the fact for an access that might store. A known value
// survives only as "initialized somehow"; an element that might still be
// untouched stays uncertain.
func mayWrite(st availState) availState {
	switch st.kind {
	case availKnown, availInit:
		return stateInit
	default:
		return stateMaybe
	}
}

// verdictKind is the promotion decision for one load on one element.
type verdictKind uint8

const (
	// verdictPromote replaces the loaded element with a store's value.
	verdictPromote verdictKind = iota
	// verdictKeep leaves the load alone.
	verdictKeep
	// verdictUninit flags a read of certainly-uninitialized memory.
	verdictUninit
	// verdictMaybeUninit flags a read initialized only on some paths.
	verdictMaybeUninit
)

type verdict struct {
	kind  verdictKind
	store mir.InstrRef
}

// loadVerdict pairs one load with its element verdict.
type loadVerdict struct {
	load mir.InstrRef
	v    verdict
}

// elementPromoter runs the forward must-initialization dataflow for one
// leaf element and records a verdict for every load touching it. The
// escape map is consulted at each load: a known value in an escaped block
// may have been overwritten by unknown code, so only private blocks
// promote.
type elementPromoter struct {
	fn      *mir.Func
	escape  escapeMap
	byBlock map[mir.BlockID][]elementUse
	in      []availState

	loads []loadVerdict
}

func newElementPromoter(fn *mir.Func, uses []elementUse, escape escapeMap) *elementPromoter {
	ep := &elementPromoter{
		fn:      fn,
		escape:  escape,
		byBlock: make(map[mir.BlockID][]elementUse),
		in:      make([]availState, len(fn.Blocks)),
	}
	for _, u := range uses {
		ep.byBlock[u.instr.Block] = append(ep.byBlock[u.instr.Block], u)
	}
	for i := range ep.in {
		ep.in[i] = stateBottom
	}
	ep.solve()
	ep.judge()
	return ep
}

// solve iterates block entry states to a fixed point. Unreachable blocks
// are ignored so they cannot leak facts into live code.
func (ep *elementPromoter) solve() {
	order := mir.ReversePostorder(ep.fn)
	reach := mir.Reachable(ep.fn)
	preds := mir.Predecessors(ep.fn)
	entry := ep.fn.Blocks[0].ID

	for changed := true; changed; {
		changed = false
		for _, b := range order {
			st := stateBottom
			if b == entry {
				// A fresh box starts with nothing in it.
				st = stateUninit
			}
			for _, p := range preds[b] {
				if reach[p] {
					st = meetAvail(st, ep.outOf(p))
				}
			}
			if st != ep.in[b] {
				ep.in[b] = st
				changed = true
			}
		}
	}
}

func (ep *elementPromoter) outOf(b mir.BlockID) availState {
	st := ep.in[b]
	for _, u := range ep.byBlock[b] {
		st = transferUse(st, u)
	}
	return st
}

// judge replays each reachable block's accesses and records a verdict at
// every load's program point.
func (ep *elementPromoter) judge() {
	reach := mir.Reachable(ep.fn)
	for i := range ep.fn.Blocks {
		b := ep.fn.Blocks[i].ID
		if !reach[b] {
			continue
		}
		st := ep.in[b]
		for _, u := range ep.byBlock[b] {
			if u.kind == useLoad {
				ep.loads = append(ep.loads, loadVerdict{load: u.instr, v: ep.verdictAt(st, b)})
			}
			st = transferUse(st, u)
		}
	}
}

func (ep *elementPromoter) verdictAt(st availState, b mir.BlockID) verdict {
	switch st.kind {
	case availKnown:
		if ep.escape[b] == escapeNo {
			return verdict{kind: verdictPromote, store: st.store}
		}
		return verdict{kind: verdictKeep}
	case availInit:
		return verdict{kind: verdictKeep}
	case availUninit:
		return verdict{kind: verdictUninit}
	default:
		return verdict{kind: verdictMaybeUninit}
	}
}
