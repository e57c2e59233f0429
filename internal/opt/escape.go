package opt

import (
	"tarn/internal/mir"
)

// escapeState classifies one block with respect to one element's address.
type escapeState uint8

const (
	// escapeUnknown is the transient zero value while the map is built.
	escapeUnknown escapeState = iota
	// escapeYes means the address may be visible to unknown code here.
	escapeYes
	// escapeNo means the address is still private to the function here.
	escapeNo
)

// escapeMap records, per block, whether the element's address may have
// escaped by the time the block runs. The granularity is whole blocks: a
// block containing an escaping access counts as escaped throughout, which
// only ever forfeits a promotion, never admits a wrong one.
type escapeMap map[mir.BlockID]escapeState

// buildEscapeMap seeds every block containing a useEscape access and closes
// the seeds over forward reachability. Every other block stays private.
func buildEscapeMap(fn *mir.Func, uses []elementUse) escapeMap {
	em := make(escapeMap, len(fn.Blocks))

	var work []mir.BlockID
	for _, u := range uses {
		if u.kind != useEscape {
			continue
		}
		if em[u.instr.Block] != escapeYes {
			em[u.instr.Block] = escapeYes
			work = append(work, u.instr.Block)
		}
	}

	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, succ := range mir.Successors(fn, b) {
			if em[succ] != escapeYes {
				em[succ] = escapeYes
				work = append(work, succ)
			}
		}
	}

	for i := range fn.Blocks {
		id := fn.Blocks[i].ID
		if em[id] == escapeUnknown {
			em[id] = escapeNo
		}
	}
	return em
}
