package mir

// SimplifyCFG performs control flow graph simplification on a function.
// Transformations:
// 1. Remove trivial goto blocks (0 instructions + goto terminator)
// 2. Collapse goto chains
// 3. Remove unreachable blocks
// 4. Renumber blocks deterministically
//
// The entry block is never redirected away, even when trivial, so that
// Blocks[0] stays the function entry.
func SimplifyCFG(f *Func) {
	if f == nil || len(f.Blocks) == 0 {
		return
	}

	// Phase 1: Build redirect map for trivial goto blocks
	redirects := buildRedirectMap(f)

	// Phase 2: Apply redirects to all terminators
	applyRedirects(f, redirects)

	// Phase 3: Compute reachability and remove dead blocks
	reachable := Reachable(f)

	// Phase 4: Compact and renumber blocks
	compactBlocks(f, reachable)
}

// buildRedirectMap finds all trivial goto blocks and builds a mapping
// from their IDs to their final targets (following chains).
func buildRedirectMap(f *Func) map[BlockID]BlockID {
	redirects := make(map[BlockID]BlockID)
	entry := f.Blocks[0].ID

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if bb.ID == entry {
			continue
		}
		// Trivial goto: 0 instructions + TermGoto
		if len(bb.Instrs) == 0 && bb.Term.Kind == TermGoto {
			target := bb.Term.Goto.Target
			// Follow chain to final target
			visited := make(map[BlockID]bool)
			for !visited[target] {
				visited[target] = true

				if next, ok := redirects[target]; ok {
					target = next
					continue
				}
				if target != entry && isTrivialGotoBlock(f, target) {
					target = f.Blocks[target].Term.Goto.Target
					continue
				}
				break
			}
			redirects[bb.ID] = target
		}
	}
	return redirects
}

// isTrivialGotoBlock checks if a block is a trivial goto block
// (0 instructions and a goto terminator).
func isTrivialGotoBlock(f *Func, id BlockID) bool {
	if id < 0 || int(id) >= len(f.Blocks) {
		return false
	}
	bb := &f.Blocks[id]
	return len(bb.Instrs) == 0 && bb.Term.Kind == TermGoto
}

// applyRedirects updates all terminators to use the redirected targets.
func applyRedirects(f *Func, redirects map[BlockID]BlockID) {
	if len(redirects) == 0 {
		return
	}

	for i := range f.Blocks {
		f.Blocks[i].Term.Successors(func(target *BlockID) bool {
			if newID, ok := redirects[*target]; ok {
				*target = newID
			}
			return true
		})
	}
}

// compactBlocks removes unreachable blocks and renumbers the remaining ones.
// Value numbering is rebuilt when blocks drop so that definitions in
// removed blocks disappear from the value table.
func compactBlocks(f *Func, reachable []bool) {
	count := 0
	for _, r := range reachable {
		if r {
			count++
		}
	}

	// If all blocks are reachable, just update IDs
	if count == len(f.Blocks) {
		for i := range f.Blocks {
			f.Blocks[i].ID = BlockID(i) //nolint:gosec // G115: bounded by existing block count
		}
		return
	}

	// Build old->new ID mapping
	oldToNew := make(map[BlockID]BlockID)
	newBlocks := make([]Block, 0, count)

	for i, keep := range reachable {
		if keep {
			//nolint:gosec // G115: bounded by existing block count
			oldToNew[BlockID(i)] = BlockID(len(newBlocks))
			newBlocks = append(newBlocks, f.Blocks[i])
		}
	}

	for i := range newBlocks {
		newBlocks[i].ID = BlockID(i) //nolint:gosec // G115: bounded by newBlocks length
		newBlocks[i].Term.Successors(func(target *BlockID) bool {
			if newID, ok := oldToNew[*target]; ok {
				*target = newID
			}
			return true
		})
	}

	f.Blocks = newBlocks
	renumberValues(f)
}
