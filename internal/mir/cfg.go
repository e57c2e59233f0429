package mir

// Successors returns the outgoing edge targets of block b in terminator
// order. If and Goto share the slice backing each call, so callers copy
// when they retain it.
func Successors(f *Func, b BlockID) []BlockID {
	blk := f.Block(b)
	if blk == nil {
		return nil
	}
	var out []BlockID
	blk.Term.Successors(func(target *BlockID) bool {
		out = append(out, *target)
		return true
	})
	return out
}

// Predecessors builds the reverse edge map for all blocks of f.
func Predecessors(f *Func) map[BlockID][]BlockID {
	preds := make(map[BlockID][]BlockID, len(f.Blocks))
	for i := range f.Blocks {
		from := f.Blocks[i].ID
		f.Blocks[i].Term.Successors(func(target *BlockID) bool {
			preds[*target] = append(preds[*target], from)
			return true
		})
	}
	return preds
}

// ReversePostorder returns the blocks reachable from entry in reverse
// postorder. Declarations yield nil.
func ReversePostorder(f *Func) []BlockID {
	if f.IsDecl() {
		return nil
	}
	seen := make([]bool, len(f.Blocks))
	var post []BlockID

	var walk func(b BlockID)
	walk = func(b BlockID) {
		if b < 0 || int(b) >= len(f.Blocks) || seen[b] {
			return
		}
		seen[b] = true
		f.Blocks[b].Term.Successors(func(target *BlockID) bool {
			walk(*target)
			return true
		})
		post = append(post, b)
	}
	walk(f.Blocks[0].ID)

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// Reachable marks every block reachable from entry.
func Reachable(f *Func) []bool {
	seen := make([]bool, len(f.Blocks))
	if f.IsDecl() {
		return seen
	}
	stack := []BlockID{f.Blocks[0].ID}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b < 0 || int(b) >= len(f.Blocks) || seen[b] {
			continue
		}
		seen[b] = true
		f.Blocks[b].Term.Successors(func(target *BlockID) bool {
			stack = append(stack, *target)
			return true
		})
	}
	return seen
}
