package statement

// MaxDepth bounds subquery nesting. Parentheses nested deeper than this are
// kept as plain tokens of the enclosing chunk.
const MaxDepth = 64

// Arena owns every chunk of a batch. Chunks refer to each other by index,
// so the tree has no pointer cycles and walking it is bounded.
type Arena struct {
	Chunks []Chunk
	Roots  []int // top-level statements in source order
}

// Get returns the chunk with the given id, nil when out of range.
func (a *Arena) Get(id int) *Chunk {
	if a == nil || id < 0 || id >= len(a.Chunks) {
		return nil
	}
	return &a.Chunks[id]
}

// At returns the innermost chunk whose range covers offset, or -1.
func (a *Arena) At(offset int) int {
	best := -1
	for i := range a.Chunks {
		c := &a.Chunks[i]
		if offset < c.Start || offset > c.End {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := &a.Chunks[best]
		if c.Depth > b.Depth || (c.Depth == b.Depth && c.Start >= b.Start) {
			best = i
		}
	}
	return best
}

// Root returns the top-level statement that contains chunk id.
func (a *Arena) Root(id int) int {
	for steps := 0; id >= 0 && steps <= MaxDepth+1; steps++ {
		c := a.Get(id)
		if c == nil {
			return -1
		}
		if c.Parent < 0 {
			return id
		}
		id = c.Parent
	}
	return -1
}

// Path returns the chain of chunk ids from the root statement down to id.
func (a *Arena) Path(id int) []int {
	var rev []int
	for steps := 0; id >= 0 && steps <= MaxDepth+1; steps++ {
		c := a.Get(id)
		if c == nil {
			break
		}
		rev = append(rev, id)
		id = c.Parent
	}
	path := make([]int, len(rev))
	for i, v := range rev {
		path[len(rev)-1-i] = v
	}
	return path
}
