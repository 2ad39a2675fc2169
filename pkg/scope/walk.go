package scope

import (
	"github.com/leapstack-labs/sqlsense/pkg/batch"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/statement"
)

// Position is the resolved location of an offset in a document.
type Position struct {
	Batch   int
	Arena   *statement.Arena
	Chunk   int // innermost chunk covering the offset, -1 when none
	Context *Context
}

// Scope resolves the scope at the position.
func (p Position) Scope(cat *catalog.Snapshot) *Resolved {
	return At(p.Arena, p.Chunk, p.Context, cat)
}

// Walk replays every statement before offset so that temp objects created
// earlier in the document are visible at offset. Each batch gets a fresh
// Context; global temp tables carry over through a shared Session.
func Walk(batches []batch.Batch, offset int, cat *catalog.Snapshot) Position {
	session := NewSession()
	target := batch.At(batches, offset)
	if target < 0 {
		target = len(batches) - 1
	}

	pos := Position{Batch: target, Chunk: -1}
	for i := 0; i <= target && i < len(batches); i++ {
		arena := statement.Build(batches[i])
		ctx := NewContext(session)
		if i < target {
			for _, id := range arena.Roots {
				ctx.Apply(arena, id, cat)
			}
			continue
		}

		pos.Arena = arena
		pos.Context = ctx
		pos.Chunk = arena.At(offset)
		root := arena.Root(pos.Chunk)
		for _, id := range arena.Roots {
			if id == root {
				break
			}
			if root < 0 && arena.Get(id).End >= offset {
				break
			}
			ctx.Apply(arena, id, cat)
		}
	}
	if pos.Arena == nil {
		pos.Arena = &statement.Arena{}
		pos.Context = NewContext(session)
	}
	return pos
}

// Document replays a whole document and returns, per batch, the arena and
// the context as it stands before each root statement is applied. Used by
// whole-document checks that need the scope of every statement.
func Document(batches []batch.Batch, cat *catalog.Snapshot, visit func(arena *statement.Arena, root int, ctx *Context)) {
	session := NewSession()
	for _, b := range batches {
		arena := statement.Build(b)
		ctx := NewContext(session)
		for _, id := range arena.Roots {
			visit(arena, id, ctx)
			ctx.Apply(arena, id, cat)
		}
	}
}
