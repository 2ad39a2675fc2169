// Package engine ties the resolver stages together behind a text plus
// line/column API. It owns the token cache and the current catalog
// snapshot; everything else is computed per request.
package engine

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/leapstack-labs/sqlsense/pkg/batch"
	"github.com/leapstack-labs/sqlsense/pkg/catalog"
	"github.com/leapstack-labs/sqlsense/pkg/complete"
	"github.com/leapstack-labs/sqlsense/pkg/join"
	"github.com/leapstack-labs/sqlsense/pkg/lexer"
	"github.com/leapstack-labs/sqlsense/pkg/scope"
	"github.com/leapstack-labs/sqlsense/pkg/token"
	"github.com/leapstack-labs/sqlsense/pkg/typecheck"
)

// Engine answers completion and diagnostics requests. It is safe for
// concurrent use.
type Engine struct {
	logger  *slog.Logger
	cache   *lexer.Cache
	catalog atomic.Pointer[catalog.Snapshot]

	complete complete.Options
	join     join.Options
	policy   *typecheck.Policy
}

// Config holds engine configuration.
type Config struct {
	// Catalog is the initial snapshot (optional, empty if nil)
	Catalog *catalog.Snapshot
	// Complete tunes candidate ranking
	Complete complete.Options
	// Join bounds the join search
	Join join.Options
	// Policy decides which type families compare cleanly (optional)
	Policy *typecheck.Policy
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy := cfg.Policy
	if policy == nil {
		policy = typecheck.DefaultPolicy()
	}
	opts := cfg.Join
	if opts == (join.Options{}) {
		opts = join.DefaultOptions()
	}

	e := &Engine{
		logger:   logger,
		cache:    lexer.NewCache(),
		complete: cfg.Complete,
		join:     opts,
		policy:   policy,
	}
	e.SetCatalog(cfg.Catalog)
	return e
}

// SetCatalog swaps the snapshot used by later requests. Requests already
// running keep the snapshot they started with.
func (e *Engine) SetCatalog(snap *catalog.Snapshot) {
	if snap == nil {
		snap = catalog.Empty()
	}
	e.catalog.Store(snap)
	e.logger.Debug("catalog swapped", "objects", len(snap.Objects()), "foreign_keys", len(snap.Edges()))
}

// Catalog returns the current snapshot.
func (e *Engine) Catalog() *catalog.Snapshot {
	return e.catalog.Load()
}

// Tokens tokenizes text, reusing the previous result when text is
// unchanged.
func (e *Engine) Tokens(text string) []token.Token {
	return e.cache.Tokenize(text)
}

// CacheStats reports token cache hits and misses.
func (e *Engine) CacheStats() (hits, misses int) {
	return e.cache.Stats()
}

// request is the state shared by the per-position operations.
type request struct {
	tokens []token.Token
	offset int
	cat    *catalog.Snapshot
	pos    scope.Position
}

func (e *Engine) at(text string, line, col int) request {
	r := request{
		tokens: e.Tokens(text),
		offset: Offset(text, line, col),
		cat:    e.Catalog(),
	}
	r.pos = scope.Walk(batch.Split(r.tokens), r.offset, r.cat)
	return r
}

// ScopeAt resolves the scope at a position.
func (e *Engine) ScopeAt(text string, line, col int) *scope.Resolved {
	r := e.at(text, line, col)
	return r.pos.Scope(r.cat)
}

// Cursor reports the completion context at a position.
func (e *Engine) Cursor(text string, line, col int) complete.Cursor {
	return complete.DetectCursor(e.Tokens(text), Offset(text, line, col))
}

// Complete lists completion candidates at a position. After JOIN the list
// starts with join suggestions for the tables already in the statement,
// and those tables are not offered again.
func (e *Engine) Complete(text string, line, col int) []complete.Candidate {
	r := e.at(text, line, col)
	cur := complete.DetectCursor(r.tokens, r.offset)
	s := r.pos.Scope(r.cat)
	joining := cur.Context == complete.ContextTable && afterJoin(r.tokens, cur.Replace.Start)
	if joining {
		cur.Joined = joinedObjects(r, s, cur)
	}
	cands := e.complete.Resolve(s, cur, r.cat)
	e.logger.Debug("complete",
		"line", line, "col", col,
		"context", cur.Context.String(),
		"prefix", cur.Prefix,
		"candidates", len(cands))

	if !joining || len(cur.Qualifier) > 0 {
		return cands
	}
	joins := e.joinCandidates(r, s, cur)
	if len(joins) == 0 {
		return cands
	}
	out := append(joins, cands...)
	for i := range out {
		out[i].SortPriority = i
	}
	return out
}

// joinedObjects returns the catalog keys of the objects the cursor's
// statement already references before the word being typed.
func joinedObjects(r request, s *scope.Resolved, cur complete.Cursor) map[string]bool {
	chunk := r.pos.Arena.Get(r.pos.Chunk)
	if chunk == nil || s == nil {
		return nil
	}
	joined := make(map[string]bool)
	for _, ref := range chunk.Tables {
		if ref.Span.Start >= cur.Replace.Start {
			continue
		}
		b, ok := s.Lookup(ref.Qualifier())
		if !ok || b.Outer {
			continue
		}
		if obj, ok := scope.ObjectOf(b.Entity); ok {
			joined[catalog.Key(obj.Schema, obj.Name)] = true
		}
	}
	return joined
}

func (e *Engine) joinCandidates(r request, s *scope.Resolved, cur complete.Cursor) []complete.Candidate {
	chunk := r.pos.Arena.Get(r.pos.Chunk)
	if chunk == nil {
		return nil
	}
	var out []complete.Candidate
	for _, sg := range join.Suggest(s, chunk.Tables, r.cat, e.join) {
		if cur.Prefix != "" && !strings.HasPrefix(token.Fold(sg.Target.Name), token.Fold(cur.Prefix)) {
			continue
		}
		text := strings.TrimPrefix(sg.JoinText(), "JOIN ")
		detail := "foreign key"
		if !sg.ViaFK {
			detail = "similar column names"
		}
		if sg.Depth > 1 {
			detail += ", via " + sg.Path[0].To.Name
		}
		out = append(out, complete.Candidate{
			Label:      sg.Target.Name + " " + sg.Alias + " ON " + sg.OnClause,
			Kind:       complete.KindJoinSuggestion,
			Detail:     detail,
			Replace:    cur.Replace,
			InsertText: text,
		})
	}
	return out
}

// afterJoin reports whether the last token before offset is JOIN.
func afterJoin(tokens []token.Token, offset int) bool {
	prev := -1
	for i, t := range tokens {
		if t.Kind == token.EOF || t.Pos.Offset >= offset {
			break
		}
		if !t.IsTrivia() {
			prev = i
		}
	}
	return prev >= 0 && tokens[prev].IsKeyword("join")
}

// SuggestJoins lists join suggestions for the statement at a position.
func (e *Engine) SuggestJoins(text string, line, col int) []join.Suggestion {
	r := e.at(text, line, col)
	chunk := r.pos.Arena.Get(r.pos.Chunk)
	if chunk == nil {
		return nil
	}
	return join.Suggest(r.pos.Scope(r.cat), chunk.Tables, r.cat, e.join)
}
