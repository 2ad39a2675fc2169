// Package token defines the lexical tokens produced by the SQL tokenizer.
//
// The token set is intentionally coarse: keywords share a single Kind and are
// distinguished by their normalized text, so unknown dialect words degrade to
// identifiers instead of failing the scan.
package token

import "fmt"

// Kind represents the lexical class of a token.
type Kind int32

const (
	// Special tokens
	EOF     Kind = iota
	Unknown      // any character the scanner does not recognize

	// Words
	Keyword     // SELECT, FROM, JOIN ...
	Ident       // customers
	QuotedIdent // [Order Details] or "Order Details"
	TempTable   // #orders or ##orders
	Variable    // @id
	GlobalVar   // @@ROWCOUNT

	// Literals
	Number // 123, 45.67, 1e10, .5
	String // 'hello'
	NString
	Binary // 0x1F

	// Punctuation
	Operator // =, <>, +=, ...
	LParen
	RParen
	Dot
	Comma
	Semicolon

	Comment
	BatchSeparator // GO on its own line
)

var kindNames = map[Kind]string{
	EOF:            "EOF",
	Unknown:        "UNKNOWN",
	Keyword:        "KEYWORD",
	Ident:          "IDENT",
	QuotedIdent:    "QUOTED_IDENT",
	TempTable:      "TEMP_TABLE",
	Variable:       "VARIABLE",
	GlobalVar:      "GLOBAL_VARIABLE",
	Number:         "NUMBER",
	String:         "STRING",
	NString:        "NSTRING",
	Binary:         "BINARY",
	Operator:       "OPERATOR",
	LParen:         "(",
	RParen:         ")",
	Dot:            ".",
	Comma:          ",",
	Semicolon:      ";",
	Comment:        "COMMENT",
	BatchSeparator: "GO",
}

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND(%d)", k)
}

// MarshalText lets kinds render by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Token is a single lexical unit. Text is the exact source slice, so
// concatenating token texts with the skipped whitespace reproduces the input.
type Token struct {
	Kind Kind
	Text string
	// Norm is the case-folded, unquoted name for word-like tokens
	// (keywords, identifiers, temp tables, variables). Empty otherwise.
	Norm string
	Pos  Position
}

// End returns the byte offset just past the token.
func (t Token) End() int {
	return t.Pos.Offset + len(t.Text)
}

// Span returns the source range covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Pos.Offset, End: t.End()}
}

// IsKeyword reports whether t is the keyword kw. kw must be lowercase.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == Keyword && t.Norm == kw
}

// IsAnyKeyword reports whether t is one of the given lowercase keywords.
func (t Token) IsAnyKeyword(kws ...string) bool {
	if t.Kind != Keyword {
		return false
	}
	for _, kw := range kws {
		if t.Norm == kw {
			return true
		}
	}
	return false
}

// IsName reports whether t can name an object: a plain or quoted identifier,
// or a keyword used in a name position (e.g. a column called "status").
func (t Token) IsName() bool {
	return t.Kind == Ident || t.Kind == QuotedIdent
}

// IsTrivia reports whether the token carries no syntax (comments).
func (t Token) IsTrivia() bool {
	return t.Kind == Comment
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Pos.Line, t.Pos.Column)
}

// keywords is the set of reserved words the resolver cares about. Anything
// else scans as an identifier.
var keywords = map[string]struct{}{
	"all": {}, "alter": {}, "and": {}, "apply": {}, "as": {}, "asc": {},
	"begin": {}, "between": {}, "by": {}, "case": {}, "commit": {}, "create": {}, "cross": {},
	"declare": {}, "delete": {}, "desc": {}, "distinct": {}, "drop": {},
	"else": {}, "end": {}, "except": {}, "exec": {}, "execute": {}, "exists": {},
	"for": {}, "from": {}, "full": {}, "group": {}, "having": {}, "if": {}, "in": {},
	"inner": {}, "insert": {}, "intersect": {}, "into": {}, "is": {}, "join": {},
	"left": {}, "like": {}, "matched": {}, "merge": {}, "not": {}, "null": {},
	"on": {}, "option": {}, "or": {}, "order": {}, "outer": {}, "output": {},
	"percent": {}, "pivot": {}, "print": {}, "raiserror": {}, "rollback": {},
	"return": {}, "right": {}, "select": {}, "set": {}, "table": {}, "then": {},
	"throw": {}, "top": {}, "truncate": {}, "union": {}, "unpivot": {}, "update": {},
	"use": {}, "using": {}, "values": {}, "waitfor": {}, "when": {}, "where": {},
	"while": {}, "with": {},
}

// LookupKeyword reports whether the folded word is a reserved keyword.
func LookupKeyword(norm string) bool {
	_, ok := keywords[norm]
	return ok
}
