// Package lexer turns raw T-SQL text into a flat token stream.
//
// The scanner is tolerant: it never fails. Unterminated strings and comments
// run to end of input, and any byte it does not understand becomes a
// single-character Unknown token so that downstream stages always see the
// full text.
package lexer

import (
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Lexer scans SQL input one byte at a time.
type Lexer struct {
	input     string
	pos       int  // offset of ch
	readPos   int  // offset after ch
	ch        byte // current char under examination
	line      int  // 0-based line of ch
	lineStart int  // offset of the first byte of the current line

	// lineHasToken is set once a non-comment token is emitted on the
	// current line. GO is only a batch separator on an otherwise empty line.
	lineHasToken bool
}

// New creates a Lexer for the given input.
func New(input string) *Lexer {
	l := &Lexer{input: input}
	if len(input) > 0 {
		l.ch = input[0]
	}
	l.readPos = 1
	return l
}

// Tokenize scans the whole input. The returned slice always ends with EOF.
func Tokenize(input string) []token.Token {
	l := New(input)
	tokens := make([]token.Token, 0, len(input)/4+1)
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			return tokens
		}
	}
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.eof() {
		return
	}
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.pos + 1
		l.lineHasToken = false
	}
	l.pos = l.readPos
	l.readPos++
	if l.pos < len(l.input) {
		l.ch = l.input[l.pos]
	} else {
		l.ch = 0
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.pos - l.lineStart,
		Offset: l.pos,
	}
}

// NextToken returns the next token, EOF once the input is exhausted.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	pos := l.currentPos()
	if l.eof() {
		return token.Token{Kind: token.EOF, Pos: pos}
	}

	switch ch := l.ch; {
	case ch == '-' && l.peekChar() == '-':
		l.skipLineComment()
		return l.emit(token.Comment, pos)
	case ch == '/' && l.peekChar() == '*':
		l.skipBlockComment()
		return l.emit(token.Comment, pos)
	case ch == '\'':
		l.readString('\'')
		return l.emit(token.String, pos)
	case (ch == 'N' || ch == 'n') && l.peekChar() == '\'':
		l.readChar()
		l.readString('\'')
		return l.emit(token.NString, pos)
	case ch == '[':
		l.readDelimited(']')
		return l.emit(token.QuotedIdent, pos)
	case ch == '"':
		l.readDelimited('"')
		return l.emit(token.QuotedIdent, pos)
	case ch == '@':
		kind := token.Variable
		l.readChar()
		if l.ch == '@' {
			kind = token.GlobalVar
			l.readChar()
		}
		l.readWord()
		return l.emit(kind, pos)
	case ch == '#':
		l.readChar()
		if l.ch == '#' {
			l.readChar()
		}
		l.readWord()
		return l.emit(token.TempTable, pos)
	case ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X'):
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return l.emit(token.Binary, pos)
	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		l.readNumber()
		return l.emit(token.Number, pos)
	case isLetter(ch) || ch == '_':
		return l.readWordToken(pos)
	}

	if op, ok := l.matchOperator(); ok {
		for range op {
			l.readChar()
		}
		return l.emit(token.Operator, pos)
	}

	kind := token.Unknown
	switch l.ch {
	case '(':
		kind = token.LParen
	case ')':
		kind = token.RParen
	case '.':
		kind = token.Dot
	case ',':
		kind = token.Comma
	case ';':
		kind = token.Semicolon
	}
	l.readChar()
	return l.emit(kind, pos)
}

// emit builds the token spanning from pos to the current offset.
func (l *Lexer) emit(kind token.Kind, pos token.Position) token.Token {
	text := l.input[pos.Offset:l.pos]
	tok := token.Token{Kind: kind, Text: text, Pos: pos}
	switch kind {
	case token.Keyword, token.Ident, token.TempTable, token.Variable, token.GlobalVar:
		tok.Norm = token.Fold(text)
	case token.QuotedIdent:
		tok.Norm = token.Fold(token.Unquote(text))
	}
	if kind != token.Comment {
		l.lineHasToken = true
	}
	return tok
}

// readWordToken reads an identifier, keyword or GO separator.
func (l *Lexer) readWordToken(pos token.Position) token.Token {
	startOfLine := !l.lineHasToken
	l.readWord()
	word := token.Fold(l.input[pos.Offset:l.pos])

	if word == "go" && startOfLine {
		if end, ok := l.batchSeparatorEnd(); ok {
			for l.pos < end {
				l.readChar()
			}
			return l.emit(token.BatchSeparator, pos)
		}
	}
	if token.LookupKeyword(word) {
		return l.emit(token.Keyword, pos)
	}
	return l.emit(token.Ident, pos)
}

// batchSeparatorEnd checks that GO is followed only by an optional repeat
// count, blanks and an optional line comment. It returns the offset where the
// separator token ends.
func (l *Lexer) batchSeparatorEnd() (int, bool) {
	in := l.input
	i := l.pos
	end := l.pos
	skipBlanks := func() {
		for i < len(in) && (in[i] == ' ' || in[i] == '\t') {
			i++
		}
	}
	skipBlanks()
	if i < len(in) && isDigit(in[i]) {
		for i < len(in) && isDigit(in[i]) {
			i++
		}
		end = i
		skipBlanks()
	}
	if i >= len(in) || in[i] == '\n' || in[i] == '\r' {
		return end, true
	}
	if in[i] == '-' && i+1 < len(in) && in[i+1] == '-' {
		return end, true
	}
	return 0, false
}

func (l *Lexer) skipWhitespace() {
	for !l.eof() && (l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v') {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for !l.eof() && l.ch != '\n' {
		l.readChar()
	}
}

// skipBlockComment consumes a /* */ comment. T-SQL block comments nest.
func (l *Lexer) skipBlockComment() {
	l.readChar() // skip '/'
	l.readChar() // skip '*'
	depth := 1
	for !l.eof() {
		switch {
		case l.ch == '/' && l.peekChar() == '*':
			depth++
			l.readChar()
		case l.ch == '*' && l.peekChar() == '/':
			depth--
			l.readChar()
			if depth == 0 {
				l.readChar()
				return
			}
		}
		l.readChar()
	}
}

// readString consumes a quoted literal. A doubled quote is an escape.
func (l *Lexer) readString(quote byte) {
	l.readChar() // skip opening quote
	for !l.eof() {
		if l.ch == quote {
			if l.peekChar() == quote {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return
		}
		l.readChar()
	}
}

// readDelimited consumes a [bracketed] or "quoted" identifier.
func (l *Lexer) readDelimited(closing byte) {
	l.readString(closing)
}

func (l *Lexer) readWord() {
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' || l.ch == '#' {
		if l.eof() {
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readNumber() {
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) {
			l.readChar()
		} else if (next == '+' || next == '-') && l.readPos+1 < len(l.input) && isDigit(l.input[l.readPos+1]) {
			l.readChar()
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
}

// operators lists multi-character operators, longest first.
var operators = []string{
	"<=", ">=", "<>", "!=", "!<", "!>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"||", "::",
	"+", "-", "*", "/", "%", "=", "<", ">", "&", "|", "^", "~", "!", ":",
}

func (l *Lexer) matchOperator() (string, bool) {
	rest := l.input[l.pos:]
	for _, op := range operators {
		if len(rest) >= len(op) && rest[:len(op)] == op {
			return op, true
		}
	}
	return "", false
}

// isLetter treats every non-ASCII byte as a letter so UTF-8 identifiers stay
// in one token.
func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch >= 0x80
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
