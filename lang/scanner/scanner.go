// Package scanner converts source text into a lazy stream of tokens, one
// token per call to Scan. It is a hand-written byte-at-a-time scanner over
// a single in-memory source string; there is no file set or lookahead
// buffer.
package scanner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/eclox/lang/token"
)

// Error is a single scanning (or, by extension, compiling) error, reported
// at a specific line with a message and an optional location clause (e.g.
// " at end", " at 'foo'"), rendered as "[line L] Error<where>: <msg>".
type Error struct {
	Line  int
	Where string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[line %d] Error%s: %s", e.Line, e.Where, e.Msg)
}

// ErrorList accumulates scan/compile errors without interrupting the
// process; the parser decides when to stop consuming tokens.
type ErrorList []*Error

// Add records a location-less error (scanner-level: illegal character,
// unterminated string).
func (el *ErrorList) Add(line int, msg string) {
	*el = append(*el, &Error{Line: line, Msg: msg})
}

// AddAt records an error with a location clause, as emitted by the parser
// when it can name the offending lexeme (or "end").
func (el *ErrorList) AddAt(line int, where, msg string) {
	*el = append(*el, &Error{Line: line, Where: where, Msg: msg})
}

func (el ErrorList) Err() error {
	if len(el) == 0 {
		return nil
	}
	return el
}

func (el ErrorList) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", el[0], len(el)-1)
}

// Scanner tokenizes a single in-memory source buffer for the compiler to
// consume. The source slice must outlive every token produced from it,
// since token.Value.Raw borrows directly from it.
type Scanner struct {
	src     string
	dialect token.Dialect
	err     func(line int, msg string)

	start int // start offset of the lexeme currently being scanned
	off   int // offset of the next unread byte
	line  int // 1-based line of s.off
}

// Init prepares the scanner to tokenize src under the given dialect. errFn
// is invoked (without stopping scanning) whenever an illegal lexeme is
// encountered.
func (s *Scanner) Init(src string, dialect token.Dialect, errFn func(line int, msg string)) {
	s.src = src
	s.dialect = dialect
	s.err = errFn
	s.start = 0
	s.off = 0
	s.line = 1
}

func (s *Scanner) atEnd() bool { return s.off >= len(s.src) }

func (s *Scanner) advance() byte {
	c := s.src[s.off]
	s.off++
	return c
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.off]
}

func (s *Scanner) peekNext() byte {
	if s.off+1 >= len(s.src) {
		return 0
	}
	return s.src[s.off+1]
}

// advanceIf consumes the next byte if it matches want, reporting whether it
// did.
func (s *Scanner) advanceIf(want byte) bool {
	if s.atEnd() || s.src[s.off] != want {
		return false
	}
	s.off++
	return true
}

func (s *Scanner) errorf(format string, args ...any) {
	if s.err != nil {
		s.err(s.line, fmt.Sprintf(format, args...))
	}
}

func (s *Scanner) skipWhitespace() {
	for !s.atEnd() {
		switch s.peek() {
		case ' ', '\t', '\r':
			s.off++
		case '\n':
			s.line++
			s.off++
		case '/':
			if s.peekNext() == '/' {
				for !s.atEnd() && s.peek() != '\n' {
					s.off++
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

// Scan returns the next token in the source, filling val with its lexeme,
// position and, for literals, decoded value.
func (s *Scanner) Scan(val *token.Value) token.Token {
	s.skipWhitespace()
	s.start = s.off
	val.Pos = token.Pos(s.line)
	val.Number = 0
	val.Str = ""

	if s.atEnd() {
		val.Raw = ""
		return token.EOF
	}

	c := s.advance()
	switch {
	case isDigit(c):
		return s.number(val)
	case isAlpha(c):
		return s.identifier(val)
	}

	switch c {
	case '(':
		return s.punct(val, token.LPAREN)
	case ')':
		return s.punct(val, token.RPAREN)
	case '{':
		return s.punct(val, token.LBRACE)
	case '}':
		return s.punct(val, token.RBRACE)
	case ',':
		return s.punct(val, token.COMMA)
	case '.':
		return s.punct(val, token.DOT)
	case '-':
		return s.punct(val, token.MINUS)
	case '+':
		return s.punct(val, token.PLUS)
	case ';':
		return s.punct(val, token.SEMI)
	case '*':
		return s.punct(val, token.STAR)
	case '/':
		return s.punct(val, token.SLASH)
	case '!':
		if s.advanceIf('=') {
			return s.punct(val, token.BANG_EQ)
		}
		return s.punct(val, token.BANG)
	case '=':
		if s.advanceIf('=') {
			return s.punct(val, token.EQ_EQ)
		}
		return s.punct(val, token.EQ)
	case '<':
		if s.advanceIf('=') {
			return s.punct(val, token.LT_EQ)
		}
		return s.punct(val, token.LT)
	case '>':
		if s.advanceIf('=') {
			return s.punct(val, token.GT_EQ)
		}
		return s.punct(val, token.GT)
	case '"':
		return s.string(val)
	}

	s.errorf("unexpected character '%c'", c)
	val.Raw = string(c)
	return token.ILLEGAL
}

func (s *Scanner) punct(val *token.Value, tok token.Token) token.Token {
	val.Raw = s.src[s.start:s.off]
	return tok
}

func (s *Scanner) string(val *token.Value) token.Token {
	startLine := s.line
	for !s.atEnd() && s.peek() != '"' {
		if s.peek() == '\n' {
			s.line++
		}
		s.off++
	}
	if s.atEnd() {
		if s.err != nil {
			s.err(startLine, "unterminated string")
		}
		val.Raw = s.src[s.start:s.off]
		return token.ILLEGAL
	}
	s.off++ // consume closing quote
	val.Raw = s.src[s.start:s.off]
	val.Str = s.src[s.start+1 : s.off-1]
	return token.STRING
}

func (s *Scanner) number(val *token.Value) token.Token {
	for isDigit(s.peek()) {
		s.off++
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.off++ // consume '.'
		for isDigit(s.peek()) {
			s.off++
		}
	}
	val.Raw = s.src[s.start:s.off]
	f, err := strconv.ParseFloat(val.Raw, 64)
	if err != nil {
		s.errorf("invalid number literal %q", val.Raw)
	}
	val.Number = f
	return token.NUMBER
}

func (s *Scanner) identifier(val *token.Value) token.Token {
	for isAlphaNumeric(s.peek()) {
		s.off++
	}
	val.Raw = s.src[s.start:s.off]
	if len(val.Raw) > 1 {
		// keywords are always longer than a single letter
		if tok := s.dialect.LookupKw(val.Raw); tok != token.IDENT {
			return tok
		}
	}
	return token.IDENT
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlphaNumeric(c byte) bool { return isAlpha(c) || isDigit(c) }

// ScanAll tokenizes the whole source string under dialect and returns the
// resulting tokens plus any scan errors encountered; scanning never stops
// early on error. Used by the "tokenize" CLI command.
func ScanAll(src string, dialect token.Dialect) ([]TokenAndValue, error) {
	var (
		s    Scanner
		el   ErrorList
		toks []TokenAndValue
	)
	s.Init(src, dialect, el.Add)
	for {
		var val token.Value
		tok := s.Scan(&val)
		toks = append(toks, TokenAndValue{Token: tok, Value: val})
		if tok == token.EOF {
			break
		}
	}
	return toks, el.Err()
}

// TokenAndValue pairs a token's kind with its scanned value.
type TokenAndValue struct {
	Token token.Token
	Value token.Value
}

func (tv TokenAndValue) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s", tv.Value.Pos, tv.Token)
	if lit := tv.Token.Literal(tv.Value.Raw); lit != "" {
		fmt.Fprintf(&b, " %s", lit)
	}
	return b.String()
}
