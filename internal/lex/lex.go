// Package lex splits source text into coarse tokens.
//
// It recognizes just enough of the surface syntax (names, numbers, string
// literals, operators) to let callers track brackets and separators without
// being fooled by characters inside string literals. It is not a parser.
package lex

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a token.
type Kind int

const (
	Name Kind = iota + 1
	Number
	String
	Op
	Error
)

func (k Kind) String() string {
	switch k {
	case Name:
		return "NAME"
	case Number:
		return "NUMBER"
	case String:
		return "STRING"
	case Op:
		return "OP"
	case Error:
		return "ERRORTOKEN"
	default:
		return "INVALID"
	}
}

// Token is a single lexical token.
// Col is the byte offset of the token's first byte in the scanned text.
type Token struct {
	Kind Kind
	Text string
	Col  int
}

// Is reports whether t is the operator op.
func (t Token) Is(op string) bool {
	return t.Kind == Op && t.Text == op
}

var operators3 = []string{"**=", "//=", ">>=", "<<=", "...", "&^="}

var operators2 = []string{
	"==", "!=", "<=", ">=", "**", "//", "->", ":=", "<<", ">>", "&&", "||", "<-", "&^",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=", "++", "--",
}

const operators1 = "()[]{},:;.=+-*/%&|^~<>@!?"

// Tokens scans src and returns its tokens in order.
// Whitespace, line continuations and comments are skipped.
// An unterminated single-line string produces an Error token for its
// opening quote and scanning resumes after it; an unterminated
// triple-quoted string ends the stream.
func Tokens(src string) []Token {
	s := scanner{src: src}
	return s.run()
}

type scanner struct {
	src  string
	pos  int
	toks []Token
}

func (s *scanner) emit(kind Kind, start, end int) {
	s.toks = append(s.toks, Token{Kind: kind, Text: s.src[start:end], Col: start})
}

func (s *scanner) run() []Token {
	for s.pos < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		switch {
		case r == '\\' || unicode.IsSpace(r):
			s.pos += size
		case r == '#':
			if nl := strings.IndexByte(s.src[s.pos:], '\n'); nl >= 0 {
				s.pos += nl
			} else {
				s.pos = len(s.src)
			}
		case r == '"' || r == '\'' || r == '`':
			if !s.str(s.pos, s.pos) {
				return s.toks
			}
		case isIdentStart(r):
			s.ident()
		case isDigit(r) || (r == '.' && s.pos+1 < len(s.src) && isDigit(rune(s.src[s.pos+1]))):
			s.number()
		default:
			s.op(size)
		}
	}
	return s.toks
}

func (s *scanner) ident() {
	start := s.pos
	for s.pos < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !isIdentStart(r) && !unicode.IsDigit(r) {
			break
		}
		s.pos += size
	}
	if s.pos < len(s.src) && (s.src[s.pos] == '"' || s.src[s.pos] == '\'') && isStringPrefix(s.src[start:s.pos]) {
		s.str(start, s.pos)
		return
	}
	s.emit(Name, start, s.pos)
}

func (s *scanner) number() {
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isDigit(rune(c)) || c == '_' || c == '.' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
			s.pos++
			if (c == 'e' || c == 'E') && s.pos < len(s.src) && (s.src[s.pos] == '+' || s.src[s.pos] == '-') &&
				!strings.HasPrefix(strings.ToLower(s.src[start:s.pos]), "0x") {
				s.pos++
			}
		default:
			s.emit(Number, start, s.pos)
			return
		}
	}
	s.emit(Number, start, s.pos)
}

// str scans a string literal whose prefix starts at start and whose quote
// is at q. It returns false when the stream must end.
func (s *scanner) str(start, q int) bool {
	quote := s.src[q]
	if quote == '`' {
		end := strings.IndexByte(s.src[q+1:], '`')
		if end < 0 {
			s.emit(Error, q, q+1)
			s.pos = q + 1
			return true
		}
		s.pos = q + 1 + end + 1
		s.emit(String, start, s.pos)
		return true
	}

	triple := strings.Repeat(string(quote), 3)
	if strings.HasPrefix(s.src[q:], triple) {
		i := q + 3
		for i < len(s.src) {
			if s.src[i] == '\\' {
				i += 2
				continue
			}
			if strings.HasPrefix(s.src[i:], triple) {
				s.pos = i + 3
				s.emit(String, start, s.pos)
				return true
			}
			i++
		}
		return false
	}

	i := q + 1
	for i < len(s.src) {
		switch s.src[i] {
		case '\\':
			i += 2
			continue
		case '\n':
			i = len(s.src)
			continue
		case quote:
			s.pos = i + 1
			s.emit(String, start, s.pos)
			return true
		}
		i++
	}
	if start < q {
		s.emit(Name, start, q)
	}
	s.emit(Error, q, q+1)
	s.pos = q + 1
	return true
}

func (s *scanner) op(size int) {
	rest := s.src[s.pos:]
	for _, group := range [][]string{operators3, operators2} {
		for _, o := range group {
			if strings.HasPrefix(rest, o) {
				s.emit(Op, s.pos, s.pos+len(o))
				s.pos += len(o)
				return
			}
		}
	}
	if strings.IndexByte(operators1, rest[0]) >= 0 {
		s.emit(Op, s.pos, s.pos+1)
		s.pos++
		return
	}
	s.emit(Error, s.pos, s.pos+size)
	s.pos += size
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isStringPrefix(p string) bool {
	if len(p) > 2 {
		return false
	}
	switch strings.ToLower(p) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

// Openers maps each closing bracket to its opening bracket.
var Openers = map[string]string{")": "(", "]": "[", "}": "{"}

// IsOpen reports whether t opens a bracket.
func IsOpen(t Token) bool {
	return t.Kind == Op && (t.Text == "(" || t.Text == "[" || t.Text == "{")
}

// IsClose reports whether t closes a bracket.
func IsClose(t Token) bool {
	return t.Kind == Op && (t.Text == ")" || t.Text == "]" || t.Text == "}")
}
