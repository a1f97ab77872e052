// Package parser turns Lattice model source text into the untyped AST.
//
// The lexer and parser are hand-rolled: a linear scanner producing
// position-tagged tokens, and a recursive-descent parser with precedence
// climbing for the access-expression sub-language. The interesting
// contract is the ast package's shape; the grammar itself is small.
package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/latticeql/lattice"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber

	tokAt       // @
	tokLBrace   // {
	tokRBrace   // }
	tokLParen   // (
	tokRParen   // )
	tokLBracket // [
	tokRBracket // ]
	tokLAngle   // <
	tokRAngle   // >
	tokQuestion // ?
	tokAssign   // =
	tokComma    // ,
	tokColon    // :
	tokSemi     // ;
	tokDot      // .
	tokBang     // !
	tokEq       // ==
	tokNeq      // !=
	tokLte      // <=
	tokGte      // >=
	tokAndAnd   // &&
	tokOrOr     // ||
	tokArrow    // =>
)

var tokenNames = map[tokenKind]string{
	tokEOF: "end of file", tokIdent: "identifier", tokString: "string",
	tokNumber: "number", tokAt: "@", tokLBrace: "{", tokRBrace: "}",
	tokLParen: "(", tokRParen: ")", tokLBracket: "[", tokRBracket: "]",
	tokLAngle: "<", tokRAngle: ">", tokQuestion: "?", tokAssign: "=",
	tokComma: ",", tokColon: ":", tokSemi: ";", tokDot: ".", tokBang: "!",
	tokEq: "==", tokNeq: "!=", tokLte: "<=", tokGte: ">=",
	tokAndAnd: "&&", tokOrOr: "||", tokArrow: "=>",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	// text is the identifier spelling, the decoded string value, or the
	// raw number spelling, depending on kind.
	text string
	pos  lattice.Position
}

func (t token) String() string {
	switch t.kind {
	case tokIdent, tokNumber:
		return t.text
	case tokString:
		return fmt.Sprintf("%q", t.text)
	default:
		return t.kind.String()
	}
}

type lexer struct {
	file string
	src  string
	off  int
	line int
	col  int
}

func newLexer(file, src string) *lexer {
	return &lexer{file: file, src: src, line: 1, col: 1}
}

func (lx *lexer) pos() lattice.Position {
	return lattice.Position{File: lx.file, Line: lx.line, Column: lx.col}
}

func (lx *lexer) peekByte() byte {
	if lx.off >= len(lx.src) {
		return 0
	}
	return lx.src[lx.off]
}

func (lx *lexer) advance() byte {
	c := lx.src[lx.off]
	lx.off++
	if c == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return c
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.off < len(lx.src) {
		c := lx.peekByte()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			lx.advance()
		case c == '/' && lx.off+1 < len(lx.src) && lx.src[lx.off+1] == '/':
			for lx.off < len(lx.src) && lx.peekByte() != '\n' {
				lx.advance()
			}
		default:
			return
		}
	}
}

// scan tokenizes the whole input, ending with an EOF token.
func (lx *lexer) scan() ([]token, *lattice.Diagnostic) {
	var toks []token
	for {
		lx.skipSpaceAndComments()
		pos := lx.pos()
		if lx.off >= len(lx.src) {
			toks = append(toks, token{kind: tokEOF, pos: pos})
			return toks, nil
		}
		c := lx.peekByte()
		switch {
		case isIdentStart(c):
			toks = append(toks, token{kind: tokIdent, text: lx.scanIdent(), pos: pos})
		case c >= '0' && c <= '9' || c == '-' && lx.off+1 < len(lx.src) && isDigit(lx.src[lx.off+1]):
			toks = append(toks, token{kind: tokNumber, text: lx.scanNumber(), pos: pos})
		case c == '"':
			text, err := lx.scanString()
			if err != nil {
				return nil, lattice.Errorf(lattice.KindSyntax, pos, "%s", err)
			}
			toks = append(toks, token{kind: tokString, text: text, pos: pos})
		default:
			kind, err := lx.scanOperator()
			if err != nil {
				return nil, lattice.Errorf(lattice.KindSyntax, pos, "%s", err)
			}
			toks = append(toks, token{kind: kind, pos: pos})
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (lx *lexer) scanIdent() string {
	start := lx.off
	for lx.off < len(lx.src) && isIdentPart(lx.peekByte()) {
		lx.advance()
	}
	return lx.src[start:lx.off]
}

func (lx *lexer) scanNumber() string {
	start := lx.off
	if lx.peekByte() == '-' {
		lx.advance()
	}
	for lx.off < len(lx.src) && isDigit(lx.peekByte()) {
		lx.advance()
	}
	if lx.peekByte() == '.' && lx.off+1 < len(lx.src) && isDigit(lx.src[lx.off+1]) {
		lx.advance()
		for lx.off < len(lx.src) && isDigit(lx.peekByte()) {
			lx.advance()
		}
	}
	if c := lx.peekByte(); c == 'e' || c == 'E' {
		lx.advance()
		if c := lx.peekByte(); c == '+' || c == '-' {
			lx.advance()
		}
		for lx.off < len(lx.src) && isDigit(lx.peekByte()) {
			lx.advance()
		}
	}
	return lx.src[start:lx.off]
}

func (lx *lexer) scanString() (string, error) {
	lx.advance() // opening quote
	var sb strings.Builder
	for {
		if lx.off >= len(lx.src) {
			return "", fmt.Errorf("unterminated string literal")
		}
		c := lx.advance()
		switch c {
		case '"':
			return sb.String(), nil
		case '\n':
			return "", fmt.Errorf("newline in string literal")
		case '\\':
			if lx.off >= len(lx.src) {
				return "", fmt.Errorf("unterminated string literal")
			}
			esc := lx.advance()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"':
				sb.WriteByte(esc)
			default:
				return "", fmt.Errorf("unknown escape \\%c", esc)
			}
		default:
			sb.WriteByte(c)
		}
	}
}

func (lx *lexer) scanOperator() (tokenKind, error) {
	c := lx.advance()
	next := lx.peekByte()
	switch c {
	case '@':
		return tokAt, nil
	case '{':
		return tokLBrace, nil
	case '}':
		return tokRBrace, nil
	case '(':
		return tokLParen, nil
	case ')':
		return tokRParen, nil
	case '[':
		return tokLBracket, nil
	case ']':
		return tokRBracket, nil
	case '?':
		return tokQuestion, nil
	case ',':
		return tokComma, nil
	case ':':
		return tokColon, nil
	case ';':
		return tokSemi, nil
	case '.':
		return tokDot, nil
	case '<':
		if next == '=' {
			lx.advance()
			return tokLte, nil
		}
		return tokLAngle, nil
	case '>':
		if next == '=' {
			lx.advance()
			return tokGte, nil
		}
		return tokRAngle, nil
	case '=':
		switch next {
		case '=':
			lx.advance()
			return tokEq, nil
		case '>':
			lx.advance()
			return tokArrow, nil
		}
		return tokAssign, nil
	case '!':
		if next == '=' {
			lx.advance()
			return tokNeq, nil
		}
		return tokBang, nil
	case '&':
		if next == '&' {
			lx.advance()
			return tokAndAnd, nil
		}
		return 0, fmt.Errorf("unexpected character '&'")
	case '|':
		if next == '|' {
			lx.advance()
			return tokOrOr, nil
		}
		return 0, fmt.Errorf("unexpected character '|'")
	}
	r, _ := utf8.DecodeRuneInString(string(c))
	if unicode.IsPrint(r) {
		return 0, fmt.Errorf("unexpected character %q", c)
	}
	return 0, fmt.Errorf("unexpected byte 0x%02x", c)
}
