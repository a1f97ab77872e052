package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []token {
	t.Helper()
	toks, err := newLexer("test.lat", src).scan()
	require.Nil(t, err)
	return toks
}

func kinds(toks []token) []tokenKind {
	ks := make([]tokenKind, len(toks))
	for i, tok := range toks {
		ks[i] = tok.kind
	}
	return ks
}

func TestScan_Operators(t *testing.T) {
	toks := scanAll(t, "== != <= >= && || => = < > ! . ? @")
	assert.Equal(t, []tokenKind{
		tokEq, tokNeq, tokLte, tokGte, tokAndAnd, tokOrOr, tokArrow,
		tokAssign, tokLAngle, tokRAngle, tokBang, tokDot, tokQuestion,
		tokAt, tokEOF,
	}, kinds(toks))
}

func TestScan_Numbers(t *testing.T) {
	toks := scanAll(t, "42 -7 3.14 1e-3 2.5E2")
	var raw []string
	for _, tok := range toks[:len(toks)-1] {
		assert.Equal(t, tokNumber, tok.kind)
		raw = append(raw, tok.text)
	}
	assert.Equal(t, []string{"42", "-7", "3.14", "1e-3", "2.5E2"}, raw)
}

func TestScan_StringEscapes(t *testing.T) {
	toks := scanAll(t, `"a\nb\t\"c\\d"`)
	require.Equal(t, tokString, toks[0].kind)
	assert.Equal(t, "a\nb\t\"c\\d", toks[0].text)
}

func TestScan_CommentsAndPositions(t *testing.T) {
	toks := scanAll(t, "type // trailing comment\n  Name")
	require.Len(t, toks, 3)

	assert.Equal(t, "type", toks[0].text)
	assert.Equal(t, 1, toks[0].pos.Line)
	assert.Equal(t, 1, toks[0].pos.Column)

	assert.Equal(t, "Name", toks[1].text)
	assert.Equal(t, 2, toks[1].pos.Line)
	assert.Equal(t, 3, toks[1].pos.Column)
}

func TestScan_Errors(t *testing.T) {
	for name, src := range map[string]string{
		"unterminated_string": `"abc`,
		"newline_in_string":   "\"ab\ncd\"",
		"unknown_escape":      `"\q"`,
		"lone_ampersand":      "a & b",
		"lone_pipe":           "a | b",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newLexer("test.lat", src).scan()
			require.NotNil(t, err)
		})
	}
}
