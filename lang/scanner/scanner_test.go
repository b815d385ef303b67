package scanner

import (
	"testing"

	"github.com/mna/eclox/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []TokenAndValue {
	t.Helper()
	toks, err := ScanAll(src, token.Canonical)
	require.NoError(t, err)
	return toks
}

func tokKinds(toks []TokenAndValue) []token.Token {
	kinds := make([]token.Token, len(toks))
	for i, tv := range toks {
		kinds[i] = tv.Token
	}
	return kinds
}

func TestScanPunctuationAndKeywords(t *testing.T) {
	toks := scanAll(t, `var x = 1 + 2; print x;`)
	require.Equal(t, []token.Token{
		token.VAR, token.IDENT, token.EQ, token.NUMBER, token.PLUS, token.NUMBER,
		token.SEMI, token.PRINT, token.IDENT, token.SEMI, token.EOF,
	}, tokKinds(toks))
}

func TestScanTwoCharOperators(t *testing.T) {
	toks := scanAll(t, `a == b != c <= d >= e`)
	require.Equal(t, []token.Token{
		token.IDENT, token.EQ_EQ, token.IDENT, token.BANG_EQ, token.IDENT,
		token.LT_EQ, token.IDENT, token.GT_EQ, token.IDENT, token.EOF,
	}, tokKinds(toks))
}

func TestScanString(t *testing.T) {
	toks := scanAll(t, `"hello world"`)
	require.Len(t, toks, 2)
	require.Equal(t, token.STRING, toks[0].Token)
	require.Equal(t, "hello world", toks[0].Value.Str)
}

func TestScanUnterminatedString(t *testing.T) {
	_, err := ScanAll(`"oops`, token.Canonical)
	require.Error(t, err)
}

func TestScanNumber(t *testing.T) {
	toks := scanAll(t, `3.14 42`)
	require.Equal(t, 3.14, toks[0].Value.Number)
	require.Equal(t, float64(42), toks[1].Value.Number)
}

func TestScanLineComment(t *testing.T) {
	toks := scanAll(t, "var x = 1; // a comment\nprint x;")
	require.Equal(t, []token.Token{
		token.VAR, token.IDENT, token.EQ, token.NUMBER, token.SEMI,
		token.PRINT, token.IDENT, token.SEMI, token.EOF,
	}, tokKinds(toks))
	// line of the second statement's "print" token should be 2
	var printTok TokenAndValue
	for _, tv := range toks {
		if tv.Token == token.PRINT {
			printTok = tv
		}
	}
	require.EqualValues(t, 2, printTok.Value.Pos)
}

func TestScanIllegalCharacter(t *testing.T) {
	_, err := ScanAll("var x = @;", token.Canonical)
	require.Error(t, err)
}

func TestScanNaturalDialect(t *testing.T) {
	toks, err := ScanAll("store x is 1; say x;", token.Natural)
	require.NoError(t, err)
	require.Equal(t, []token.Token{
		token.VAR, token.IDENT, token.EQ, token.NUMBER, token.SEMI,
		token.PRINT, token.IDENT, token.SEMI, token.EOF,
	}, tokKinds(toks))
}
