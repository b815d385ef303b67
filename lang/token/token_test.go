package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		require.NotEmpty(t, tok.String(), "token %d missing string representation", tok)
	}
}

func TestDialectLookupKw(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		expect := tok >= kwStart && tok <= kwEnd && tok != SIZEOF
		val := Canonical.LookupKw(tok.GoString()[1 : len(tok.GoString())-1])
		if expect {
			require.Equal(t, tok, val)
		} else if tok != SIZEOF {
			require.Equal(t, IDENT, val)
		}
	}
}

func TestNaturalDialectSynonyms(t *testing.T) {
	cases := map[string]Token{
		"action": FUN, "store": VAR, "say": PRINT, "give": RETURN,
		"do": WHILE, "howbig": SIZEOF, "fun": IDENT, // canonical "fun" is not kept as a synonym
		"is": EQ, "issameas": EQ_EQ, "matches": EQ_EQ, "divide": SLASH,
	}
	for lit, want := range cases {
		require.Equal(t, want, Natural.LookupKw(lit), "lexeme %q", lit)
	}
}

func TestLookupPunct(t *testing.T) {
	require.Equal(t, EQ_EQ, LookupPunct("=="))
	require.Equal(t, BANG, LookupPunct("!"))
	require.Equal(t, ILLEGAL, LookupPunct("??"))
}
