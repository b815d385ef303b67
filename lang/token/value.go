package token

// Value carries everything the scanner produces for a single token: its
// source position, its raw lexeme and, for literals, the decoded value.
type Value struct {
	Pos    Pos
	Raw    string
	Number float64 // valid when the token is NUMBER
	Str    string  // valid when the token is STRING (unescaped contents)
}
