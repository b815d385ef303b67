package token

// Pos is a 1-based line number within a source string. Interpretation
// always starts from a single in-memory source string and diagnostics only
// ever report a line, so a plain line counter is enough; there is no file
// set or column tracking.
type Pos int

// NoPos is the zero value of Pos, meaning "unknown position".
const NoPos Pos = 0
