// Package token defines the lexical tokens of the shell language and the
// quoting metadata carried on words.
package token

import "fmt"

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota

	// Word is a shell word built from one or more quoted or unquoted
	// segments with no separating whitespace.
	Word

	// Operators.
	Semi    // ;
	Newline // \n
	Pipe    // |
	AndIf   // &&
	OrIf    // ||
	Bang    // !
	LParen  // (
	RParen  // )
	LBrace  // {
	RBrace  // }

	// Reserved words, recognized only in command-start position.
	If
	Then
	Elif
	Else
	Fi
	While
	Do
	Done
)

var kindNames = map[Kind]string{
	EOF:     "end of input",
	Word:    "word",
	Semi:    `";"`,
	Newline: "newline",
	Pipe:    `"|"`,
	AndIf:   `"&&"`,
	OrIf:    `"||"`,
	Bang:    `"!"`,
	LParen:  `"("`,
	RParen:  `")"`,
	LBrace:  `"{"`,
	RBrace:  `"}"`,
	If:      `"if"`,
	Then:    `"then"`,
	Elif:    `"elif"`,
	Else:    `"else"`,
	Fi:      `"fi"`,
	While:   `"while"`,
	Do:      `"do"`,
	Done:    `"done"`,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// ReservedWords maps the literal spelling of each reserved word to its
// kind. The lexer consults it only when a bare word appears where a
// command may start.
var ReservedWords = map[string]Kind{
	"if":    If,
	"then":  Then,
	"elif":  Elif,
	"else":  Else,
	"fi":    Fi,
	"while": While,
	"do":    Do,
	"done":  Done,
}

// Quote records the quoting context a word segment was produced in.
// Single-quoted text is fully literal; double-quoted text is expanded
// but never field-split; unquoted text is expanded and split.
type Quote int

const (
	Unquoted Quote = iota
	SingleQuoted
	DoubleQuoted
)

// Segment is one quoting run within a word. Adjacent segments
// concatenate: a"b"'c' lexes to one word with three segments.
type Segment struct {
	Text  string
	Quote Quote
}

// Position is a line/column pair within the source text, 1-based.
type Position struct {
	Line int
	Col  int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is one lexical token. Tokens are immutable once produced.
type Token struct {
	Kind     Kind
	Segments []Segment // only set for Word tokens
	Pos      Position
}

// Literal returns the raw text of a word token with quotes removed.
func (t Token) Literal() string {
	var out string
	for _, seg := range t.Segments {
		out += seg.Text
	}
	return out
}

// Bare reports whether the token is a single unquoted segment, the only
// shape eligible to be a reserved word, assignment name, or function
// name.
func (t Token) Bare() bool {
	return len(t.Segments) == 1 && t.Segments[0].Quote == Unquoted
}
