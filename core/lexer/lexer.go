// Package lexer converts shell source text into tokens, tracking the
// quoting context of every word segment.
package lexer

import (
	"fmt"
	"strings"

	"github.com/embedsh/embedsh/core/token"
)

// Error is a lexical error, fatal to the whole run.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Lexer scans an input string once, producing a finite token sequence
// terminated by an EOF token.
type Lexer struct {
	input string
	pos   int
	line  int
	col   int

	// cmdStart is true when the next word could begin a command, the
	// only position where reserved words, "!", "{" and "}" are special.
	cmdStart bool
}

func New(input string) *Lexer {
	return &Lexer{
		input:    input,
		line:     1,
		col:      1,
		cmdStart: true,
	}
}

// Lex consumes the whole input and returns the token stream including a
// trailing EOF token. It fails only on unterminated quotes.
func (l *Lexer) Lex() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) position() token.Position {
	return token.Position{Line: l.line, Col: l.col}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) advance() byte {
	ch := l.input[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) skipBlanks() {
	for l.pos < len(l.input) {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance()
		case '#':
			// Comment runs to end of line.
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func isOperatorByte(ch byte) bool {
	switch ch {
	case ';', '|', '&', '(', ')', '\n':
		return true
	}
	return false
}

func (l *Lexer) next() (token.Token, error) {
	l.skipBlanks()

	pos := l.position()
	if l.pos >= len(l.input) {
		return token.Token{Kind: token.EOF, Pos: pos}, nil
	}

	switch ch := l.peek(); ch {
	case '\n':
		l.advance()
		l.cmdStart = true
		return token.Token{Kind: token.Newline, Pos: pos}, nil
	case ';':
		l.advance()
		l.cmdStart = true
		return token.Token{Kind: token.Semi, Pos: pos}, nil
	case '|':
		l.advance()
		if l.peek() == '|' {
			l.advance()
			l.cmdStart = true
			return token.Token{Kind: token.OrIf, Pos: pos}, nil
		}
		l.cmdStart = true
		return token.Token{Kind: token.Pipe, Pos: pos}, nil
	case '&':
		l.advance()
		if l.peek() == '&' {
			l.advance()
			l.cmdStart = true
			return token.Token{Kind: token.AndIf, Pos: pos}, nil
		}
		return token.Token{}, &Error{Pos: pos, Msg: `unsupported operator "&"`}
	case '(':
		l.advance()
		l.cmdStart = false
		return token.Token{Kind: token.LParen, Pos: pos}, nil
	case ')':
		l.advance()
		l.cmdStart = true
		return token.Token{Kind: token.RParen, Pos: pos}, nil
	}

	tok, err := l.word(pos)
	if err != nil {
		return token.Token{}, err
	}

	// Bare words in command position may be reserved words or the
	// pipeline negation / grouping markers.
	if l.cmdStart && tok.Bare() {
		text := tok.Segments[0].Text
		if kind, ok := token.ReservedWords[text]; ok {
			l.cmdStart = reservedOpensCommand(kind)
			return token.Token{Kind: kind, Pos: pos}, nil
		}
		switch text {
		case "!":
			return token.Token{Kind: token.Bang, Pos: pos}, nil
		case "{":
			return token.Token{Kind: token.LBrace, Pos: pos}, nil
		case "}":
			l.cmdStart = false
			return token.Token{Kind: token.RBrace, Pos: pos}, nil
		}
	}

	// Assignment prefixes keep the command-name position open so that
	// the word after "X=1" is still the command.
	if !(tok.Bare() && isAssignmentText(tok.Segments[0].Text)) {
		l.cmdStart = false
	}
	return tok, nil
}

// reservedOpensCommand reports whether a command may start directly
// after the given reserved word ("if true", "do echo", ...).
func reservedOpensCommand(kind token.Kind) bool {
	switch kind {
	case token.Fi, token.Done:
		return false
	}
	return true
}

func isAssignmentText(text string) bool {
	eq := strings.IndexByte(text, '=')
	return eq > 0 && isName(text[:eq])
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// word scans one word: adjacent unquoted, single-quoted and
// double-quoted segments with no separating whitespace.
func (l *Lexer) word(pos token.Position) (token.Token, error) {
	var segs []token.Segment

	for l.pos < len(l.input) {
		ch := l.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' || isOperatorByte(ch) {
			break
		}

		switch ch {
		case '\'':
			seg, err := l.singleQuoted()
			if err != nil {
				return token.Token{}, err
			}
			segs = append(segs, seg)
		case '"':
			seg, err := l.doubleQuoted()
			if err != nil {
				return token.Token{}, err
			}
			segs = append(segs, seg)
		default:
			segs = append(segs, l.unquoted())
		}
	}

	return token.Token{Kind: token.Word, Segments: segs, Pos: pos}, nil
}

// unquoted scans a run of unquoted characters. Backslash escapes are
// kept verbatim; the expander interprets them so escaped "$" never
// expands.
func (l *Lexer) unquoted() token.Segment {
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\'' || ch == '"' || isOperatorByte(ch) {
			break
		}
		if ch == '\\' && l.pos+1 < len(l.input) {
			sb.WriteByte(l.advance())
			sb.WriteByte(l.advance())
			continue
		}
		if ch == '$' {
			// Substitution bodies may contain operators and whitespace,
			// so they are consumed whole here and re-scanned during
			// expansion.
			sb.WriteString(l.dollar())
			continue
		}
		sb.WriteByte(l.advance())
	}
	return token.Segment{Text: sb.String(), Quote: token.Unquoted}
}

func (l *Lexer) singleQuoted() (token.Segment, error) {
	pos := l.position()
	l.advance() // opening quote
	start := l.pos
	for l.pos < len(l.input) {
		if l.peek() == '\'' {
			text := l.input[start:l.pos]
			l.advance()
			return token.Segment{Text: text, Quote: token.SingleQuoted}, nil
		}
		l.advance()
	}
	return token.Segment{}, &Error{Pos: pos, Msg: "unterminated single-quoted string"}
}

// doubleQuoted scans a double-quoted segment. The raw text is kept,
// backslashes included, because the expander needs to see them to tell
// `\$x` (literal) apart from `$x` (expansion).
func (l *Lexer) doubleQuoted() (token.Segment, error) {
	pos := l.position()
	l.advance() // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		switch l.peek() {
		case '"':
			l.advance()
			return token.Segment{Text: sb.String(), Quote: token.DoubleQuoted}, nil
		case '\\':
			sb.WriteByte(l.advance())
			if l.pos < len(l.input) {
				sb.WriteByte(l.advance())
			}
		case '$':
			sb.WriteString(l.dollar())
		default:
			sb.WriteByte(l.advance())
		}
	}
	return token.Segment{}, &Error{Pos: pos, Msg: "unterminated double-quoted string"}
}

// dollar consumes a "$" and, for $(...), $((...)) and ${...} forms, the
// whole balanced body. If the body is unterminated the remaining input
// is consumed as-is; the expander reports that as an expansion error so
// the failure stays local to the enclosing command.
func (l *Lexer) dollar() string {
	var sb strings.Builder
	sb.WriteByte(l.advance()) // $

	switch l.peek() {
	case '(':
		depth := 0
		for l.pos < len(l.input) {
			ch := l.advance()
			sb.WriteByte(ch)
			switch ch {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return sb.String()
				}
			case '\'':
				// Quotes inside a substitution hide parentheses.
				for l.pos < len(l.input) && l.peek() != '\'' {
					sb.WriteByte(l.advance())
				}
				if l.pos < len(l.input) {
					sb.WriteByte(l.advance())
				}
			case '"':
				for l.pos < len(l.input) && l.peek() != '"' {
					if l.peek() == '\\' {
						sb.WriteByte(l.advance())
						if l.pos >= len(l.input) {
							break
						}
					}
					sb.WriteByte(l.advance())
				}
				if l.pos < len(l.input) {
					sb.WriteByte(l.advance())
				}
			}
		}
	case '{':
		for l.pos < len(l.input) {
			ch := l.advance()
			sb.WriteByte(ch)
			if ch == '}' {
				return sb.String()
			}
		}
	}
	return sb.String()
}
