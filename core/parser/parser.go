// Package parser builds the AST from the token stream using recursive
// descent. The grammar, tightest binding first: simple command,
// pipeline ("|"), and-or list ("&&"/"||", left associative), sequence
// (";"/newline).
package parser

import (
	"fmt"
	"strings"

	"github.com/embedsh/embedsh/core/ast"
	"github.com/embedsh/embedsh/core/lexer"
	"github.com/embedsh/embedsh/core/token"
)

// Error is a grammar violation, fatal to the whole run.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Parse lexes and parses a whole script. The returned error is a
// *lexer.Error or *Error; both mean nothing was executed.
func Parse(src string) (*ast.Script, error) {
	toks, err := lexer.New(src).Lex()
	if err != nil {
		return nil, err
	}
	return New(toks).Parse()
}

// Parser consumes a token stream produced by the lexer.
type Parser struct {
	toks []token.Token
	pos  int
}

func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

func (p *Parser) cur() token.Token {
	return p.toks[p.pos]
}

func (p *Parser) peekKind(offset int) token.Kind {
	if p.pos+offset >= len(p.toks) {
		return token.EOF
	}
	return p.toks[p.pos+offset].Kind
}

func (p *Parser) next() token.Token {
	tok := p.toks[p.pos]
	if tok.Kind != token.EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return &Error{Pos: p.cur().Pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(kind token.Kind) (token.Token, error) {
	if p.cur().Kind != kind {
		return token.Token{}, p.errorf("expected %s, found %s", kind, p.describe(p.cur()))
	}
	return p.next(), nil
}

func (p *Parser) describe(tok token.Token) string {
	if tok.Kind == token.Word {
		return fmt.Sprintf("%q", tok.Literal())
	}
	return tok.Kind.String()
}

// skipSeparators consumes any run of ";" and newline tokens.
func (p *Parser) skipSeparators() {
	for p.cur().Kind == token.Semi || p.cur().Kind == token.Newline {
		p.next()
	}
}

// skipNewlines consumes newlines only, as allowed after "|", "&&", "||".
func (p *Parser) skipNewlines() {
	for p.cur().Kind == token.Newline {
		p.next()
	}
}

// Parse parses the whole token stream into one top-level sequence.
func (p *Parser) Parse() (*ast.Script, error) {
	script, err := p.parseScript(token.EOF)
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != token.EOF {
		return nil, p.errorf("unexpected %s", p.describe(p.cur()))
	}
	return script, nil
}

// parseScript parses statements until one of the stop kinds is at the
// front of the stream. The stop token is not consumed.
func (p *Parser) parseScript(stops ...token.Kind) (*ast.Script, error) {
	script := &ast.Script{Position: p.cur().Pos}

	for {
		p.skipSeparators()
		if p.atAny(stops) {
			return script, nil
		}

		stmt, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		script.Stmts = append(script.Stmts, stmt)

		switch p.cur().Kind {
		case token.Semi, token.Newline:
			continue
		default:
			if p.atAny(stops) {
				return script, nil
			}
			return nil, p.errorf("unexpected %s", p.describe(p.cur()))
		}
	}
}

func (p *Parser) atAny(kinds []token.Kind) bool {
	for _, k := range kinds {
		if p.cur().Kind == k {
			return true
		}
	}
	return false
}

func (p *Parser) parseAndOr() (*ast.AndOr, error) {
	first, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}

	stmt := &ast.AndOr{Pipelines: []*ast.Pipeline{first}}
	for {
		var op ast.AndOrOp
		switch p.cur().Kind {
		case token.AndIf:
			op = ast.AndIf
		case token.OrIf:
			op = ast.OrIf
		default:
			return stmt, nil
		}
		p.next()
		p.skipNewlines()

		pipeline, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		stmt.Ops = append(stmt.Ops, op)
		stmt.Pipelines = append(stmt.Pipelines, pipeline)
	}
}

func (p *Parser) parsePipeline() (*ast.Pipeline, error) {
	pipeline := &ast.Pipeline{Position: p.cur().Pos}
	if p.cur().Kind == token.Bang {
		pipeline.Negated = true
		p.next()
	}

	for {
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		pipeline.Cmds = append(pipeline.Cmds, cmd)

		if p.cur().Kind != token.Pipe {
			return pipeline, nil
		}
		p.next()
		p.skipNewlines()
	}
}

func (p *Parser) parseCommand() (ast.Cmd, error) {
	switch p.cur().Kind {
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.LParen:
		if p.peekKind(1) == token.LParen {
			return p.parseArith()
		}
		return nil, p.errorf("subshell grouping is not supported")
	case token.Word:
		if p.cur().Bare() && isName(p.cur().Literal()) && p.peekKind(1) == token.LParen {
			return p.parseFuncDecl()
		}
		return p.parseSimple()
	default:
		return nil, p.errorf("expected command, found %s", p.describe(p.cur()))
	}
}

func (p *Parser) parseIf() (ast.Cmd, error) {
	pos := p.next().Pos // "if"

	cond, err := p.parseCondBody(token.Then, "if condition")
	if err != nil {
		return nil, err
	}
	then, err := p.parseBranch("then branch", token.Elif, token.Else, token.Fi)
	if err != nil {
		return nil, err
	}

	cmd := &ast.IfCmd{Cond: cond, Then: then, Position: pos}
	for p.cur().Kind == token.Elif {
		p.next()
		elifCond, err := p.parseCondBody(token.Then, "elif condition")
		if err != nil {
			return nil, err
		}
		elifThen, err := p.parseBranch("elif branch", token.Elif, token.Else, token.Fi)
		if err != nil {
			return nil, err
		}
		cmd.Elifs = append(cmd.Elifs, &ast.ElifClause{Cond: elifCond, Then: elifThen})
	}

	if p.cur().Kind == token.Else {
		p.next()
		elseBody, err := p.parseBranch("else branch", token.Fi)
		if err != nil {
			return nil, err
		}
		cmd.Else = elseBody
	}

	if _, err := p.expect(token.Fi); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (p *Parser) parseWhile() (ast.Cmd, error) {
	pos := p.next().Pos // "while"

	cond, err := p.parseCondBody(token.Do, "while condition")
	if err != nil {
		return nil, err
	}
	body, err := p.parseBranch("while body", token.Done)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Done); err != nil {
		return nil, err
	}

	return &ast.WhileCmd{Cond: cond, Body: body, Position: pos}, nil
}

// parseCondBody parses a statement list terminated by the given keyword
// and consumes the keyword.
func (p *Parser) parseCondBody(until token.Kind, what string) (*ast.Script, error) {
	script, err := p.parseScript(until)
	if err != nil {
		return nil, err
	}
	if len(script.Stmts) == 0 {
		return nil, p.errorf("empty %s", what)
	}
	if _, err := p.expect(until); err != nil {
		return nil, err
	}
	return script, nil
}

// parseBranch parses a statement list up to one of the closing keywords
// without consuming it.
func (p *Parser) parseBranch(what string, stops ...token.Kind) (*ast.Script, error) {
	script, err := p.parseScript(stops...)
	if err != nil {
		return nil, err
	}
	if len(script.Stmts) == 0 {
		return nil, p.errorf("empty %s", what)
	}
	return script, nil
}

func (p *Parser) parseFuncDecl() (ast.Cmd, error) {
	nameTok := p.next()
	name := nameTok.Literal()

	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}

	body, err := p.parseBranch("function body", token.RBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}

	return &ast.FuncDecl{Name: name, Body: body, Position: nameTok.Pos}, nil
}

// parseArith parses a standalone (( EXPR )) command. The expression is
// kept as text and evaluated by the arithmetic expander at run time.
func (p *Parser) parseArith() (ast.Cmd, error) {
	pos := p.cur().Pos
	p.next() // (
	p.next() // (

	depth := 2
	var parts []string
	for depth > 0 {
		switch tok := p.cur(); tok.Kind {
		case token.LParen:
			depth++
			parts = append(parts, "(")
			p.next()
		case token.RParen:
			depth--
			// The outermost two closers end the command and are not part
			// of the expression.
			if depth > 1 {
				parts = append(parts, ")")
			}
			p.next()
		case token.Word:
			parts = append(parts, tok.Literal())
			p.next()
		case token.EOF:
			return nil, p.errorf(`expected "))" to close arithmetic command`)
		default:
			return nil, p.errorf("unexpected %s in arithmetic command", p.describe(tok))
		}
	}

	return &ast.ArithCmd{Expr: strings.Join(parts, " "), Position: pos}, nil
}

// parseSimple parses assignment prefixes followed by argument words.
func (p *Parser) parseSimple() (ast.Cmd, error) {
	cmd := &ast.SimpleCmd{Position: p.cur().Pos}

	for p.cur().Kind == token.Word {
		tok := p.cur()

		// Assignment prefixes are only recognized before the first
		// non-assignment word.
		if len(cmd.Words) == 0 {
			if assign, ok, err := p.assignment(tok); err != nil {
				return nil, err
			} else if ok {
				cmd.Assigns = append(cmd.Assigns, assign)
				p.next()
				continue
			}
		}

		p.next()
		cmd.Words = append(cmd.Words, &ast.Word{Segments: tok.Segments, Position: tok.Pos})
	}

	if len(cmd.Assigns) == 0 && len(cmd.Words) == 0 {
		return nil, p.errorf("expected command, found %s", p.describe(p.cur()))
	}
	return cmd, nil
}

// assignment inspects a word for a NAME=value prefix. Words shaped like
// an assignment but with an invalid name are a grammar error; unrelated
// words (paths, flags) pass through as arguments.
func (p *Parser) assignment(tok token.Token) (*ast.Assign, bool, error) {
	if len(tok.Segments) == 0 || tok.Segments[0].Quote != token.Unquoted {
		return nil, false, nil
	}

	first := tok.Segments[0].Text
	eq := strings.IndexByte(first, '=')
	if eq < 0 {
		return nil, false, nil
	}

	name := first[:eq]
	if !looksLikeName(name) {
		// "a/b=c" is an argument; "1x=c" is a malformed assignment.
		return nil, false, nil
	}
	if !isName(name) {
		return nil, false, &Error{Pos: tok.Pos, Msg: fmt.Sprintf("invalid assignment name %q", name)}
	}

	assign := &ast.Assign{Name: name, Position: tok.Pos}

	var segs []token.Segment
	if rest := first[eq+1:]; rest != "" {
		segs = append(segs, token.Segment{Text: rest, Quote: token.Unquoted})
	}
	segs = append(segs, tok.Segments[1:]...)
	if len(segs) > 0 {
		assign.Value = &ast.Word{Segments: segs, Position: tok.Pos}
	}
	return assign, true, nil
}

// looksLikeName reports whether s is made only of name characters, the
// trigger for treating NAME= as an attempted assignment.
func looksLikeName(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' {
			continue
		}
		return false
	}
	return true
}

func isName(s string) bool {
	if s == "" || s[0] >= '0' && s[0] <= '9' {
		return false
	}
	return looksLikeName(s)
}
