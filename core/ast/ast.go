// Package ast defines the abstract syntax tree produced by the parser.
// Nodes are built once per parse and never mutated afterwards, so a
// function body can be invoked repeatedly without re-parsing.
package ast

import "github.com/embedsh/embedsh/core/token"

// Node is implemented by every AST node.
type Node interface {
	Pos() token.Position
}

// Script is a sequence of statements joined by ";" or newline. It is
// the top-level node of every parse and the body of every compound
// statement.
type Script struct {
	Stmts    []*AndOr
	Position token.Position
}

func (s *Script) Pos() token.Position { return s.Position }

// AndOrOp joins two pipelines in an and-or list.
type AndOrOp int

const (
	AndIf AndOrOp = iota // &&
	OrIf                 // ||
)

func (op AndOrOp) String() string {
	if op == AndIf {
		return "&&"
	}
	return "||"
}

// AndOr is a left-associative list of pipelines joined by "&&"/"||".
// Ops[i] joins Pipelines[i] and Pipelines[i+1].
type AndOr struct {
	Pipelines []*Pipeline
	Ops       []AndOrOp
}

func (a *AndOr) Pos() token.Position { return a.Pipelines[0].Pos() }

// Pipeline is one or more commands connected stdout-to-stdin, with an
// optional leading "!" that negates the final exit status.
type Pipeline struct {
	Negated  bool
	Cmds     []Cmd
	Position token.Position
}

func (p *Pipeline) Pos() token.Position { return p.Position }

// Cmd is a pipeline stage: a simple command or a compound statement.
type Cmd interface {
	Node
	cmdNode()
}

// Word is an argument word: adjacent quoted/unquoted segments that the
// expander turns into zero or more fields at execution time.
type Word struct {
	Segments []token.Segment
	Position token.Position
}

func (w *Word) Pos() token.Position { return w.Position }

// Lit returns the word's raw text with quoting metadata dropped.
func (w *Word) Lit() string {
	var out string
	for _, seg := range w.Segments {
		out += seg.Text
	}
	return out
}

// Assign is a NAME=value binding, either a standalone statement or a
// prefix scoped to a single command invocation.
type Assign struct {
	Name     string
	Value    *Word // nil means empty value
	Position token.Position
}

func (a *Assign) Pos() token.Position { return a.Position }

// SimpleCmd is a command name with argument words and optional inline
// assignments. A SimpleCmd with no words persists its assignments.
type SimpleCmd struct {
	Assigns  []*Assign
	Words    []*Word
	Position token.Position
}

func (c *SimpleCmd) Pos() token.Position { return c.Position }
func (c *SimpleCmd) cmdNode()            {}

// IfCmd is an if/elif/else/fi statement. Else is nil when absent.
type IfCmd struct {
	Cond     *Script
	Then     *Script
	Elifs    []*ElifClause
	Else     *Script
	Position token.Position
}

func (c *IfCmd) Pos() token.Position { return c.Position }
func (c *IfCmd) cmdNode()            {}

// ElifClause is one elif condition and its branch.
type ElifClause struct {
	Cond *Script
	Then *Script
}

// WhileCmd is a while/do/done loop.
type WhileCmd struct {
	Cond     *Script
	Body     *Script
	Position token.Position
}

func (c *WhileCmd) Pos() token.Position { return c.Position }
func (c *WhileCmd) cmdNode()            {}

// FuncDecl registers a function body under a name. The body is only
// executed when the function is invoked.
type FuncDecl struct {
	Name     string
	Body     *Script
	Position token.Position
}

func (c *FuncDecl) Pos() token.Position { return c.Position }
func (c *FuncDecl) cmdNode()            {}

// ArithCmd is a standalone (( EXPR )) command. Its status is 0 when the
// expression evaluates non-zero, 1 otherwise.
type ArithCmd struct {
	Expr     string
	Position token.Position
}

func (c *ArithCmd) Pos() token.Position { return c.Position }
func (c *ArithCmd) cmdNode()            {}
