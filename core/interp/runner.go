// Package interp executes shell ASTs: it expands words, resolves
// command names against builtins, user functions and the external
// program collaborator, wires pipeline stages together and propagates
// exit status.
package interp

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/embedsh/embedsh/core/ast"
	"github.com/embedsh/embedsh/core/host"
	"github.com/embedsh/embedsh/core/parser"
	"github.com/embedsh/embedsh/core/token"
)

const (
	// DefaultMaxCallDepth bounds function recursion so runaway scripts
	// fail predictably instead of exhausting memory.
	DefaultMaxCallDepth = 100

	// DefaultPipeDepth is the number of write chunks buffered between
	// pipeline stages before the writer blocks.
	DefaultPipeDepth = 16
)

// ctrl distinguishes normal completion from the two non-local unwinds.
type ctrl int

const (
	ctrlNone   ctrl = iota
	ctrlReturn      // "return": unwinds to the enclosing function call
	ctrlExit        // "exit": unwinds the whole script
)

// outcome is the result of evaluating one AST node: an exit status plus
// the control signal threaded explicitly through every evaluator so the
// unwind points stay testable.
type outcome struct {
	status int
	ctrl   ctrl
}

// stdio is the stream assignment for one evaluation. Pipelines rebind
// out/in per stage; everything else inherits.
type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// Runner executes scripts against one Environment. The zero value is
// not usable; populate Env and the standard streams, and set Spawn to
// reach external programs.
type Runner struct {
	Env *Environment

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Spawn launches external programs. When nil every non-builtin,
	// non-function command reports "command not found".
	Spawn host.SpawnFunc

	// FS backs the file tests of the test/[ builtin. Optional.
	FS afero.Fs

	// MaxCallDepth overrides DefaultMaxCallDepth when positive.
	MaxCallDepth int

	// PipeDepth overrides DefaultPipeDepth when positive.
	PipeDepth int
}

func (r *Runner) name() string { return "embedsh" }

func (r *Runner) maxCallDepth() int {
	if r.MaxCallDepth > 0 {
		return r.MaxCallDepth
	}
	return DefaultMaxCallDepth
}

func (r *Runner) pipeDepth() int {
	if r.PipeDepth > 0 {
		return r.PipeDepth
	}
	return DefaultPipeDepth
}

func (r *Runner) stdio() stdio {
	sio := stdio{in: r.Stdin, out: r.Stdout, err: r.Stderr}
	if sio.in == nil {
		sio.in = strings.NewReader("")
	}
	if sio.out == nil {
		sio.out = ioutil.Discard
	}
	if sio.err == nil {
		sio.err = ioutil.Discard
	}
	return sio
}

// Run parses and executes a script, returning its exit status in
// [0,255]. A non-nil error is a *lexer.Error or *parser.Error and means
// nothing was executed; every runtime failure is reported through the
// status and the stderr stream instead.
func (r *Runner) Run(src string) (int, error) {
	status, _, err := r.RunLine(src)
	return status, err
}

// RunLine is Run for interactive callers: it additionally reports
// whether the script requested session termination via "exit".
func (r *Runner) RunLine(src string) (status int, exited bool, err error) {
	prog, err := parser.Parse(src)
	if err != nil {
		return 0, false, err
	}

	res := r.script(r.Env, prog, r.stdio())
	return res.status, res.ctrl == ctrlExit, nil
}

// script evaluates a statement sequence in program order. Its status is
// the last statement's status, or 0 for an empty sequence.
func (r *Runner) script(env *Environment, s *ast.Script, sio stdio) outcome {
	res := outcome{}
	for _, stmt := range s.Stmts {
		res = r.andOr(env, stmt, sio)
		if res.ctrl != ctrlNone {
			return res
		}
	}
	return res
}

// andOr evaluates pipelines left to right, short-circuiting on && and
// ||. The status is that of the last pipeline actually evaluated.
func (r *Runner) andOr(env *Environment, a *ast.AndOr, sio stdio) outcome {
	res := r.pipeline(env, a.Pipelines[0], sio)
	for i, op := range a.Ops {
		if res.ctrl != ctrlNone {
			return res
		}
		if op == ast.AndIf && res.status != 0 {
			continue
		}
		if op == ast.OrIf && res.status == 0 {
			continue
		}
		res = r.pipeline(env, a.Pipelines[i+1], sio)
	}
	return res
}

// pipeline runs its stages concurrently, adjacent stages joined by
// bounded in-memory pipes. The pipeline status is the final stage's
// status; earlier failures are not surfaced (no pipefail mode). The
// leading "!" negates the final status after stage resolution, which is
// also where it applies to multi-stage pipelines.
func (r *Runner) pipeline(env *Environment, p *ast.Pipeline, sio stdio) outcome {
	var res outcome

	if len(p.Cmds) == 1 {
		res = r.command(env, p.Cmds[0], sio)
	} else {
		res = r.runStages(env, p.Cmds, sio)
	}

	if p.Negated {
		// Boolean flip: non-zero collapses to exactly 1. The flip also
		// rewrites the code carried by an exit unwind, so "! exit 5"
		// ends the run with status 0.
		if res.status == 0 {
			res.status = 1
		} else {
			res.status = 0
		}
	}

	env.SetStatus(res.status)
	return res
}

// runStages executes a multi-stage pipeline. Each stage gets a forked
// environment, so stage-local assignments and positional frames cannot
// interleave across concurrent stages; arithmetic side effects still
// reach shared state. Control signals are honored from the final stage
// only, since that is the stage whose status the pipeline reports.
func (r *Runner) runStages(env *Environment, cmds []ast.Cmd, sio stdio) outcome {
	n := len(cmds)
	results := make([]outcome, n)

	var wg sync.WaitGroup
	in := sio.in
	var inPipe *pipe
	for i, cmd := range cmds {
		stageIO := stdio{in: in, out: sio.out, err: sio.err}

		var out *pipe
		if i < n-1 {
			out = newPipe(r.pipeDepth())
			stageIO.out = out
			in = out
		}

		stageEnv := env.Subshell()
		wg.Add(1)
		go func(i int, cmd ast.Cmd, stageIO stdio, in, out *pipe) {
			defer wg.Done()
			results[i] = r.command(stageEnv, cmd, stageIO)
			// Detach from the upstream pipe so a producer that is still
			// writing fails instead of blocking forever on the full
			// buffer.
			if in != nil {
				in.CloseRead()
			}
			if out != nil {
				out.CloseWrite()
			}
		}(i, cmd, stageIO, inPipe, out)
		inPipe = out
	}
	wg.Wait()

	return results[n-1]
}

func (r *Runner) command(env *Environment, cmd ast.Cmd, sio stdio) outcome {
	switch cmd := cmd.(type) {
	case *ast.SimpleCmd:
		return r.simple(env, cmd, sio)
	case *ast.IfCmd:
		return r.ifCmd(env, cmd, sio)
	case *ast.WhileCmd:
		return r.whileCmd(env, cmd, sio)
	case *ast.FuncDecl:
		env.DefineFunc(cmd)
		env.SetStatus(0)
		return outcome{}
	case *ast.ArithCmd:
		return r.arithCmd(env, cmd, sio)
	default:
		panic(fmt.Sprintf("interp: unknown command node %T", cmd))
	}
}

// ifCmd selects at most one branch by condition status. When no branch
// is selected the statement succeeds with status 0.
func (r *Runner) ifCmd(env *Environment, cmd *ast.IfCmd, sio stdio) outcome {
	cond := r.script(env, cmd.Cond, sio)
	if cond.ctrl != ctrlNone {
		return cond
	}
	if cond.status == 0 {
		return r.script(env, cmd.Then, sio)
	}

	for _, clause := range cmd.Elifs {
		cond := r.script(env, clause.Cond, sio)
		if cond.ctrl != ctrlNone {
			return cond
		}
		if cond.status == 0 {
			return r.script(env, clause.Then, sio)
		}
	}

	if cmd.Else != nil {
		return r.script(env, cmd.Else, sio)
	}
	env.SetStatus(0)
	return outcome{}
}

// whileCmd loops while the condition reports status 0. The statement
// status is the last body execution's, or 0 when the body never ran.
func (r *Runner) whileCmd(env *Environment, cmd *ast.WhileCmd, sio stdio) outcome {
	res := outcome{}
	for {
		cond := r.script(env, cmd.Cond, sio)
		if cond.ctrl != ctrlNone {
			return cond
		}
		if cond.status != 0 {
			env.SetStatus(res.status)
			return res
		}

		res = r.script(env, cmd.Body, sio)
		if res.ctrl != ctrlNone {
			return res
		}
	}
}

// arithCmd evaluates a standalone (( EXPR )): status 0 when the value
// is non-zero, 1 when zero, and a local failure on evaluation errors.
func (r *Runner) arithCmd(env *Environment, cmd *ast.ArithCmd, sio stdio) outcome {
	res := outcome{}

	val, err := r.evalArithText(env, sio, cmd.Expr)
	switch {
	case err != nil:
		fmt.Fprintf(sio.err, "%s: %v\n", r.name(), err)
		res.status = 1
	case val == 0:
		res.status = 1
	}

	env.SetStatus(res.status)
	return res
}

// evalArithText expands parameter forms in an arithmetic expression and
// evaluates the result.
func (r *Runner) evalArithText(env *Environment, sio stdio, expr string) (int64, error) {
	parts, err := r.expandText(env, sio, expr, token.DoubleQuoted)
	if err != nil {
		return 0, err
	}
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(part.text)
	}
	return evalArith(env, sb.String())
}

// simple executes one simple command: apply assignments, expand words,
// resolve the name and dispatch. Expansion failures and unresolvable
// names are local: they set a non-zero status and the script continues.
func (r *Runner) simple(env *Environment, cmd *ast.SimpleCmd, sio stdio) outcome {
	assigns := make([]assignment, 0, len(cmd.Assigns))
	for _, a := range cmd.Assigns {
		value, err := r.expandJoined(env, sio, a.Value)
		if err != nil {
			return r.localFailure(env, sio, err)
		}
		assigns = append(assigns, assignment{name: a.Name, value: value})
	}

	var argv []string
	for _, w := range cmd.Words {
		fields, err := r.expandWord(env, sio, w)
		if err != nil {
			return r.localFailure(env, sio, err)
		}
		argv = append(argv, fields...)
	}

	// A statement that is only assignments persists them; prefixes on a
	// command are scoped to that single invocation.
	if len(argv) == 0 {
		for _, a := range assigns {
			env.Set(a.name, a.value)
		}
		env.SetStatus(0)
		return outcome{}
	}

	restore := applyScoped(env, assigns)
	res := r.dispatch(env, sio, argv)
	restore()

	env.SetStatus(res.status)
	return res
}

type assignment struct {
	name  string
	value string
}

// applyScoped binds assignment prefixes for the duration of one command
// and returns the undo function.
func applyScoped(env *Environment, assigns []assignment) func() {
	type saved struct {
		name  string
		value string
		isSet bool
	}

	olds := make([]saved, 0, len(assigns))
	for _, a := range assigns {
		old, ok := env.Lookup(a.name)
		olds = append(olds, saved{name: a.name, value: old, isSet: ok})
		env.Set(a.name, a.value)
	}

	return func() {
		// Undo in reverse so repeated names restore the oldest value.
		for i := len(olds) - 1; i >= 0; i-- {
			if olds[i].isSet {
				env.Set(olds[i].name, olds[i].value)
			} else {
				env.Unset(olds[i].name)
			}
		}
	}
}

func (r *Runner) localFailure(env *Environment, sio stdio, err error) outcome {
	fmt.Fprintf(sio.err, "%s: %v\n", r.name(), err)
	env.SetStatus(1)
	return outcome{status: 1}
}

// dispatch resolves a command name and runs it. Resolution order:
// builtin, user function, external program.
func (r *Runner) dispatch(env *Environment, sio stdio, argv []string) outcome {
	name := argv[0]

	if builtin, ok := builtins[name]; ok {
		return builtin(r, env, sio, argv)
	}

	if fn := env.Func(name); fn != nil {
		return r.callFunction(env, sio, fn, argv)
	}

	if r.Spawn != nil {
		code, err := r.Spawn(name, argv, host.IO{Stdin: sio.in, Stdout: sio.out, Stderr: sio.err}, env.Environ())
		switch {
		case errors.Is(err, host.ErrNotFound):
			// Falls through to the not-found diagnostic below.
		case err != nil:
			fmt.Fprintf(sio.err, "%s: %s: %v\n", r.name(), name, err)
			return outcome{status: 126}
		default:
			return outcome{status: wrapStatus(code)}
		}
	}

	fmt.Fprintf(sio.err, "%s: %s: command not found\n", r.name(), name)
	return outcome{status: 127}
}

// callFunction invokes a user-defined function: a fresh positional
// frame is pushed for the call and popped on every way out, and a
// return signal raised in the body is converted into the call's exit
// status right here, never escaping further.
func (r *Runner) callFunction(env *Environment, sio stdio, fn *ast.FuncDecl, argv []string) outcome {
	if env.CallDepth() >= r.maxCallDepth() {
		fmt.Fprintf(sio.err, "%s: %s: maximum call depth (%d) exceeded\n", r.name(), fn.Name, r.maxCallDepth())
		return outcome{status: 1}
	}

	env.PushFrame(argv[0], argv[1:])
	defer env.PopFrame()

	res := r.script(env, fn.Body, sio)
	if res.ctrl == ctrlReturn {
		return outcome{status: res.status}
	}
	return res
}

func wrapStatus(code int) int {
	return int(uint8(code))
}
