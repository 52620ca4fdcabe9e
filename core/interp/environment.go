package interp

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/embedsh/embedsh/core/ast"
)

// frame holds the call-local state of one active function call: the
// command name ($0) and the positional parameters ($1..).
type frame struct {
	name   string
	params []string
}

// Environment holds variable bindings, the function table, the exit
// status register and the positional-parameter frame stack.
//
// Variables are dynamically scoped: every function call shares one
// variable table with its caller, so assignments made inside a function
// stay visible after it returns. Only positional parameters are
// call-local. Variable and function names live in separate namespaces.
type Environment struct {
	mu     sync.Mutex
	vars   map[string]string
	funcs  map[string]*ast.FuncDecl
	frames []frame
	status int

	// arith is the environment that arithmetic side effects (x++)
	// write to. Subshell environments keep pointing at the original so
	// that arithmetic inside command substitutions mutates live state.
	arith *Environment
}

// NewEnvironment creates the session environment with an empty
// top-level frame named after the interpreter.
func NewEnvironment() *Environment {
	env := &Environment{
		vars:   make(map[string]string),
		funcs:  make(map[string]*ast.FuncDecl),
		frames: []frame{{name: "embedsh"}},
	}
	env.arith = env
	return env
}

// SetArgs binds the top-level frame, i.e. the script name and its
// arguments.
func (e *Environment) SetArgs(name string, args []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames[0] = frame{name: name, params: args}
}

// Get returns the value of a variable, or "" when unset.
func (e *Environment) Get(name string) string {
	v, _ := e.Lookup(name)
	return v
}

// Lookup returns a variable's value and whether it is set.
func (e *Environment) Lookup(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.vars[name]
	return v, ok
}

// Set binds a variable in the shared table.
func (e *Environment) Set(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[name] = value
}

// Unset removes a variable binding.
func (e *Environment) Unset(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, name)
}

// SetArith performs an arithmetic side-effect write. It targets the
// session's root environment so that increments inside command
// substitutions and pipeline stages land in shared state.
func (e *Environment) SetArith(name, value string) {
	e.arith.Set(name, value)
}

// GetArith reads a variable for arithmetic evaluation from the same
// environment SetArith writes to.
func (e *Environment) GetArith(name string) string {
	return e.arith.Get(name)
}

// Status returns the exit status register ($?).
func (e *Environment) Status() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetStatus updates the exit status register.
func (e *Environment) SetStatus(code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = code
}

// DefineFunc registers a function body under a name, replacing any
// previous definition.
func (e *Environment) DefineFunc(fn *ast.FuncDecl) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs[fn.Name] = fn
}

// Func returns the named function's definition or nil.
func (e *Environment) Func(name string) *ast.FuncDecl {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.funcs[name]
}

// PushFrame enters a function call with the given positional
// parameters.
func (e *Environment) PushFrame(name string, params []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, frame{name: name, params: params})
}

// PopFrame leaves the innermost function call. It is called on both
// normal completion and return-signal unwind.
func (e *Environment) PopFrame() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.frames) > 1 {
		e.frames = e.frames[:len(e.frames)-1]
	}
}

// CallDepth reports the number of active function calls.
func (e *Environment) CallDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frames) - 1
}

// InFunction reports whether a function call is active, i.e. whether
// "return" has a frame to unwind to.
func (e *Environment) InFunction() bool {
	return e.CallDepth() > 0
}

// Positional returns $0..$N from the active frame; out-of-range
// parameters are empty like unset variables.
func (e *Environment) Positional(n int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	top := e.frames[len(e.frames)-1]
	switch {
	case n == 0:
		return top.name
	case n <= len(top.params):
		return top.params[n-1]
	default:
		return ""
	}
}

// NumPositional returns $# for the active frame.
func (e *Environment) NumPositional() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frames[len(e.frames)-1].params)
}

// AllPositional returns the active frame's parameters joined for $@
// and $* expansion.
func (e *Environment) AllPositional() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.Join(e.frames[len(e.frames)-1].params, " ")
}

// Subshell forks the environment for a command substitution or a
// multi-stage pipeline stage: the child observes the current variables,
// functions and frames, but its own mutations stay local. Arithmetic
// side effects are the documented exception and keep writing to the
// session root.
func (e *Environment) Subshell() *Environment {
	e.mu.Lock()
	defer e.mu.Unlock()

	child := &Environment{
		vars:   make(map[string]string, len(e.vars)),
		funcs:  make(map[string]*ast.FuncDecl, len(e.funcs)),
		frames: append([]frame(nil), e.frames...),
		status: e.status,
		arith:  e.arith,
	}
	for k, v := range e.vars {
		child.vars[k] = v
	}
	for k, v := range e.funcs {
		child.funcs[k] = v
	}
	return child
}

// Environ renders the variable table as sorted KEY=value pairs for the
// external-program collaborator.
func (e *Environment) Environ() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}
