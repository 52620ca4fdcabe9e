package interp

import (
	"fmt"
	"strconv"
	"strings"
)

// builtinFunc executes a shell builtin. args includes the command name
// as args[0].
type builtinFunc func(r *Runner, env *Environment, sio stdio, args []string) outcome

// builtins is the builtin table, consulted before user functions and
// external programs during command resolution.
var builtins = map[string]builtinFunc{
	"echo":   builtinEcho,
	"true":   builtinTrue,
	"false":  builtinFalse,
	":":      builtinTrue,
	"exit":   builtinExit,
	"return": builtinReturn,
	"test":   builtinTest,
	"[":      builtinTest,
}

func builtinEcho(r *Runner, env *Environment, sio stdio, args []string) outcome {
	fmt.Fprintln(sio.out, strings.Join(args[1:], " "))
	return outcome{}
}

func builtinTrue(r *Runner, env *Environment, sio stdio, args []string) outcome {
	return outcome{}
}

func builtinFalse(r *Runner, env *Environment, sio stdio, args []string) outcome {
	return outcome{status: 1}
}

// builtinExit terminates the whole script. The status wraps to 0-255.
func builtinExit(r *Runner, env *Environment, sio stdio, args []string) outcome {
	code := env.Status()
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(sio.err, "%s: exit: %s: numeric argument required\n", r.name(), args[1])
			return outcome{status: 2, ctrl: ctrlExit}
		}
		code = n
	}
	return outcome{status: wrapStatus(code), ctrl: ctrlExit}
}

// builtinReturn unwinds to the nearest function-call boundary. At top
// level there is no frame to unwind to, so it only sets the exit status
// register, per shell convention.
func builtinReturn(r *Runner, env *Environment, sio stdio, args []string) outcome {
	code := env.Status()
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(sio.err, "%s: return: %s: numeric argument required\n", r.name(), args[1])
			return outcome{status: 2, ctrl: ctrlReturn}
		}
		code = n
	}

	res := outcome{status: wrapStatus(code)}
	if env.InFunction() {
		res.ctrl = ctrlReturn
	}
	return res
}

func builtinTest(r *Runner, env *Environment, sio stdio, args []string) outcome {
	expr := args[1:]
	if args[0] == "[" {
		if len(expr) == 0 || expr[len(expr)-1] != "]" {
			fmt.Fprintf(sio.err, "%s: [: missing \"]\"\n", r.name())
			return outcome{status: 2}
		}
		expr = expr[:len(expr)-1]
	}

	truth, err := r.evalTest(expr)
	if err != nil {
		fmt.Fprintf(sio.err, "%s: %s: %v\n", r.name(), args[0], err)
		return outcome{status: 2}
	}
	if truth {
		return outcome{}
	}
	return outcome{status: 1}
}

// evalTest evaluates a test/[ expression: unary string and file tests,
// binary string and integer comparisons, and "!" negation.
func (r *Runner) evalTest(args []string) (bool, error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		return args[0] != "", nil
	}

	if args[0] == "!" {
		truth, err := r.evalTest(args[1:])
		return !truth, err
	}

	switch len(args) {
	case 2:
		return r.evalTestUnary(args[0], args[1])
	case 3:
		return r.evalTestBinary(args[1], args[0], args[2])
	}
	return false, fmt.Errorf("too many arguments")
}

func (r *Runner) evalTestUnary(op, arg string) (bool, error) {
	switch op {
	case "-n":
		return arg != "", nil
	case "-z":
		return arg == "", nil
	case "-e", "-f", "-d":
		if r.FS == nil {
			return false, nil
		}
		info, err := r.FS.Stat(arg)
		if err != nil {
			return false, nil
		}
		switch op {
		case "-f":
			return info.Mode().IsRegular(), nil
		case "-d":
			return info.IsDir(), nil
		}
		return true, nil
	}
	return false, fmt.Errorf("%s: unary operator expected", op)
}

func (r *Runner) evalTestBinary(op, left, right string) (bool, error) {
	switch op {
	case "=":
		return left == right, nil
	case "!=":
		return left != right, nil
	}

	x, errX := strconv.Atoi(left)
	y, errY := strconv.Atoi(right)

	switch op {
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		if errX != nil {
			return false, fmt.Errorf("%s: integer expression expected", left)
		}
		if errY != nil {
			return false, fmt.Errorf("%s: integer expression expected", right)
		}
	default:
		return false, fmt.Errorf("%s: binary operator expected", op)
	}

	switch op {
	case "-eq":
		return x == y, nil
	case "-ne":
		return x != y, nil
	case "-lt":
		return x < y, nil
	case "-le":
		return x <= y, nil
	case "-gt":
		return x > y, nil
	default:
		return x >= y, nil
	}
}
