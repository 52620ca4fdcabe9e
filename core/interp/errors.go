package interp

import "fmt"

// ExpansionError reports malformed expansion syntax found while
// expanding a word: an unterminated substitution or a bad parameter
// form. It is local to the enclosing command: the command fails with a
// non-zero status and the surrounding script keeps running.
type ExpansionError struct {
	Msg string
}

func (e *ExpansionError) Error() string {
	return fmt.Sprintf("bad substitution: %s", e.Msg)
}

// ArithmeticError reports a malformed arithmetic expression or division
// by zero. Like ExpansionError it only fails the enclosing command.
type ArithmeticError struct {
	Expr string
	Msg  string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("arithmetic error: %s: %s", e.Expr, e.Msg)
}
