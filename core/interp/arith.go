package interp

import (
	"fmt"
	"strconv"
	"strings"
)

// evalArith evaluates a shell arithmetic expression with signed integer
// semantics. Comparison operators yield 1/0; pre/post increment and
// decrement read and write the named variable in the environment as a
// side effect of evaluation, which is how "(( x++ ))" mutates shell
// state.
//
// Parameter forms ($NAME, $1, ...) must already be expanded; bare names
// are resolved here.
func evalArith(env *Environment, expr string) (int64, error) {
	p := &arithParser{env: env, src: expr}
	val, err := p.comparison()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return val, nil
}

type arithParser struct {
	env *Environment
	src string
	pos int
}

func (p *arithParser) errorf(format string, args ...interface{}) error {
	return &ArithmeticError{Expr: p.src, Msg: fmt.Sprintf(format, args...)}
}

func (p *arithParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *arithParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *arithParser) peekAt(offset int) byte {
	if p.pos+offset >= len(p.src) {
		return 0
	}
	return p.src[p.pos+offset]
}

// comparison has the loosest binding: add (("<"|"<="|">"|">="|"=="|"!=") add)*
func (p *arithParser) comparison() (int64, error) {
	left, err := p.additive()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpace()
		var op string
		switch {
		case p.peek() == '=' && p.peekAt(1) == '=':
			op = "=="
		case p.peek() == '!' && p.peekAt(1) == '=':
			op = "!="
		case p.peek() == '<' && p.peekAt(1) == '=':
			op = "<="
		case p.peek() == '>' && p.peekAt(1) == '=':
			op = ">="
		case p.peek() == '<':
			op = "<"
		case p.peek() == '>':
			op = ">"
		default:
			return left, nil
		}
		p.pos += len(op)

		right, err := p.additive()
		if err != nil {
			return 0, err
		}

		var truth bool
		switch op {
		case "==":
			truth = left == right
		case "!=":
			truth = left != right
		case "<":
			truth = left < right
		case "<=":
			truth = left <= right
		case ">":
			truth = left > right
		case ">=":
			truth = left >= right
		}
		left = 0
		if truth {
			left = 1
		}
	}
}

func (p *arithParser) additive() (int64, error) {
	left, err := p.multiplicative()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpace()
		ch := p.peek()
		// Not an operator if it is "++"/"--" glued to the next term.
		if (ch != '+' && ch != '-') || p.peekAt(1) == ch {
			return left, nil
		}
		p.pos++

		right, err := p.multiplicative()
		if err != nil {
			return 0, err
		}
		if ch == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *arithParser) multiplicative() (int64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpace()
		ch := p.peek()
		if ch != '*' && ch != '/' && ch != '%' {
			return left, nil
		}
		p.pos++

		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch ch {
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, p.errorf("division by zero")
			}
			left /= right
		case '%':
			if right == 0 {
				return 0, p.errorf("division by zero")
			}
			left %= right
		}
	}
}

func (p *arithParser) unary() (int64, error) {
	p.skipSpace()

	switch ch := p.peek(); ch {
	case '+', '-':
		if p.peekAt(1) == ch {
			// Pre-increment/decrement.
			p.pos += 2
			name, err := p.name()
			if err != nil {
				return 0, p.errorf("expected variable name after prefix operator")
			}
			val := p.readVar(name)
			if ch == '+' {
				val++
			} else {
				val--
			}
			p.writeVar(name, val)
			return val, nil
		}
		p.pos++
		val, err := p.unary()
		if err != nil {
			return 0, err
		}
		if ch == '-' {
			return -val, nil
		}
		return val, nil
	case '!':
		p.pos++
		val, err := p.unary()
		if err != nil {
			return 0, err
		}
		if val == 0 {
			return 1, nil
		}
		return 0, nil
	}

	return p.primary()
}

func (p *arithParser) primary() (int64, error) {
	p.skipSpace()

	switch ch := p.peek(); {
	case ch == '(':
		p.pos++
		val, err := p.comparison()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, p.errorf(`expected ")"`)
		}
		p.pos++
		return val, nil

	case ch >= '0' && ch <= '9':
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		val, err := strconv.ParseInt(p.src[start:p.pos], 10, 64)
		if err != nil {
			return 0, p.errorf("bad number %q", p.src[start:p.pos])
		}
		return val, nil

	case isNameStart(ch):
		name, _ := p.name()
		val := p.readVar(name)

		// Post-increment/decrement: the expression value is the value
		// before the write.
		p.skipSpace()
		if op := p.peek(); (op == '+' || op == '-') && p.peekAt(1) == op {
			p.pos += 2
			if op == '+' {
				p.writeVar(name, val+1)
			} else {
				p.writeVar(name, val-1)
			}
		}
		return val, nil
	}

	if p.pos >= len(p.src) {
		return 0, p.errorf("unexpected end of expression")
	}
	return 0, p.errorf("unexpected %q", string(p.src[p.pos]))
}

func (p *arithParser) name() (string, error) {
	p.skipSpace()
	start := p.pos
	if !isNameStart(p.peek()) {
		return "", p.errorf("expected name")
	}
	p.pos++
	for p.pos < len(p.src) && isNameByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

// readVar resolves a bare variable reference. Unset and non-numeric
// values evaluate as 0, matching the forgiving shell convention.
func (p *arithParser) readVar(name string) int64 {
	val, err := strconv.ParseInt(strings.TrimSpace(p.env.GetArith(name)), 10, 64)
	if err != nil {
		return 0
	}
	return val
}

func (p *arithParser) writeVar(name string, val int64) {
	p.env.SetArith(name, strconv.FormatInt(val, 10))
}

func isNameStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isNameByte(ch byte) bool {
	return isNameStart(ch) || ch >= '0' && ch <= '9'
}
