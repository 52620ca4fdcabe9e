package interp

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/embedsh/embedsh/core/ast"
	"github.com/embedsh/embedsh/core/parser"
	"github.com/embedsh/embedsh/core/token"
)

// wordPart is one run of expanded text. Parts produced by an expansion
// outside double quotes are subject to field splitting; literal text
// never is.
type wordPart struct {
	text          string
	fromExpansion bool
}

// expandWord turns a word into its final argument fields: expansions
// are applied per segment, then unquoted expansion results are split on
// whitespace. Quoted segments always contribute to a field, which is
// how `argtest "" ""` keeps two zero-length arguments.
func (r *Runner) expandWord(env *Environment, sio stdio, w *ast.Word) ([]string, error) {
	var fields []string
	var cur strings.Builder
	hasField := false

	flush := func() {
		if hasField {
			fields = append(fields, cur.String())
			cur.Reset()
			hasField = false
		}
	}
	add := func(s string) {
		cur.WriteString(s)
		hasField = true
	}

	for _, seg := range w.Segments {
		switch seg.Quote {
		case token.SingleQuoted:
			add(seg.Text)

		case token.DoubleQuoted:
			parts, err := r.expandText(env, sio, seg.Text, token.DoubleQuoted)
			if err != nil {
				return nil, err
			}
			hasField = true // empty quotes still make a field
			for _, part := range parts {
				add(part.text)
			}

		case token.Unquoted:
			parts, err := r.expandText(env, sio, seg.Text, token.Unquoted)
			if err != nil {
				return nil, err
			}
			for _, part := range parts {
				if !part.fromExpansion {
					add(part.text)
					continue
				}

				pieces := strings.Fields(part.text)
				if len(pieces) == 0 {
					// Whitespace-only expansions end the current field.
					if part.text != "" {
						flush()
					}
					continue
				}
				if startsWithSpace(part.text) {
					flush()
				}
				for i, piece := range pieces {
					if i > 0 {
						flush()
					}
					add(piece)
				}
				if endsWithSpace(part.text) {
					flush()
				}
			}
		}
	}
	flush()

	return fields, nil
}

// expandJoined expands a word without field splitting, as used for
// assignment values.
func (r *Runner) expandJoined(env *Environment, sio stdio, w *ast.Word) (string, error) {
	if w == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, seg := range w.Segments {
		if seg.Quote == token.SingleQuoted {
			sb.WriteString(seg.Text)
			continue
		}
		parts, err := r.expandText(env, sio, seg.Text, seg.Quote)
		if err != nil {
			return "", err
		}
		for _, part := range parts {
			sb.WriteString(part.text)
		}
	}
	return sb.String(), nil
}

func startsWithSpace(s string) bool {
	return s != "" && (s[0] == ' ' || s[0] == '\t' || s[0] == '\n' || s[0] == '\r')
}

func endsWithSpace(s string) bool {
	last := len(s) - 1
	return s != "" && (s[last] == ' ' || s[last] == '\t' || s[last] == '\n' || s[last] == '\r')
}

// expandText scans one segment's raw text for backslash escapes and $
// expansions: $NAME, ${NAME}, positional/special parameters, $((EXPR))
// arithmetic and $(SCRIPT) command substitution.
func (r *Runner) expandText(env *Environment, sio stdio, text string, quote token.Quote) ([]wordPart, error) {
	var parts []wordPart
	var lit strings.Builder

	flushLit := func() {
		if lit.Len() > 0 {
			parts = append(parts, wordPart{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); {
		ch := text[i]

		if ch == '\\' && i+1 < len(text) {
			next := text[i+1]
			if quote == token.DoubleQuoted {
				// Inside double quotes the backslash only quotes the
				// characters that are otherwise special.
				switch next {
				case '$', '"', '\\', '`':
					lit.WriteByte(next)
				default:
					lit.WriteByte('\\')
					lit.WriteByte(next)
				}
			} else {
				lit.WriteByte(next)
			}
			i += 2
			continue
		}

		if ch != '$' {
			lit.WriteByte(ch)
			i++
			continue
		}

		expanded, consumed, err := r.expandDollar(env, sio, text[i:])
		if err != nil {
			return nil, err
		}
		if consumed == 1 {
			// Lone "$" stays literal.
			lit.WriteByte('$')
			i++
			continue
		}
		flushLit()
		parts = append(parts, wordPart{text: expanded, fromExpansion: true})
		i += consumed
	}
	flushLit()

	return parts, nil
}

// expandDollar expands the $ form at the start of text, returning the
// replacement and how many input bytes the form spans.
func (r *Runner) expandDollar(env *Environment, sio stdio, text string) (string, int, error) {
	if len(text) < 2 {
		return "", 1, nil
	}

	switch next := text[1]; {
	case next == '(' && len(text) > 2 && text[2] == '(':
		expr, consumed, ok := balancedArith(text)
		if !ok {
			return "", 0, &ExpansionError{Msg: "unterminated arithmetic expansion"}
		}
		// Parameter forms inside the expression expand first.
		parts, err := r.expandText(env, sio, expr, token.DoubleQuoted)
		if err != nil {
			return "", 0, err
		}
		var sb strings.Builder
		for _, part := range parts {
			sb.WriteString(part.text)
		}
		val, err := evalArith(env, sb.String())
		if err != nil {
			return "", 0, err
		}
		return strconv.FormatInt(val, 10), consumed, nil

	case next == '(':
		script, consumed, ok := balancedParen(text)
		if !ok {
			return "", 0, &ExpansionError{Msg: "unterminated command substitution"}
		}
		out, err := r.commandSubst(env, sio, script)
		if err != nil {
			return "", 0, err
		}
		return out, consumed, nil

	case next == '{':
		end := strings.IndexByte(text, '}')
		if end < 0 {
			return "", 0, &ExpansionError{Msg: "unterminated ${"}
		}
		name := text[2:end]
		if name == "" {
			return "", 0, &ExpansionError{Msg: "empty parameter name"}
		}
		val, err := lookupParam(env, name)
		if err != nil {
			return "", 0, err
		}
		return val, end + 1, nil

	case next == '?':
		return strconv.Itoa(env.Status()), 2, nil
	case next == '#':
		return strconv.Itoa(env.NumPositional()), 2, nil
	case next == '@', next == '*':
		return env.AllPositional(), 2, nil
	case next >= '0' && next <= '9':
		return env.Positional(int(next - '0')), 2, nil

	case isNameStart(next):
		end := 2
		for end < len(text) && isNameByte(text[end]) {
			end++
		}
		return env.Get(text[1:end]), end, nil
	}

	return "", 1, nil
}

// lookupParam resolves a ${NAME} body, including positional and special
// parameters.
func lookupParam(env *Environment, name string) (string, error) {
	switch name {
	case "?":
		return strconv.Itoa(env.Status()), nil
	case "#":
		return strconv.Itoa(env.NumPositional()), nil
	case "@", "*":
		return env.AllPositional(), nil
	}

	if n, err := strconv.Atoi(name); err == nil && n >= 0 {
		return env.Positional(n), nil
	}

	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) || (i == 0 && !isNameStart(name[i])) {
			return "", &ExpansionError{Msg: "invalid parameter name ${" + name + "}"}
		}
	}
	return env.Get(name), nil
}

// balancedArith extracts EXPR from a $((EXPR)) prefix and reports the
// total bytes spanned.
func balancedArith(text string) (expr string, consumed int, ok bool) {
	depth := 0
	for i := 1; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				// The matching close must be the second of "))".
				if text[i-1] != ')' {
					return "", 0, false
				}
				return text[3 : i-1], i + 1, true
			}
		}
	}
	return "", 0, false
}

// balancedParen extracts SCRIPT from a $(SCRIPT) prefix, skipping over
// quoted runs so parentheses in strings do not end the substitution.
func balancedParen(text string) (script string, consumed int, ok bool) {
	depth := 0
	for i := 1; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[2:i], i + 1, true
			}
		case '\'':
			for i++; i < len(text) && text[i] != '\''; i++ {
			}
		case '"':
			for i++; i < len(text) && text[i] != '"'; i++ {
				if text[i] == '\\' {
					i++
				}
			}
		case '\\':
			i++
		}
	}
	return "", 0, false
}

// commandSubst runs a nested script against a forked environment,
// captures its stdout and strips trailing newlines. The nested script
// reads the enclosing command's stdin and shares its stderr.
func (r *Runner) commandSubst(env *Environment, sio stdio, script string) (string, error) {
	prog, err := parser.Parse(script)
	if err != nil {
		return "", &ExpansionError{Msg: err.Error()}
	}

	var buf bytes.Buffer
	sub := env.Subshell()
	res := r.script(sub, prog, stdio{in: sio.in, out: &buf, err: sio.err})
	env.SetStatus(res.status)

	return strings.TrimRight(buf.String(), "\n"), nil
}
