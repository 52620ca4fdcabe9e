package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedsh/embedsh/core/token"
)

func kinds(toks []token.Token) []token.Kind {
	var out []token.Kind
	for _, tok := range toks {
		out = append(out, tok.Kind)
	}
	return out
}

func TestLex_operators(t *testing.T) {
	cases := map[string]struct {
		src  string
		want []token.Kind
	}{
		"semi":     {"a; b", []token.Kind{token.Word, token.Semi, token.Word, token.EOF}},
		"newline":  {"a\nb", []token.Kind{token.Word, token.Newline, token.Word, token.EOF}},
		"pipe":     {"a | b", []token.Kind{token.Word, token.Pipe, token.Word, token.EOF}},
		"and-if":   {"a && b", []token.Kind{token.Word, token.AndIf, token.Word, token.EOF}},
		"or-if":    {"a || b", []token.Kind{token.Word, token.OrIf, token.Word, token.EOF}},
		"mixed":    {"a|b&&c", []token.Kind{token.Word, token.Pipe, token.Word, token.AndIf, token.Word, token.EOF}},
		"comments": {"a # b c\nd", []token.Kind{token.Word, token.Newline, token.Word, token.EOF}},
		"empty":    {"", []token.Kind{token.EOF}},
		"blank":    {"  \t ", []token.Kind{token.EOF}},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			toks, err := New(tc.src).Lex()
			require.NoError(t, err)
			assert.Equal(t, tc.want, kinds(toks))
		})
	}
}

func TestLex_reservedWords(t *testing.T) {
	toks, err := New("if true; then echo yes; fi").Lex()
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{
		token.If, token.Word, token.Semi,
		token.Then, token.Word, token.Word, token.Semi,
		token.Fi, token.EOF,
	}, kinds(toks))
}

func TestLex_reservedWordsOnlyAtCommandStart(t *testing.T) {
	// "if" as an argument is an ordinary word.
	toks, err := New("echo if then fi").Lex()
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{token.Word, token.Word, token.Word, token.Word, token.EOF}, kinds(toks))
}

func TestLex_quotedReservedWordStaysWord(t *testing.T) {
	toks, err := New(`"if" true`).Lex()
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{token.Word, token.Word, token.EOF}, kinds(toks))
	assert.Equal(t, token.DoubleQuoted, toks[0].Segments[0].Quote)
}

func TestLex_bangAndBraces(t *testing.T) {
	toks, err := New("! true").Lex()
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{token.Bang, token.Word, token.EOF}, kinds(toks))

	toks, err = New("greet() { echo hi; }").Lex()
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{
		token.Word, token.LParen, token.RParen,
		token.LBrace, token.Word, token.Word, token.Semi, token.RBrace,
		token.EOF,
	}, kinds(toks))
}

func TestLex_segments(t *testing.T) {
	toks, err := New(`a"b c"'d$e'f`).Lex()
	require.NoError(t, err)
	require.Len(t, toks, 2) // word + EOF

	assert.Equal(t, []token.Segment{
		{Text: "a", Quote: token.Unquoted},
		{Text: "b c", Quote: token.DoubleQuoted},
		{Text: "d$e", Quote: token.SingleQuoted},
		{Text: "f", Quote: token.Unquoted},
	}, toks[0].Segments)
	assert.Equal(t, "ab cd$ef", toks[0].Literal())
}

func TestLex_assignmentKeepsCommandPosition(t *testing.T) {
	// The word after an assignment prefix can still be a reserved word.
	toks, err := New("X=1 if true; then :; fi").Lex()
	require.NoError(t, err)
	assert.Equal(t, token.Word, toks[0].Kind)
	assert.Equal(t, token.If, toks[1].Kind)
}

func TestLex_escapesKeptVerbatim(t *testing.T) {
	toks, err := New(`echo \$HOME`).Lex()
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, `\$HOME`, toks[1].Segments[0].Text)
}

func TestLex_substitutionConsumedWhole(t *testing.T) {
	cases := map[string]struct {
		src  string
		text string
	}{
		"command":    {`echo $(echo a; echo b)`, `$(echo a; echo b)`},
		"nested":     {`echo $(echo $(echo x))`, `$(echo $(echo x))`},
		"arithmetic": {`echo $((1 + 2))`, `$((1 + 2))`},
		"braced":     {`echo ${HOME}`, `${HOME}`},
		"quoted-paren": {
			`echo $(echo ')')`, `$(echo ')')`,
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			toks, err := New(tc.src).Lex()
			require.NoError(t, err)
			require.Len(t, toks, 3)
			assert.Equal(t, tc.text, toks[1].Segments[0].Text)
		})
	}
}

func TestLex_unterminatedQuotes(t *testing.T) {
	for tn, src := range map[string]string{
		"single": `echo 'abc`,
		"double": `echo "abc`,
	} {
		t.Run(tn, func(t *testing.T) {
			_, err := New(src).Lex()
			var lexErr *Error
			require.ErrorAs(t, err, &lexErr)
			assert.Contains(t, lexErr.Error(), "unterminated")
		})
	}
}

func TestLex_unsupportedAmpersand(t *testing.T) {
	_, err := New("sleep 1 &").Lex()
	var lexErr *Error
	require.ErrorAs(t, err, &lexErr)
	assert.Contains(t, lexErr.Error(), `"&"`)
}

func TestLex_positions(t *testing.T) {
	toks, err := New("a\n  b").Lex()
	require.NoError(t, err)
	assert.Equal(t, token.Position{Line: 1, Col: 1}, toks[0].Pos)
	assert.Equal(t, token.Position{Line: 1, Col: 2}, toks[1].Pos)
	assert.Equal(t, token.Position{Line: 2, Col: 3}, toks[2].Pos)
}
