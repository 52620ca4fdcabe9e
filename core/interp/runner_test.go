package interp

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedsh/embedsh/core/host"
)

// testShell is a runner wired to an in-memory program registry and
// capture buffers for both output streams.
type testShell struct {
	*Runner
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()

	fs := afero.NewMemMapFs()
	reg := host.NewRegistry(fs)

	// argtest prints its argument count and each argument bracketed so
	// field splitting outcomes are visible.
	require.NoError(t, reg.Install("/bin/argtest", func(p *host.Proc) int {
		fmt.Fprintln(p.Stdout, len(p.Args)-1)
		for _, arg := range p.Args[1:] {
			fmt.Fprintf(p.Stdout, "[%s]\n", arg)
		}
		return 0
	}))

	// upper copies stdin to stdout, uppercased.
	require.NoError(t, reg.Install("/bin/upper", func(p *host.Proc) int {
		var buf bytes.Buffer
		buf.ReadFrom(p.Stdin)
		p.Stdout.Write([]byte(strings.ToUpper(buf.String())))
		return 0
	}))

	// envprobe prints the value of X from its environment snapshot.
	require.NoError(t, reg.Install("/bin/envprobe", func(p *host.Proc) int {
		fmt.Fprintln(p.Stdout, p.Getenv("X"))
		return 0
	}))

	// status exits with the code given as its argument.
	require.NoError(t, reg.Install("/bin/status", func(p *host.Proc) int {
		code := 0
		if len(p.Args) > 1 {
			fmt.Sscanf(p.Args[1], "%d", &code)
		}
		return code
	}))

	env := NewEnvironment()
	env.Set("PATH", "/bin")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &testShell{
		Runner: &Runner{
			Env:    env,
			Stdout: stdout,
			Stderr: stderr,
			Spawn:  reg.Spawn,
			FS:     fs,
		},
		stdout: stdout,
		stderr: stderr,
	}
}

// run executes src and fails the test on lex/parse errors.
func (s *testShell) run(t *testing.T, src string) int {
	t.Helper()
	status, err := s.Run(src)
	require.NoError(t, err)
	return status
}

func TestRun_echo(t *testing.T) {
	sh := newTestShell(t)
	status := sh.run(t, "echo hello world")
	assert.Equal(t, 0, status)
	assert.Equal(t, "hello world\n", sh.stdout.String())
}

func TestRun_statusBuiltins(t *testing.T) {
	cases := map[string]int{
		"true":  0,
		"false": 1,
		":":     0,
	}
	for src, want := range cases {
		t.Run(src, func(t *testing.T) {
			sh := newTestShell(t)
			assert.Equal(t, want, sh.run(t, src))
		})
	}
}

func TestRun_exit(t *testing.T) {
	t.Run("explicit-code", func(t *testing.T) {
		sh := newTestShell(t)
		status, exited, err := sh.RunLine("exit 7")
		require.NoError(t, err)
		assert.True(t, exited)
		assert.Equal(t, 7, status)
	})

	t.Run("stops-script", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 3, sh.run(t, "echo before; exit 3; echo after"))
		assert.Equal(t, "before\n", sh.stdout.String())
	})

	t.Run("wraps-modulo-256", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 300%256, sh.run(t, "exit 300"))
	})

	t.Run("defaults-to-last-status", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 1, sh.run(t, "false; exit"))
	})

	t.Run("non-numeric-argument", func(t *testing.T) {
		sh := newTestShell(t)
		status, exited, err := sh.RunLine("exit nope")
		require.NoError(t, err)
		assert.True(t, exited)
		assert.Equal(t, 2, status)
		assert.Contains(t, sh.stderr.String(), "numeric argument required")
	})

	t.Run("exits-from-function", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 9, sh.run(t, "f() { exit 9; echo inner; }; f; echo outer"))
		assert.Equal(t, "", sh.stdout.String())
	})
}

func TestRun_negation(t *testing.T) {
	cases := map[string]int{
		"! false":     0,
		"! true":      1,
		"! status 42": 0,
	}
	for src, want := range cases {
		t.Run(src, func(t *testing.T) {
			sh := newTestShell(t)
			assert.Equal(t, want, sh.run(t, src))
		})
	}

	t.Run("negated-exit", func(t *testing.T) {
		sh := newTestShell(t)
		status, exited, err := sh.RunLine("! exit 5")
		require.NoError(t, err)
		assert.True(t, exited)
		assert.Equal(t, 0, status)
	})
}

func TestRun_commandNotFound(t *testing.T) {
	sh := newTestShell(t)
	assert.Equal(t, 127, sh.run(t, "no_such_program"))
	assert.Contains(t, sh.stderr.String(), "no_such_program: command not found")

	// The failure is local to the command.
	sh.stderr.Reset()
	assert.Equal(t, 0, sh.run(t, "no_such_program; echo still here"))
	assert.Contains(t, sh.stdout.String(), "still here\n")
}

func TestRun_nilSpawn(t *testing.T) {
	sh := newTestShell(t)
	sh.Spawn = nil
	assert.Equal(t, 127, sh.run(t, "argtest"))
}

func TestRun_pipeline(t *testing.T) {
	t.Run("two-stage", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "echo hello | upper"))
		assert.Equal(t, "HELLO\n", sh.stdout.String())
	})

	t.Run("status-is-last-stage", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "false | true"))
		assert.Equal(t, 1, sh.run(t, "true | false"))
		assert.Equal(t, 5, sh.run(t, "status 3 | status 5"))
	})

	t.Run("three-stage", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "echo abc | upper | upper"))
		assert.Equal(t, "ABC\n", sh.stdout.String())
	})

	t.Run("consumer-exits-without-draining", func(t *testing.T) {
		// The producer emits far more than the pipe buffers while the
		// consumer reads nothing. Once the consumer returns, pending
		// writes must fail rather than block the pipeline.
		sh := newTestShell(t)

		type result struct {
			status int
			err    error
		}
		done := make(chan result, 1)
		go func() {
			status, err := sh.Run("i=0; while [ $i -lt 100 ]; do echo xxxx; (( i++ )); done | true")
			done <- result{status, err}
		}()

		select {
		case res := <-done:
			require.NoError(t, res.err)
			assert.Equal(t, 0, res.status)
		case <-time.After(5 * time.Second):
			t.Fatal("pipeline did not finish after the consumer exited")
		}
	})
}

func TestRun_sequenceOrder(t *testing.T) {
	sh := newTestShell(t)
	sh.run(t, "echo a; echo b; echo c")
	assert.Equal(t, "a\nb\nc\n", sh.stdout.String())
}

func TestRun_andOr(t *testing.T) {
	cases := map[string]string{
		"true && echo a":            "a\n",
		"false && echo a":           "",
		"false || echo b":           "b\n",
		"true || echo b":            "",
		"false && echo a || echo b": "b\n",
		"true && echo a || echo b":  "a\n",
	}
	for src, want := range cases {
		t.Run(src, func(t *testing.T) {
			sh := newTestShell(t)
			sh.run(t, src)
			assert.Equal(t, want, sh.stdout.String())
		})
	}
}

func TestRun_functions(t *testing.T) {
	t.Run("definition-status-zero", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "false; greet() { echo hi; }"))
	})

	t.Run("call-with-arguments", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `greet() { echo hello $1, you sent $# args; }; greet bob extra`)
		assert.Equal(t, "hello bob, you sent 2 args\n", sh.stdout.String())
	})

	t.Run("return-status", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 4, sh.run(t, "f() { return 4; echo unreachable; }; f"))
		assert.Equal(t, "", sh.stdout.String())
	})

	t.Run("return-at-top-level-continues", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "return 5; echo after"))
		assert.Equal(t, "after\n", sh.stdout.String())
	})

	t.Run("return-unwinds-one-call-only", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "inner() { return 3; }; outer() { inner; echo got $?; }; outer")
		assert.Equal(t, "got 3\n", sh.stdout.String())
	})

	t.Run("dynamic-scope-leaks-assignments", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "f() { x=5; }; f; echo $x")
		assert.Equal(t, "5\n", sh.stdout.String())
	})

	t.Run("positional-parameters-are-call-local", func(t *testing.T) {
		sh := newTestShell(t)
		sh.Env.SetArgs("script", []string{"top"})
		sh.run(t, "f() { echo in $1; }; f nested; echo out $1")
		assert.Equal(t, "in nested\nout top\n", sh.stdout.String())
	})

	t.Run("zero-is-function-name", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "f() { echo $0; }; f")
		assert.Equal(t, "f\n", sh.stdout.String())
	})

	t.Run("recursion-limit", func(t *testing.T) {
		sh := newTestShell(t)
		sh.MaxCallDepth = 20
		assert.Equal(t, 1, sh.run(t, "f() { f; }; f"))
		assert.Contains(t, sh.stderr.String(), "maximum call depth (20) exceeded")
	})

	t.Run("redefinition-replaces", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "f() { echo one; }; f() { echo two; }; f")
		assert.Equal(t, "two\n", sh.stdout.String())
	})
}

func TestRun_ifStatement(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"then":       {`if [ 1 -eq 1 ]; then echo yes; fi`, "yes\n"},
		"else":       {`if [ 1 -eq 2 ]; then echo yes; else echo no; fi`, "no\n"},
		"elif":       {`if false; then echo a; elif true; then echo b; else echo c; fi`, "b\n"},
		"no-branch":  {`if false; then echo a; fi`, ""},
		"test-names": {`x=hi; if [ "$x" = hi ]; then echo match; fi`, "match\n"},
	}
	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			sh := newTestShell(t)
			assert.Equal(t, 0, sh.run(t, tc.src))
			assert.Equal(t, tc.want, sh.stdout.String())
		})
	}
}

func TestRun_whileLoop(t *testing.T) {
	sh := newTestShell(t)
	assert.Equal(t, 0, sh.run(t, "i=0; while [ $i -lt 3 ]; do echo $i; (( i++ )); done"))
	assert.Equal(t, "0\n1\n2\n", sh.stdout.String())
}

func TestRun_whileReturnUnwinds(t *testing.T) {
	sh := newTestShell(t)
	assert.Equal(t, 2, sh.run(t, "f() { while true; do return 2; done; }; f"))
}

func TestRun_arithmeticCommand(t *testing.T) {
	t.Run("mutates-live-state", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "x=1; (( x++ )); echo $x")
		assert.Equal(t, "2\n", sh.stdout.String())
	})

	t.Run("status-tracks-value", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "(( 1 + 1 ))"))
		assert.Equal(t, 1, sh.run(t, "(( 1 - 1 ))"))
	})

	t.Run("evaluation-error", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 1, sh.run(t, "(( 1 / 0 ))"))
		assert.Contains(t, sh.stderr.String(), "arithmetic error")
	})
}

func TestRun_arithmeticExpansion(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "echo $((2 + 3 * 4))")
		assert.Equal(t, "14\n", sh.stdout.String())
	})

	t.Run("parameters-pre-expand", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "x=10; echo $(($x + 1)) $((x + 2))")
		assert.Equal(t, "11 12\n", sh.stdout.String())
	})

	t.Run("side-effect-visible-in-same-command", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "x=1; echo $((x++)) $x")
		assert.Equal(t, "1 2\n", sh.stdout.String())
	})

	t.Run("division-by-zero-is-local", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "echo $((1/0)); echo after"))
		assert.Contains(t, sh.stderr.String(), "division by zero")
		assert.Equal(t, "after\n", sh.stdout.String())
	})
}

func TestRun_commandSubstitution(t *testing.T) {
	t.Run("captures-stdout", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "echo [$(echo inner)]")
		assert.Equal(t, "[inner]\n", sh.stdout.String())
	})

	t.Run("strips-trailing-newlines", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `x="$(echo line)"; argtest "$x"`)
		assert.Equal(t, "1\n[line]\n", sh.stdout.String())
	})

	t.Run("assignments-do-not-escape", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "x=outer; echo $(x=inner; echo $x); echo $x")
		assert.Equal(t, "inner\nouter\n", sh.stdout.String())
	})

	t.Run("arithmetic-side-effects-escape", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "x=1; echo $(echo $((x++))); echo $x")
		assert.Equal(t, "1\n2\n", sh.stdout.String())
	})

	t.Run("nested", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "echo $(echo $(echo deep))")
		assert.Equal(t, "deep\n", sh.stdout.String())
	})

	t.Run("parse-error-is-local", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "echo $(if); echo after"))
		assert.Contains(t, sh.stderr.String(), "bad substitution")
		assert.Equal(t, "after\n", sh.stdout.String())
	})
}

func TestRun_expansion(t *testing.T) {
	t.Run("variables", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "X=world; echo hello $X ${X}!")
		assert.Equal(t, "hello world world!\n", sh.stdout.String())
	})

	t.Run("unset-is-empty", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "echo [$UNSET]")
		assert.Equal(t, "[]\n", sh.stdout.String())
	})

	t.Run("exit-status-register", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "false; echo $?; echo $?")
		assert.Equal(t, "1\n0\n", sh.stdout.String())
	})

	t.Run("single-quotes-suppress", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `X=v; echo '$X'`)
		assert.Equal(t, "$X\n", sh.stdout.String())
	})

	t.Run("escaped-dollar", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `X=v; echo \$X "\$X"`)
		assert.Equal(t, "$X $X\n", sh.stdout.String())
	})

	t.Run("bad-parameter-is-local", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "echo ${1abc}; echo after"))
		assert.Contains(t, sh.stderr.String(), "bad substitution")
		assert.Equal(t, "after\n", sh.stdout.String())
	})

	t.Run("unterminated-substitution-is-local", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 1, sh.run(t, "echo $(echo hi"))
		assert.Contains(t, sh.stderr.String(), "bad substitution")
	})
}

func TestRun_fieldSplitting(t *testing.T) {
	t.Run("unquoted-expansion-splits", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `X="a b  c"; argtest $X`)
		assert.Equal(t, "3\n[a]\n[b]\n[c]\n", sh.stdout.String())
	})

	t.Run("quoted-expansion-does-not-split", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `X="a b"; argtest "$X"`)
		assert.Equal(t, "1\n[a b]\n", sh.stdout.String())
	})

	t.Run("empty-quotes-make-fields", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `argtest "" ""`)
		assert.Equal(t, "2\n[]\n[]\n", sh.stdout.String())
	})

	t.Run("leading-trailing-whitespace-dropped", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `X="  a b  "; argtest $X`)
		assert.Equal(t, "2\n[a]\n[b]\n", sh.stdout.String())
	})

	t.Run("empty-expansion-vanishes", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "argtest $UNSET")
		assert.Equal(t, "0\n", sh.stdout.String())
	})

	t.Run("adjacent-text-joins-fields", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `X="b c"; argtest a$X-d`)
		assert.Equal(t, "2\n[ab]\n[c-d]\n", sh.stdout.String())
	})
}

func TestRun_assignments(t *testing.T) {
	t.Run("persist", func(t *testing.T) {
		sh := newTestShell(t)
		assert.Equal(t, 0, sh.run(t, "X=1 Y=2; echo $X$Y"))
		assert.Equal(t, "12\n", sh.stdout.String())
	})

	t.Run("prefix-scoped-to-invocation", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "X=outer; X=inner envprobe; echo $X")
		assert.Equal(t, "inner\nouter\n", sh.stdout.String())
	})

	t.Run("prefix-on-unset-var-restores-unset", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, "X=tmp envprobe; argtest $X")
		assert.Equal(t, "tmp\n0\n", sh.stdout.String())
	})

	t.Run("value-expands-without-splitting", func(t *testing.T) {
		sh := newTestShell(t)
		sh.run(t, `A="a b"; B=$A; argtest "$B"`)
		assert.Equal(t, "1\n[a b]\n", sh.stdout.String())
	})
}

func TestRun_parseErrorsReturnError(t *testing.T) {
	sh := newTestShell(t)
	_, err := sh.Run("if true")
	require.Error(t, err)

	_, err = sh.Run("echo 'unterminated")
	require.Error(t, err)

	// Nothing ran.
	assert.Equal(t, "", sh.stdout.String())
}

func TestRun_externalProgramEnviron(t *testing.T) {
	sh := newTestShell(t)
	sh.run(t, "X=hello; envprobe")
	assert.Equal(t, "hello\n", sh.stdout.String())
}

func TestWrapStatus(t *testing.T) {
	assert.Equal(t, 0, wrapStatus(0))
	assert.Equal(t, 255, wrapStatus(255))
	assert.Equal(t, 44, wrapStatus(300))
	assert.Equal(t, 0, wrapStatus(256))
}
